package workflow

import (
	"bitbucket.org/pulsemark/social_backend/evaluation"
	"bitbucket.org/pulsemark/social_backend/models"
)

type GateInput struct {
	AutoApproveEnabled  bool
	ConfidenceThreshold int
	ConfidenceScore     int
	Recommendation      evaluation.Recommendation
	AllSafetyPassed     bool
	PriorityLevel       models.PriorityLevel
	KillSwitchActive    bool
}

// EvaluateAutoApproveGate decides whether an item skips human review. Every
// condition must hold; urgent items always get a human regardless of score,
// and the kill switch forces review across the board.
func EvaluateAutoApproveGate(in GateInput) bool {
	if in.KillSwitchActive {
		return false
	}
	if !in.AutoApproveEnabled {
		return false
	}
	if in.ConfidenceScore < in.ConfidenceThreshold {
		return false
	}
	if in.Recommendation != evaluation.RecommendationAutoApprove {
		return false
	}
	if !in.AllSafetyPassed {
		return false
	}
	if in.PriorityLevel == models.PriorityLevelUrgent {
		return false
	}
	return true
}
