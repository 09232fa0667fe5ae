package workflow

import (
	"testing"

	"bitbucket.org/pulsemark/social_backend/evaluation"
	"bitbucket.org/pulsemark/social_backend/models"
)

func passingGateInput() GateInput {
	return GateInput{
		AutoApproveEnabled:  true,
		ConfidenceThreshold: 95,
		ConfidenceScore:     97,
		Recommendation:      evaluation.RecommendationAutoApprove,
		AllSafetyPassed:     true,
		PriorityLevel:       models.PriorityLevelLow,
	}
}

func TestAutoApproveGatePasses(t *testing.T) {
	if !EvaluateAutoApproveGate(passingGateInput()) {
		t.Fatal("expected gate to pass when every condition holds")
	}
}

func TestAutoApproveGateEachConditionVetoes(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*GateInput)
	}{
		{"disabled", func(in *GateInput) { in.AutoApproveEnabled = false }},
		{"below threshold", func(in *GateInput) { in.ConfidenceScore = 94 }},
		{"evaluator recommends review", func(in *GateInput) { in.Recommendation = evaluation.RecommendationReview }},
		{"safety failure", func(in *GateInput) { in.AllSafetyPassed = false }},
		{"urgent priority", func(in *GateInput) { in.PriorityLevel = models.PriorityLevelUrgent }},
		{"kill switch", func(in *GateInput) { in.KillSwitchActive = true }},
	}
	for _, c := range cases {
		in := passingGateInput()
		c.mutate(&in)
		if EvaluateAutoApproveGate(in) {
			t.Errorf("%s: expected gate to veto", c.name)
		}
	}
}

func TestAutoApproveGateThresholdBoundary(t *testing.T) {
	in := passingGateInput()
	in.ConfidenceScore = in.ConfidenceThreshold
	if !EvaluateAutoApproveGate(in) {
		t.Fatal("score equal to threshold should pass")
	}
}

func TestAutoApproveGateUrgentOverridesHighScore(t *testing.T) {
	// A perfect score never auto-approves an urgent item.
	in := passingGateInput()
	in.ConfidenceScore = 100
	in.PriorityLevel = models.PriorityLevelUrgent
	if EvaluateAutoApproveGate(in) {
		t.Fatal("urgent items must always get a human reviewer")
	}
}
