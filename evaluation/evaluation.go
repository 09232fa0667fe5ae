package evaluation

import "context"

// Content is the snapshot handed to the evaluators. It mirrors what ends up
// persisted on the queue item, not the full post record.
type Content struct {
	Caption         string
	Hashtags        []string
	Platform        string
	ImageURL        string
	IsProductLaunch bool
}

type Recommendation string

const (
	RecommendationAutoApprove Recommendation = "auto_approve"
	RecommendationReview      Recommendation = "review"
)

// ConfidenceResult carries both the raw score and the evaluator's own
// recommendation. The two are independent signals: the auto-approve gate
// requires both to agree.
type ConfidenceResult struct {
	Score          int            `json:"score"`
	Recommendation Recommendation `json:"recommendation"`
}

type SafetyCategory string

const (
	SafetyCategoryBrand      SafetyCategory = "brand"
	SafetyCategoryLegal      SafetyCategory = "legal"
	SafetyCategoryToxicity   SafetyCategory = "toxicity"
	SafetyCategoryMisleading SafetyCategory = "misleading"
)

type SafetyCheck struct {
	Category SafetyCategory `json:"category"`
	Passed   bool           `json:"passed"`
	Reason   string         `json:"reason,omitempty"`
}

type SafetyResult struct {
	Checks         []SafetyCheck `json:"checks"`
	AllPassed      bool          `json:"all_passed"`
	FlaggedReasons []string      `json:"flagged_reasons"`
}

// ConfidenceEvaluator scores content quality. External collaborator.
type ConfidenceEvaluator interface {
	Evaluate(ctx context.Context, content Content) (*ConfidenceResult, error)
}

// SafetyEvaluator runs per-category safety checks. External collaborator.
type SafetyEvaluator interface {
	Evaluate(ctx context.Context, content Content) (*SafetyResult, error)
}
