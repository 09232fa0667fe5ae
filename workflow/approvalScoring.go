package workflow

import (
	"strings"
	"time"
	"unicode"

	"bitbucket.org/pulsemark/social_backend/evaluation"
	"bitbucket.org/pulsemark/social_backend/models"
)

// Priority scoring is an additive point system over review signals, bucketed
// into levels. Higher score means the item needs eyes sooner.
const (
	pointsDueWithin4h   = 50
	pointsDueWithin24h  = 30
	pointsLowConfidence = 40
	pointsMidConfidence = 20
	pointsLegalClaims   = 30
	pointsPricing       = 20
	pointsSafetyFailure = 25
	pointsProductLaunch = 35
)

type ScoringInput struct {
	Caption         string
	ScheduledFor    *time.Time
	ConfidenceScore int
	SafetyResult    evaluation.SafetyResult
	IsProductLaunch bool
	Now             time.Time
}

// CalculatePriorityScore sums the point contributions. The two time windows
// are mutually exclusive; the nearer one wins.
func CalculatePriorityScore(in ScoringInput) int {
	score := 0

	if in.ScheduledFor != nil {
		until := in.ScheduledFor.Sub(in.Now)
		switch {
		case until <= 4*time.Hour:
			score += pointsDueWithin4h
		case until <= 24*time.Hour:
			score += pointsDueWithin24h
		}
	}

	switch {
	case in.ConfidenceScore < 70:
		score += pointsLowConfidence
	case in.ConfidenceScore < 85:
		score += pointsMidConfidence
	}

	if ContainsLegalClaims(in.Caption) {
		score += pointsLegalClaims
	}
	if ContainsPricing(in.Caption) {
		score += pointsPricing
	}
	if !in.SafetyResult.AllPassed {
		score += pointsSafetyFailure
	}
	if in.IsProductLaunch {
		score += pointsProductLaunch
	}

	return score
}

// PriorityLevelForScore buckets a score. Boundaries are inclusive.
func PriorityLevelForScore(score int) models.PriorityLevel {
	switch {
	case score >= 80:
		return models.PriorityLevelUrgent
	case score >= 40:
		return models.PriorityLevelHigh
	case score >= 20:
		return models.PriorityLevelMedium
	default:
		return models.PriorityLevelLow
	}
}

var legalClaimTerms = []string{
	"guarantee", "guaranteed", "warranty", "risk-free", "risk free",
	"money back", "money-back", "refund", "certified", "clinically proven",
	"no. 1", "#1", "best in class", "legally", "fda approved",
}

var pricingTerms = []string{
	"$", "€", "£", "usd", "eur", "price", "pricing", "% off", "percent off",
	"discount", "sale", "free shipping", "per month", "/mo", "subscription fee",
}

// ContainsLegalClaims flags captions carrying guarantee or legal language.
func ContainsLegalClaims(caption string) bool {
	return containsAnyTerm(caption, legalClaimTerms)
}

// ContainsPricing flags captions carrying price or promotion language.
func ContainsPricing(caption string) bool {
	if containsAnyTerm(caption, pricingTerms) {
		return true
	}
	// "50% off" style fragments where the term list misses the layout.
	lower := strings.ToLower(caption)
	for i, r := range lower {
		if r == '%' && i > 0 && unicode.IsDigit(rune(lower[i-1])) {
			return true
		}
	}
	return false
}

func containsAnyTerm(caption string, terms []string) bool {
	lower := strings.ToLower(caption)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
