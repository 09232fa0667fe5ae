package workflow

import (
	"testing"
	"time"

	"bitbucket.org/pulsemark/social_backend/evaluation"
	"bitbucket.org/pulsemark/social_backend/models"
)

func passedSafety() evaluation.SafetyResult {
	return evaluation.SafetyResult{AllPassed: true}
}

func failedSafety() evaluation.SafetyResult {
	return evaluation.SafetyResult{
		AllPassed:      false,
		FlaggedReasons: []string{"brand tone"},
	}
}

func TestPriorityScoreNearDeadlineLowConfidenceLegal(t *testing.T) {
	// Scheduled within 4 hours (+50), confidence 60 (+40), legal claims (+30)
	// should land at 120 and bucket urgent.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := now.Add(3 * time.Hour)

	score := CalculatePriorityScore(ScoringInput{
		Caption:         "Results guaranteed or your money back",
		ScheduledFor:    &at,
		ConfidenceScore: 60,
		SafetyResult:    passedSafety(),
		Now:             now,
	})
	if score != 120 {
		t.Fatalf("score = %d, want 120", score)
	}
	if level := PriorityLevelForScore(score); level != models.PriorityLevelUrgent {
		t.Fatalf("level = %s, want urgent", level)
	}
}

func TestPriorityScoreTimeWindowsAreExclusive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	within4h := now.Add(2 * time.Hour)
	within24h := now.Add(20 * time.Hour)
	farOut := now.Add(48 * time.Hour)

	base := ScoringInput{Caption: "plain caption", ConfidenceScore: 90, SafetyResult: passedSafety(), Now: now}

	in := base
	in.ScheduledFor = &within4h
	if got := CalculatePriorityScore(in); got != 50 {
		t.Errorf("within 4h score = %d, want 50", got)
	}
	in.ScheduledFor = &within24h
	if got := CalculatePriorityScore(in); got != 30 {
		t.Errorf("within 24h score = %d, want 30", got)
	}
	in.ScheduledFor = &farOut
	if got := CalculatePriorityScore(in); got != 0 {
		t.Errorf("far out score = %d, want 0", got)
	}
	in.ScheduledFor = nil
	if got := CalculatePriorityScore(in); got != 0 {
		t.Errorf("unscheduled score = %d, want 0", got)
	}
}

func TestPriorityScoreConfidenceBands(t *testing.T) {
	base := ScoringInput{Caption: "plain caption", SafetyResult: passedSafety(), Now: time.Now()}

	cases := []struct {
		confidence int
		want       int
	}{
		{69, 40},
		{70, 20},
		{84, 20},
		{85, 0},
		{100, 0},
	}
	for _, c := range cases {
		in := base
		in.ConfidenceScore = c.confidence
		if got := CalculatePriorityScore(in); got != c.want {
			t.Errorf("confidence %d: score = %d, want %d", c.confidence, got, c.want)
		}
	}
}

func TestPriorityScoreSafetyAndLaunchFlags(t *testing.T) {
	in := ScoringInput{
		Caption:         "plain caption",
		ConfidenceScore: 95,
		SafetyResult:    failedSafety(),
		IsProductLaunch: true,
		Now:             time.Now(),
	}
	if got := CalculatePriorityScore(in); got != 60 {
		t.Fatalf("score = %d, want 60 (25 safety + 35 launch)", got)
	}
}

func TestPriorityLevelBoundariesAreInclusive(t *testing.T) {
	cases := []struct {
		score int
		want  models.PriorityLevel
	}{
		{0, models.PriorityLevelLow},
		{19, models.PriorityLevelLow},
		{20, models.PriorityLevelMedium},
		{39, models.PriorityLevelMedium},
		{40, models.PriorityLevelHigh},
		{79, models.PriorityLevelHigh},
		{80, models.PriorityLevelUrgent},
		{195, models.PriorityLevelUrgent},
	}
	for _, c := range cases {
		if got := PriorityLevelForScore(c.score); got != c.want {
			t.Errorf("score %d: level = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestContainsLegalClaims(t *testing.T) {
	if !ContainsLegalClaims("Satisfaction GUARANTEED for every order") {
		t.Error("expected guarantee language to flag")
	}
	if !ContainsLegalClaims("30-day money back promise") {
		t.Error("expected money back language to flag")
	}
	if ContainsLegalClaims("Behind the scenes at our studio today") {
		t.Error("plain caption should not flag legal claims")
	}
}

func TestContainsPricing(t *testing.T) {
	if !ContainsPricing("Now just $19.99 for the starter kit") {
		t.Error("expected dollar amount to flag")
	}
	if !ContainsPricing("Take 50% off everything this weekend") {
		t.Error("expected percent discount to flag")
	}
	if ContainsPricing("Meet the newest member of our team") {
		t.Error("plain caption should not flag pricing")
	}
}
