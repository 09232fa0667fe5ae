package config

import (
	"os"
	"strings"
)

// AutoApproveKillSwitch disables the auto-approve gate globally, forcing every
// queued item through human review regardless of per-workspace settings.
//
// Set via env:
// - AUTO_APPROVE_KILL_SWITCH=true
func AutoApproveKillSwitch() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("AUTO_APPROVE_KILL_SWITCH")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// PublishDirectScan controls whether the in-process due-post scanner runs.
//
// Default: run. The scanner is the only component that moves scheduled posts
// to the platforms, so it stays on unless explicitly disabled (e.g. when a
// dedicated worker deployment owns scanning).
//
// Set via env:
// - PUBLISH_DIRECT_SCAN=false
func PublishDirectScan() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("PUBLISH_DIRECT_SCAN")))
	if v == "false" || v == "0" || v == "no" {
		return false
	}
	return true
}

// AnalyticsSyncEnabled controls the engagement-metric collector for published posts.
//
// Set via env:
// - ANALYTICS_SYNC_ENABLED=false
func AnalyticsSyncEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ANALYTICS_SYNC_ENABLED")))
	if v == "false" || v == "0" || v == "no" {
		return false
	}
	return true
}
