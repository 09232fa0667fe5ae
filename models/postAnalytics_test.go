package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestEngagementRateFor(t *testing.T) {
	cases := []struct {
		name                                 string
		likes, comments, shares, impressions int
		want                                 string
	}{
		{"typical", 120, 30, 10, 4000, "0.04"},
		{"rounds to 4 places", 1, 0, 0, 3, "0.3333"},
		{"no impressions", 50, 10, 5, 0, "0"},
		{"negative impressions", 1, 1, 1, -10, "0"},
		{"no interactions", 0, 0, 0, 1000, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EngagementRateFor(tc.likes, tc.comments, tc.shares, tc.impressions)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("EngagementRateFor(%d,%d,%d,%d) = %s, want %s",
					tc.likes, tc.comments, tc.shares, tc.impressions, got, tc.want)
			}
		})
	}
}

func TestPlatformIsValid(t *testing.T) {
	for _, p := range []Platform{PlatformFacebook, PlatformInstagram, PlatformTwitter, PlatformLinkedIn, PlatformTikTok} {
		if !p.IsValid() {
			t.Errorf("expected %q to be valid", p)
		}
	}
	for _, p := range []Platform{"", "myspace", "Facebook"} {
		if p.IsValid() {
			t.Errorf("expected %q to be invalid", p)
		}
	}
}
