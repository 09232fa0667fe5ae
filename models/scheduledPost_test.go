package models

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// Two workers race for the same due post. The claim is a conditional UPDATE,
// so the store reports one affected row to exactly one of them; the other
// gets RowsAffected == 0 and must walk away without touching the post.
func TestClaimDuePostExactlyOneWinner(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	scheduledFor := now.Add(-time.Minute)

	mock.ExpectExec("UPDATE .scheduled_posts.").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO .post_histories.").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE .scheduled_posts.").WillReturnResult(sqlmock.NewResult(0, 0))

	first := ScheduledPost{ID: 11, WorkspaceId: "ws-1", Status: PostStatusScheduled, ScheduledFor: &scheduledFor}
	second := ScheduledPost{ID: 11, WorkspaceId: "ws-1", Status: PostStatusScheduled, ScheduledFor: &scheduledFor}

	claimed, err := ClaimDuePost(context.Background(), db, &first, "worker-a", now, 5)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !claimed {
		t.Fatal("first claimer must win")
	}
	if first.Status != PostStatusPublishing {
		t.Fatalf("winner status = %s, want publishing", first.Status)
	}
	if first.ClaimedBy != "worker-a" || first.ClaimedAt == nil || !first.ClaimedAt.Equal(now) {
		t.Fatalf("winner claim bookkeeping = %q/%v", first.ClaimedBy, first.ClaimedAt)
	}

	claimed, err = ClaimDuePost(context.Background(), db, &second, "worker-b", now, 5)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("second claimer must lose")
	}
	if second.Status != PostStatusScheduled || second.ClaimedBy != "" {
		t.Fatalf("loser must not mutate the post, got %s/%q", second.Status, second.ClaimedBy)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// A failed post whose retry window has not opened is outside the due set, so
// the conditional UPDATE matches nothing and the claim is refused.
func TestClaimDuePostRefusesIneligiblePost(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE .scheduled_posts.").WillReturnResult(sqlmock.NewResult(0, 0))

	post := ScheduledPost{ID: 12, WorkspaceId: "ws-1", Status: PostStatusFailed}
	claimed, err := ClaimDuePost(context.Background(), db, &post, "worker-a", now, 5)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed {
		t.Fatal("ineligible post must not be claimable")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
