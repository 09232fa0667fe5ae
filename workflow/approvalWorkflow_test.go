package workflow

import (
	"testing"

	"bitbucket.org/pulsemark/social_backend/models"
)

func TestBulkApproveOneFailureAmongMany(t *testing.T) {
	ids := []int{1, 2, 3, 4, 5}
	res := partitionBulkApprove(ids, func(id int) error {
		if id == 3 {
			return models.ErrQueueItemNotPending
		}
		return nil
	})

	if len(res.Succeeded) != 4 {
		t.Fatalf("succeeded = %v, want 4 ids", res.Succeeded)
	}
	for i, want := range []int{1, 2, 4, 5} {
		if res.Succeeded[i] != want {
			t.Fatalf("succeeded = %v, want [1 2 4 5]", res.Succeeded)
		}
	}
	if len(res.Failed) != 1 {
		t.Fatalf("failed = %v, want exactly one entry", res.Failed)
	}
	if res.Failed[0].Id != 3 {
		t.Fatalf("failed id = %d, want 3", res.Failed[0].Id)
	}
	if res.Failed[0].Error != models.ErrQueueItemNotPending.Error() {
		t.Fatalf("failed error = %q, want the item error detail", res.Failed[0].Error)
	}
}

func TestBulkApproveAllFailuresStillProcessEveryId(t *testing.T) {
	var seen []int
	res := partitionBulkApprove([]int{7, 8, 9}, func(id int) error {
		seen = append(seen, id)
		return models.ErrQueueItemNotFound
	})

	if len(seen) != 3 {
		t.Fatalf("approve called for %v, want every id", seen)
	}
	if len(res.Succeeded) != 0 || len(res.Failed) != 3 {
		t.Fatalf("partition = %v / %v, want 0 succeeded, 3 failed", res.Succeeded, res.Failed)
	}
}

func TestBulkApproveEmptyInput(t *testing.T) {
	res := partitionBulkApprove(nil, func(int) error { return nil })
	if res.Succeeded == nil || res.Failed == nil {
		t.Fatal("partitions must be empty slices, not nil")
	}
	if len(res.Succeeded) != 0 || len(res.Failed) != 0 {
		t.Fatalf("partition = %v / %v, want empty", res.Succeeded, res.Failed)
	}
}
