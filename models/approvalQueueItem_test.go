package models

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"bitbucket.org/pulsemark/social_backend/utils"
	"github.com/DATA-DOG/go-sqlmock"
)

func TestCreateApprovalQueueItemTxAutoApprovedRecordsSystemActor(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := utils.SetWorkspaceIdInContext(context.Background(), "ws-1")

	mock.ExpectExec("INSERT INTO .approval_queue_items.").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("INSERT INTO .approval_audit_logs.").WillReturnResult(sqlmock.NewResult(1, 1))

	item := ApprovalQueueItem{
		Caption:  "Launch day is here",
		Platform: PlatformFacebook,
		Status:   ApprovalStatusApproved,
	}
	if err := CreateApprovalQueueItemTx(db.WithContext(ctx), &item); err != nil {
		t.Fatalf("CreateApprovalQueueItemTx: %v", err)
	}

	if item.ID != 7 {
		t.Fatalf("item id = %d, want 7", item.ID)
	}
	if item.IsSystemAction == nil || !*item.IsSystemAction {
		t.Fatal("auto-approved item must carry IsSystemAction = true")
	}

	body, err := json.Marshal(&item)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(body), `"is_system_action":true`) {
		t.Fatalf("item JSON must expose the system-action flag, got %s", body)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateApprovalQueueItemTxPendingIsNotSystemAction(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := utils.SetWorkspaceIdInContext(context.Background(), "ws-1")
	ctx = utils.SetUserIdInContext(ctx, 12)
	ctx = utils.SetUserNameInContext(ctx, "Reviewer One")

	mock.ExpectExec("INSERT INTO .approval_queue_items.").WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectExec("INSERT INTO .approval_audit_logs.").WillReturnResult(sqlmock.NewResult(2, 1))

	item := ApprovalQueueItem{
		Caption:  "Needs a human look",
		Platform: PlatformInstagram,
		Status:   ApprovalStatusPendingReview,
	}
	if err := CreateApprovalQueueItemTx(db.WithContext(ctx), &item); err != nil {
		t.Fatalf("CreateApprovalQueueItemTx: %v", err)
	}

	if item.IsSystemAction == nil || *item.IsSystemAction {
		t.Fatal("a pending item must carry IsSystemAction = false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
