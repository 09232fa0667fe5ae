package models

import (
	"log"

	"bitbucket.org/pulsemark/social_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Workspace{}, &User{},
		&ApprovalSettings{}, &ApprovalQueueItem{}, &ApprovalAuditLog{},
		&SocialConnection{},
		&ScheduledPost{}, &PostHistory{}, &PostAnalytics{},
		&PostEventRecord{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
