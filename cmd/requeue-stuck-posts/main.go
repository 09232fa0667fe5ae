// requeue-stuck-posts releases posts stuck in publishing because a worker
// died mid-attempt. One-shot; safe to run while the service is up since the
// release predicate only touches claims older than the lease.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/requeue-stuck-posts
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/models"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	leaseMinutes := 10
	if v := os.Getenv("REQUEUE_LEASE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			leaseMinutes = n
		}
	}

	released, err := models.ReleaseStaleClaims(ctx, db, time.Duration(leaseMinutes)*time.Minute, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to release stale claims: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Released %d stuck post(s) (lease older than %dm)\n", released, leaseMinutes)
}
