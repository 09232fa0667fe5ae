// analytics-sync runs the engagement metrics pull as its own service, for
// deployments that want it out of the API process. Exposes only /healthz.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/platformsync"
	"github.com/gin-gonic/gin"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("ANALYTICS_SYNC_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	go platformsync.NewWorker(db, logger).Run(workerCtx)

	<-sigCtx.Done()
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
