package cli

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vsporte/fhm-matches/internal/cache"
	"github.com/vsporte/fhm-matches/internal/logger"
	"github.com/vsporte/fhm-matches/internal/match"
	"github.com/vsporte/fhm-matches/internal/server"
	"github.com/vsporte/fhm-matches/internal/storage"
)

// blockingRunner never finishes a run until its context is cancelled
type blockingRunner struct {
	started chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) (*match.Snapshot, error) {
	close(r.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

type emptyStore struct{}

func (emptyStore) Load() (*match.Snapshot, error) { return nil, storage.ErrNoSnapshot }

func TestShutdown_CancelsPendingRuns(t *testing.T) {
	gin.SetMode(gin.TestMode)

	runner := &blockingRunner{started: make(chan struct{})}
	acc := cache.New(runner, emptyStore{}, cache.Options{Metrics: logger.NewMetrics()})
	router, err := server.New(acc, server.Options{Logger: logger.Nop()}).Router()
	if err != nil {
		t.Fatalf("Router() error: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: router, ReadHeaderTimeout: time.Second}
	go srv.Serve(ln)

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/matches")
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline run never started")
	}

	start := time.Now()
	if err := shutdown(srv, acc); err != nil {
		t.Fatalf("shutdown() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > shutdownTimeout/2 {
		t.Errorf("shutdown took %v", elapsed)
	}

	select {
	case code := <-status:
		if code != http.StatusInternalServerError {
			t.Errorf("pending request status = %d, want %d", code, http.StatusInternalServerError)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pending request never completed")
	}
}
