package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"ricorrenze/internal/config"
	"ricorrenze/internal/log"
	"ricorrenze/internal/storage"
)

type fakeServer struct {
	stop     chan struct{}
	listen   error
	shutdown atomic.Bool
}

func (f *fakeServer) ListenAndServe() error {
	if f.listen != nil {
		return f.listen
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdown.Store(true)
	close(f.stop)
	return nil
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &fakeServer{stop: make(chan struct{})}

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, quietLogger(), srv, time.Second) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if !srv.shutdown.Load() {
		t.Error("Shutdown was not called")
	}
}

func TestServeReportsListenError(t *testing.T) {
	srv := &fakeServer{stop: make(chan struct{}), listen: errors.New("address in use")}
	err := Serve(context.Background(), quietLogger(), srv, time.Second)
	if err == nil {
		t.Fatal("expected listen error")
	}
}

func TestInitBackendMemory(t *testing.T) {
	res, err := InitBackend(context.Background(), quietLogger(), &config.Config{DataBackend: "memory"})
	if err != nil {
		t.Fatalf("InitBackend: %v", err)
	}
	if _, ok := res.KV.(*storage.MemoryKV); !ok {
		t.Errorf("KV = %T", res.KV)
	}
}

func TestSetupLoggerRejectsUnknownLevel(t *testing.T) {
	logger, err := SetupLogger("loud")
	if err == nil {
		t.Error("expected error for unknown level")
	}
	if logger == nil {
		t.Error("logger should still be returned")
	}
}
