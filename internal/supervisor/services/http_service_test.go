// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

// fakeServer scripts ListenAndServe and records Shutdown calls.
type fakeServer struct {
	listenErr  error
	block      chan struct{}
	shutdowns  atomic.Int32
	shutdownCh chan struct{}
}

func newFakeServer(listenErr error) *fakeServer {
	return &fakeServer{
		listenErr:  listenErr,
		block:      make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
}

func (f *fakeServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.block
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	close(f.block)
	close(f.shutdownCh)
	return nil
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(nil)
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if srv.shutdowns.Load() != 1 {
		t.Errorf("shutdowns = %d, want 1", srv.shutdowns.Load())
	}
}

func TestHTTPServerServiceStartFailure(t *testing.T) {
	t.Parallel()

	startErr := errors.New("bind: address already in use")
	svc := NewHTTPServerService(newFakeServer(startErr), time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, startErr) {
		t.Errorf("Serve returned %v, want wrapped start error", err)
	}
}

func TestHTTPServerServiceString(t *testing.T) {
	t.Parallel()

	svc := NewHTTPServerService(newFakeServer(nil), time.Second)
	if svc.String() != "http-server" {
		t.Errorf("String() = %s", svc.String())
	}
}
