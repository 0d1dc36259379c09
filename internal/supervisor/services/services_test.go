// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/basketry/internal/batch"
)

// fakeHTTPServer stands in for *http.Server.
type fakeHTTPServer struct {
	listenErr     error
	shutdownErr   error
	shutdownCount atomic.Int32
	stopCh        chan struct{}
	stopOnce      sync.Once
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{stopCh: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stopCh
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	f.shutdownCount.Add(1)
	f.stopOnce.Do(func() { close(f.stopCh) })
	return f.shutdownErr
}

func TestServiceInterfaces(t *testing.T) {
	t.Parallel()

	var _ suture.Service = (*HTTPService)(nil)
	var _ suture.Service = (*TriggerService)(nil)
	var _ suture.Service = (*SchedulerService)(nil)
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	t.Parallel()

	server := newFakeHTTPServer()
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	if got := server.shutdownCount.Load(); got != 1 {
		t.Errorf("Shutdown called %d times, want 1", got)
	}
}

func TestHTTPServiceStartupFailure(t *testing.T) {
	t.Parallel()

	server := newFakeHTTPServer()
	server.listenErr = errors.New("address already in use")
	svc := NewHTTPService(server, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, server.listenErr) {
		t.Fatalf("Serve() = %v, want wrapped listen error", err)
	}
}

func TestHTTPServiceShutdownFailure(t *testing.T) {
	t.Parallel()

	server := newFakeHTTPServer()
	server.shutdownErr = errors.New("connections still active")
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err == nil || !errors.Is(err, server.shutdownErr) {
			t.Fatalf("Serve() = %v, want wrapped shutdown error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

// fakeConsumer stands in for trigger.Consumer.
type fakeConsumer struct {
	runErr error
}

func (f *fakeConsumer) Run(ctx context.Context) error {
	if f.runErr != nil {
		return f.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeConsumer) Close() error { return nil }

func TestTriggerServiceStopsWithContext(t *testing.T) {
	t.Parallel()

	svc := NewTriggerService(&fakeConsumer{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestTriggerServicePropagatesFailure(t *testing.T) {
	t.Parallel()

	want := errors.New("broker unreachable")
	svc := NewTriggerService(&fakeConsumer{runErr: want}, zerolog.Nop())

	if err := svc.Serve(context.Background()); !errors.Is(err, want) {
		t.Fatalf("Serve() = %v, want %v", err, want)
	}
}

// fakeRunner records the job types it was asked to run.
type fakeRunner struct {
	mu   sync.Mutex
	jobs []batch.JobType
	errs map[batch.JobType]error
	ran  chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{errs: map[batch.JobType]error{}, ran: make(chan struct{}, 16)}
}

func (f *fakeRunner) Run(_ context.Context, jobType batch.JobType) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, jobType)
	f.mu.Unlock()
	f.ran <- struct{}{}
	return f.errs[jobType]
}

func (f *fakeRunner) recorded() []batch.JobType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]batch.JobType, len(f.jobs))
	copy(out, f.jobs)
	return out
}

func TestSchedulerRunsChainOnStartup(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	svc := NewSchedulerService(runner, SchedulerConfig{
		Interval:     time.Hour,
		RunOnStartup: true,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Wait for all three jobs of the startup chain.
	for i := 0; i < 3; i++ {
		select {
		case <-runner.ran:
		case <-time.After(5 * time.Second):
			t.Fatal("startup chain did not run")
		}
	}
	cancel()
	<-done

	want := []batch.JobType{batch.JobCollaborative, batch.JobAssociation, batch.JobHybrid}
	got := runner.recorded()
	if len(got) != len(want) {
		t.Fatalf("ran %d jobs, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("job[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSchedulerAbortsChainOnFailure(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.errs[batch.JobCollaborative] = errors.New("no orders")
	svc := NewSchedulerService(runner, SchedulerConfig{
		Interval:     time.Hour,
		RunOnStartup: true,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	select {
	case <-runner.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("startup chain did not run")
	}
	cancel()
	<-done

	if got := runner.recorded(); len(got) != 1 || got[0] != batch.JobCollaborative {
		t.Errorf("jobs after failure = %v, want chain aborted after collaborative", got)
	}
}

func TestSchedulerDisabledIdles(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	svc := NewSchedulerService(runner, SchedulerConfig{Interval: 0}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Serve() = %v, want context.DeadlineExceeded", err)
	}
	if got := runner.recorded(); len(got) != 0 {
		t.Errorf("disabled scheduler ran jobs: %v", got)
	}
}
