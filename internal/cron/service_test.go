package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clouddrivehq/clouddrive-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
	releases int
	denied   bool
	err      error
}

func (f *fakeLock) Acquire(_ context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.denied {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(_ context.Context) error {
	f.releases++
	return nil
}

type fakeJob struct {
	name string
	runs int
	err  error
}

func (f *fakeJob) Name() string { return f.name }

func (f *fakeJob) Run(_ context.Context) error {
	f.runs++
	return f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func TestRunCycleExecutesDueJobs(t *testing.T) {
	job := &fakeJob{name: "sweep"}
	failing := &fakeJob{name: "broken", err: errors.New("boom")}
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job, failing),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d and %d", job.runs, failing.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("expected lock released once, got %d", lock.releases)
	}
}

func TestRunCycleSkipsWhenLockDenied(t *testing.T) {
	job := &fakeJob{name: "sweep"}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{denied: true},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job skipped without the lock, got %d runs", job.runs)
	}
}

func TestRegistryHonorsPerJobCadence(t *testing.T) {
	fast := &fakeJob{name: "fast"}
	slow := &fakeJob{name: "slow"}
	registry := NewRegistry()
	registry.Register(fast)
	registry.RegisterEvery(slow, time.Hour)

	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	first := registry.Due(base)
	if len(first) != 2 {
		t.Fatalf("expected both jobs due on first cycle, got %d", len(first))
	}

	second := registry.Due(base.Add(time.Minute))
	if len(second) != 1 || second[0].Name() != "fast" {
		t.Fatalf("expected only the fast job after a minute, got %d", len(second))
	}

	third := registry.Due(base.Add(2 * time.Hour))
	if len(third) != 2 {
		t.Fatalf("expected both jobs due after the hour elapsed, got %d", len(third))
	}
}

func TestRunCycleWithNothingDueSkipsLock(t *testing.T) {
	slow := &fakeJob{name: "slow"}
	registry := NewRegistry()
	registry.RegisterEvery(slow, time.Hour)
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("first runCycle: %v", err)
	}
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("second runCycle: %v", err)
	}
	if slow.runs != 1 {
		t.Fatalf("expected one run inside the cadence window, got %d", slow.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("expected the lock untouched when nothing is due, got %d releases", lock.releases)
	}
}
