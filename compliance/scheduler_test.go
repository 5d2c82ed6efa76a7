package compliance_test

import (
	"context"
	"testing"
	"time"

	"github.com/ezachrisen/dataguard"
	"github.com/ezachrisen/dataguard/compliance"
	"github.com/matryer/is"
)

func TestScheduler(t *testing.T) {
	is := is.New(t)

	f := newFixture(site("1", map[string]any{"name": "AMS-1"}))
	is.NoErr(f.registry.Register(newCheck("SiteNaming", "dcim.site", false, func(*dataguard.Object) error { return nil })))

	runs := make(chan *compliance.Summary, 1)
	s := compliance.NewScheduler(f.runner, 10*time.Millisecond, compliance.JobOptions{}, nil)
	s.OnRun = func(sum *compliance.Summary, err error) {
		if err != nil {
			t.Errorf("scheduled run: %v", err)
		}
		select {
		case runs <- sum:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Start(ctx) // no second loop

	select {
	case sum := <-runs:
		is.Equal(sum.Totals().Passed, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not run")
	}

	s.Stop()
	s.Stop()
	is.Equal(f.results.Len(), 1)
}

func TestSchedulerRestartsAfterCancel(t *testing.T) {
	is := is.New(t)

	f := newFixture(site("1", map[string]any{"name": "AMS-1"}))
	is.NoErr(f.registry.Register(newCheck("SiteNaming", "dcim.site", false, func(*dataguard.Object) error { return nil })))

	runs := make(chan error, 1)
	s := compliance.NewScheduler(f.runner, 10*time.Millisecond, compliance.JobOptions{}, nil)
	s.OnRun = func(_ *compliance.Summary, err error) {
		select {
		case runs <- err:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	is.True(s.Running())
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for s.Running() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler still running after cancel")
		}
		time.Sleep(time.Millisecond)
	}
	s.Stop() // nothing to stop

	// drain a run that raced with the cancel
	select {
	case <-runs:
	default:
	}

	s.Start(context.Background())
	is.True(s.Running())
	select {
	case err := <-runs:
		is.NoErr(err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not run after restart")
	}
	s.Stop()
	is.True(!s.Running())
}
