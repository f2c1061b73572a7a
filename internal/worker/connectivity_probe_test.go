package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/connectivity"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/worker"
)

// fakePinger fails while down is set.
type fakePinger struct {
	mu    sync.Mutex
	down  bool
	calls int
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.down {
		return errors.New("connection refused")
	}
	return nil
}

func (f *fakePinger) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakePinger) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestProcessProbeTransitions(t *testing.T) {
	pinger := &fakePinger{down: true}
	monitor := connectivity.NewMonitor(connectivity.Online, nil)
	probe := worker.NewConnectivityProbe(pinger, monitor, time.Second, nil)
	ctx := context.Background()

	// Given: the API is down
	if got := probe.ProcessProbe(ctx); got != connectivity.Offline {
		t.Fatalf("Expected offline, got %v", got)
	}
	if monitor.Online() {
		t.Fatalf("Expected monitor to be offline")
	}

	fired := 0
	monitor.OnceOnline(func() { fired++ })

	// When: the API comes back
	pinger.setDown(false)
	if got := probe.ProcessProbe(ctx); got != connectivity.Online {
		t.Fatalf("Expected online, got %v", got)
	}

	// Then: armed listeners ran once, and further probes do not rerun them
	probe.ProcessProbe(ctx)
	if fired != 1 {
		t.Errorf("Expected listener to fire once, fired %d times", fired)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	pinger := &fakePinger{}
	monitor := connectivity.NewMonitor(connectivity.Offline, nil)
	probe := worker.NewConnectivityProbe(pinger, monitor, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		probe.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for pinger.Calls() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if pinger.Calls() < 3 {
		t.Errorf("Expected at least 3 probes, got %d", pinger.Calls())
	}
	if !monitor.Online() {
		t.Errorf("Expected monitor to be online after successful probes")
	}
}
