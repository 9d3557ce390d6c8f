package devices

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRegistry mirrors the store's sweep semantics in memory.
type memRegistry struct {
	mu      sync.Mutex
	devices map[string]*Device
	fail    error
}

func newMemRegistry() *memRegistry {
	return &memRegistry{devices: make(map[string]*Device)}
}

func (m *memRegistry) MarkStaleOffline(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	var n int64
	for _, d := range m.devices {
		if d.Status == StatusOnline && !Online(d.LastSeenAt, time.Now()) {
			d.Status = StatusOffline
			n++
		}
	}
	return n, nil
}

func TestSweepFlipsStaleDevices(t *testing.T) {
	reg := newMemRegistry()
	reg.devices["stale"] = &Device{Status: StatusOnline, LastSeenAt: time.Now().Add(-6 * time.Minute)}
	reg.devices["fresh"] = &Device{Status: StatusOnline, LastSeenAt: time.Now().Add(-1 * time.Minute)}
	reg.devices["pending"] = &Device{Status: StatusPending, LastSeenAt: time.Now().Add(-time.Hour)}

	r := NewReconciler(time.Minute, reg)
	r.Sweep(context.Background())

	assert.Equal(t, StatusOffline, reg.devices["stale"].Status)
	assert.Equal(t, StatusOnline, reg.devices["fresh"].Status)
	assert.Equal(t, StatusPending, reg.devices["pending"].Status)
}

func TestSweepIdempotent(t *testing.T) {
	reg := newMemRegistry()
	reg.devices["stale"] = &Device{Status: StatusOnline, LastSeenAt: time.Now().Add(-10 * time.Minute)}

	r := NewReconciler(time.Minute, reg)
	r.Sweep(context.Background())
	r.Sweep(context.Background())

	assert.Equal(t, StatusOffline, reg.devices["stale"].Status)
}

func TestSweepContinuesPastFailingRegistry(t *testing.T) {
	broken := newMemRegistry()
	broken.fail = errors.New("db down")

	healthy := newMemRegistry()
	healthy.devices["stale"] = &Device{Status: StatusOnline, LastSeenAt: time.Now().Add(-6 * time.Minute)}

	r := NewReconciler(time.Minute, broken, healthy)
	r.Sweep(context.Background())

	assert.Equal(t, StatusOffline, healthy.devices["stale"].Status)
}

func TestRunStopsOnCancel(t *testing.T) {
	reg := newMemRegistry()
	r := NewReconciler(10*time.Millisecond, reg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop on cancel")
	}
}

func TestOnline(t *testing.T) {
	now := time.Now()
	require.True(t, Online(now.Add(-time.Minute), now))
	require.False(t, Online(now.Add(-6*time.Minute), now))
}
