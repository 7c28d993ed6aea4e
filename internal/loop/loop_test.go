package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_TimersFireInOrder(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var got []string

	m.AfterFunc(2*time.Second, func() { got = append(got, "b") })
	m.AfterFunc(1*time.Second, func() { got = append(got, "a") })
	m.AfterFunc(2*time.Second, func() { got = append(got, "c") })

	m.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, time.Unix(0, 0).Add(1500*time.Millisecond), m.Now())

	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, m.ActiveTimers())
}

func TestManual_StopRetiresTimer(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	fired := false
	timer := m.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	m.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestManual_ClockDuringCallback(t *testing.T) {
	m := NewManual(time.Unix(100, 0))
	var seen time.Time
	m.AfterFunc(3*time.Second, func() {
		seen = m.Now()
		m.AfterFunc(time.Second, func() {})
	})

	m.Advance(10 * time.Second)
	assert.Equal(t, time.Unix(103, 0), seen)
	assert.Equal(t, 0, m.ActiveTimers())
}

func TestManual_PostRunsFIFO(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var got []int
	m.Post(func() {
		got = append(got, 1)
		m.Post(func() { got = append(got, 3) })
	})
	m.Post(func() { got = append(got, 2) })

	m.RunPending()
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestEventLoop_RunsPostedCallbacksSerially(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	var mu sync.Mutex
	var got []int
	for i := range 10 {
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}

	require.NoError(t, l.Invoke(ctx, func() {}))
	mu.Lock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	mu.Unlock()

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestEventLoop_StoppedTimerNeverRuns(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	fired := make(chan struct{}, 1)
	timer := l.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} })
	assert.True(t, timer.Stop())

	kept := make(chan struct{}, 1)
	l.AfterFunc(40*time.Millisecond, func() { kept <- struct{}{} })

	select {
	case <-kept:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	select {
	case <-fired:
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestEventLoop_RecoversFromPanic(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	l.Post(func() { panic("boom") })
	ran := false
	require.NoError(t, l.Invoke(ctx, func() { ran = true }))
	assert.True(t, ran)
}
