package led

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/quickpanel/internal/loop"
)

type fakeHardware struct {
	writes []State
	err    error
}

func (h *fakeHardware) Apply(s State) error {
	h.writes = append(h.writes, s)
	return h.err
}

func (h *fakeHardware) last() State {
	return h.writes[len(h.writes)-1]
}

func newArbitrator(t *testing.T) (*Arbitrator, *fakeHardware, *loop.Manual) {
	t.Helper()
	clock := loop.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	hw := &fakeHardware{}
	a := New(clock, hw, Options{Enabled: true, DefaultColor: 0x00ff00, OnMs: 500, OffMs: 2000}, nil)
	return a, hw, clock
}

func TestArbitrator_StartsOff(t *testing.T) {
	_, hw, _ := newArbitrator(t)
	require.Len(t, hw.writes, 1)
	assert.False(t, hw.last().On)
}

func TestArbitrator_NewestRequestWins(t *testing.T) {
	a, hw, clock := newArbitrator(t)

	a.Upsert(1, OpOn, 0, 0, 0)
	clock.Advance(time.Second)
	a.Upsert(2, OpOnCustomColor, 0xff0000, 100, 100)

	assert.Equal(t, State{On: true, Owner: 2, Color: 0xff0000, OnMs: 100, OffMs: 100}, hw.last())

	// Refreshing 1 moves it to the head.
	clock.Advance(time.Second)
	a.Upsert(1, OpOn, 0, 0, 0)
	assert.Equal(t, State{On: true, Owner: 1, Color: 0x00ff00, OnMs: 500, OffMs: 2000}, hw.last())

	a.Remove(1)
	assert.Equal(t, 2, hw.last().Owner)

	a.Upsert(2, OpOff, 0, 0, 0)
	assert.False(t, hw.last().On)
	assert.Empty(t, a.Requests())
}

func TestArbitrator_SameTimestampLaterWins(t *testing.T) {
	a, hw, _ := newArbitrator(t)

	a.Upsert(1, OpOn, 0, 0, 0)
	a.Upsert(2, OpOn, 0, 0, 0)
	assert.Equal(t, 2, hw.last().Owner)

	ids := []int{}
	for _, r := range a.Requests() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int{2, 1}, ids)
}

func TestArbitrator_GateForcesOffAndReapplies(t *testing.T) {
	a, hw, _ := newArbitrator(t)
	a.Upsert(1, OpOn, 0, 0, 0)

	a.SetEnabled(false)
	assert.False(t, hw.last().On)
	assert.Len(t, a.Requests(), 1, "gate does not touch the queue")

	before := len(hw.writes)
	a.SetEnabled(true)
	assert.Equal(t, before+1, len(hw.writes))
	assert.Equal(t, 1, hw.last().Owner)

	// A no-op queue change still writes.
	a.SetEnabled(true)
	assert.Equal(t, before+2, len(hw.writes))
}

func TestArbitrator_UnknownRemoveStillDerives(t *testing.T) {
	a, hw, _ := newArbitrator(t)
	before := len(hw.writes)
	a.Remove(42)
	a.Upsert(42, OpOff, 0, 0, 0)
	assert.Equal(t, before+2, len(hw.writes))
	assert.False(t, hw.last().On)
}

func TestArbitrator_HardwareErrorKeepsState(t *testing.T) {
	a, hw, _ := newArbitrator(t)
	hw.err = errors.New("permission denied")

	a.Upsert(1, OpOn, 0, 0, 0)
	assert.True(t, a.State().On)
	assert.Equal(t, 1, a.State().Owner)
}

func TestArbitrator_StateMatchesDerivation(t *testing.T) {
	a, hw, clock := newArbitrator(t)
	rng := rand.New(rand.NewSource(3))
	opts := Options{Enabled: true, DefaultColor: 0x00ff00, OnMs: 500, OffMs: 2000}

	for range 1000 {
		id := rng.Intn(8)
		switch rng.Intn(4) {
		case 0:
			a.Upsert(id, Op(rng.Intn(3)), uint32(rng.Intn(0xffffff)), rng.Intn(3)*100, rng.Intn(3)*100)
		case 1:
			a.Remove(id)
		case 2:
			a.SetEnabled(rng.Intn(2) == 0)
		case 3:
			clock.Advance(time.Duration(rng.Intn(3)) * time.Millisecond)
		}

		var head *Request
		if reqs := a.Requests(); len(reqs) > 0 {
			head = &reqs[0]
		}
		require.Equal(t, Derive(a.Enabled(), head, opts), hw.last())
		require.Equal(t, hw.last(), a.State())
	}
}

func TestDerive(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, State{}, Derive(true, nil, opts))
	assert.Equal(t, State{}, Derive(false, &Request{ID: 1, Op: OpOn}, opts))

	s := Derive(true, &Request{ID: 1, Op: OpOn, Color: 0xff0000}, opts)
	assert.Equal(t, opts.DefaultColor, s.Color, "plain on ignores request colour")
	assert.Equal(t, opts.OnMs, s.OnMs)

	s = Derive(true, &Request{ID: 1, Op: OpOnCustomColor, Color: 0x0000ff, OnMs: 10}, opts)
	assert.Equal(t, uint32(0x0000ff), s.Color)
	assert.Equal(t, 10, s.OnMs)
	assert.Equal(t, 0, s.OffMs)
}

func TestParseOp(t *testing.T) {
	op, err := ParseOp("custom")
	require.NoError(t, err)
	assert.Equal(t, OpOnCustomColor, op)

	_, err = ParseOp("blink")
	assert.Error(t, err)
}
