package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReactorStreamAndMessageFraming exercises the Stream and message-framing
// codec together through a Reactor-owned Stream, mirroring how an embedder
// would stage inbound bytes and decode frames off a readiness callback.
func TestReactorStreamAndMessageFraming(t *testing.T) {
	r, err := NewReactor(WithStreamWatermarks(2048, 4096))
	require.NoError(t, err)
	defer r.Destroy()

	s := r.NewStream()
	PushMessage(s, 100, 1, 2, []byte("integration payload"))

	buf := make([]byte, 128)
	d := PopMessage(s, buf)
	require.Equal(t, Complete, d.Kind)
	assert.Equal(t, int32(100), d.Message.ID)
	assert.Equal(t, "integration payload", string(d.Message.Payload))
	assert.Zero(t, s.Size())
}

// TestReactorMultipleTimersOrdering verifies timers with different periods
// fire in ascending fire-time order within the same Advance call.
func TestReactorMultipleTimersOrdering(t *testing.T) {
	s := NewScheduler(0, 1)
	var order []int

	_, err := s.Arm(30, 1, func(TimerHandle) { order = append(order, 30) })
	require.NoError(t, err)
	_, err = s.Arm(10, 1, func(TimerHandle) { order = append(order, 10) })
	require.NoError(t, err)
	_, err = s.Arm(20, 1, func(TimerHandle) { order = append(order, 20) })
	require.NoError(t, err)

	s.Advance(30)
	require.Equal(t, []int{10, 20, 30}, order)
}

func TestReactorStopBeforeRunFails(t *testing.T) {
	r, err := NewReactor(WithTickInterval(time.Millisecond))
	require.NoError(t, err)
	defer r.Destroy()

	r.Stop()
	err = r.Run()
	assert.Error(t, err)
}
