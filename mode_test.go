package runloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMode_ZeroValueIsUnboundedLoop(t *testing.T) {
	var m RunMode
	assert.Equal(t, ModeLoop, m.Kind())
	_, ok := m.Wait()
	assert.False(t, ok)
	assert.Equal(t, LoopUnbounded(), m)
	assert.Equal(t, "loop", m.String())
}

func TestRunMode_Constructors(t *testing.T) {
	for _, tc := range [...]struct {
		name     string
		mode     RunMode
		kind     ModeKind
		wait     time.Duration
		hasWait  bool
		rendered string
	}{
		{"once", Once(), ModeOnce, 0, false, "once"},
		{"loop unbounded", LoopUnbounded(), ModeLoop, 0, false, "loop"},
		{"loop zero", Loop(0), ModeLoop, 0, false, "loop"},
		{"loop negative", Loop(-time.Second), ModeLoop, 0, false, "loop"},
		{"loop 50ms", Loop(50 * time.Millisecond), ModeLoop, 50 * time.Millisecond, true, "loop(50ms)"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, tc.mode.Kind())
			wait, ok := tc.mode.Wait()
			assert.Equal(t, tc.hasWait, ok)
			assert.Equal(t, tc.wait, wait)
			assert.Equal(t, tc.rendered, tc.mode.String())
		})
	}
}

func TestModeKind_String(t *testing.T) {
	assert.Equal(t, "loop", ModeLoop.String())
	assert.Equal(t, "once", ModeOnce.String())
	assert.Equal(t, "ModeKind(7)", ModeKind(7).String())
}

func TestParseRunMode(t *testing.T) {
	m, err := ParseRunMode("once", time.Second)
	require.NoError(t, err)
	assert.Equal(t, Once(), m)

	m, err = ParseRunMode(" LOOP ", 25*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Loop(25*time.Millisecond), m)

	m, err = ParseRunMode("", 0)
	require.NoError(t, err)
	assert.Equal(t, LoopUnbounded(), m)

	_, err = ParseRunMode("forever", 0)
	assert.ErrorContains(t, err, `unknown run mode "forever"`)
}

func TestSettings(t *testing.T) {
	assert.Equal(t, Settings{}, Settings{RunMode: LoopUnbounded()})
	assert.Equal(t, Once(), RunOnce().RunMode)
	assert.Equal(t, Loop(time.Minute), RunLoop(time.Minute).RunMode)
}

func TestSuspension_String(t *testing.T) {
	assert.Equal(t, "blocking", SuspendBlocking.String())
	assert.Equal(t, "cooperative", SuspendCooperative.String())
	assert.Equal(t, "Suspension(5)", Suspension(5).String())
}

func TestCooperativeDelay(t *testing.T) {
	assert.Equal(t, time.Millisecond, cooperativeDelay(0, time.Millisecond))
	assert.Equal(t, time.Millisecond, cooperativeDelay(-time.Second, time.Millisecond))
	assert.Equal(t, 40*time.Millisecond, cooperativeDelay(40*time.Millisecond, time.Millisecond))
}

func TestRunState_String(t *testing.T) {
	assert.Equal(t, "NotStarted", StateNotStarted.String())
	assert.Equal(t, "Ticking", StateTicking.String())
	assert.Equal(t, "AwaitingResume", StateAwaitingResume.String())
	assert.Equal(t, "Terminated", StateTerminated.String())
	assert.Equal(t, "Unknown", RunState(42).String())
}
