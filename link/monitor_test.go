package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func at(s int) time.Time {
	return time.Unix(int64(s), 0)
}

func TestConnectOnFirstPacket(t *testing.T) {
	m := NewMonitor()
	require.Equal(t, StateScanning, m.State())

	var transitions []State
	m.SetStatusHandler(func(s State) { transitions = append(transitions, s) })

	m.Touch(at(1))
	require.Equal(t, StateConnected, m.State())
	require.Equal(t, []State{StateConnected}, transitions)
	require.Equal(t, at(1), m.LastData())

	// More packets do not re-fire the handler.
	m.Touch(at(2))
	require.Equal(t, []State{StateConnected}, transitions)
}

func TestDisconnectHeuristicFiresOnce(t *testing.T) {
	m := NewMonitor()

	var transitions []State
	m.SetStatusHandler(func(s State) { transitions = append(transitions, s) })

	m.Touch(at(1))
	m.Poll(at(2)) // window re-armed, packet was fresh

	// Silence for more than one full poll interval.
	m.Poll(at(4))
	require.Equal(t, StateDisconnected, m.State())

	// Subsequent empty polls stay silent.
	m.Poll(at(6))
	m.Poll(at(8))
	require.Equal(t, []State{StateConnected, StateDisconnected}, transitions)
}

func TestDataRightBeforePollSurvivesOneCycle(t *testing.T) {
	m := NewMonitor()
	m.Touch(at(1))

	// Packet arrived just before this poll: still alive.
	m.Poll(at(2))
	require.Equal(t, StateConnected, m.State())

	// Nothing in the next full cycle: dead.
	m.Poll(at(4))
	require.Equal(t, StateDisconnected, m.State())
}

func TestReconnectAfterDrop(t *testing.T) {
	m := NewMonitor()

	var transitions []State
	m.SetStatusHandler(func(s State) { transitions = append(transitions, s) })

	m.Touch(at(1))
	m.Poll(at(2))
	m.Poll(at(4))
	require.Equal(t, StateDisconnected, m.State())

	m.BeginScan()
	require.Equal(t, StateScanning, m.State())

	m.Touch(at(10))
	require.Equal(t, StateConnected, m.State())
	require.Equal(t,
		[]State{StateConnected, StateDisconnected, StateScanning, StateConnected},
		transitions)
}

func TestBeginScanDoesNotDowngradeConnected(t *testing.T) {
	m := NewMonitor()
	m.Touch(at(1))
	m.BeginScan()
	require.Equal(t, StateConnected, m.State())
}

func TestConnectionFailed(t *testing.T) {
	m := NewMonitor()

	// A connect failure while still scanning is not a transition.
	m.NoteConnectionFailed()
	require.Equal(t, StateScanning, m.State())

	m.Touch(at(1))
	m.NoteConnectionFailed()
	require.Equal(t, StateDisconnected, m.State())
}

func TestEmptyPollWhileScanningIsInert(t *testing.T) {
	m := NewMonitor()

	var transitions []State
	m.SetStatusHandler(func(s State) { transitions = append(transitions, s) })

	m.Poll(at(2))
	m.Poll(at(4))
	require.Equal(t, StateScanning, m.State())
	require.Empty(t, transitions)
}
