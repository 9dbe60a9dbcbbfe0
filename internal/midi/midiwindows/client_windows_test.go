package midiwindows

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leandrodaf/midirecorder/internal/logger"
	"github.com/leandrodaf/midirecorder/sdk/contracts"
)

func newTestClient(t *testing.T) *ClientMid {
	t.Helper()
	client, err := NewMIDIClient(&contracts.ClientOptions{Logger: logger.NewNopLogger()})
	require.NoError(t, err)
	return client.(*ClientMid)
}

func TestInstanceRegistry(t *testing.T) {
	a, b := newTestClient(t), newTestClient(t)

	idA := registerInstance(a)
	idB := registerInstance(b)
	require.NotEqual(t, idA, idB)
	require.NotZero(t, idA)
	require.Same(t, a, lookupInstance(idA))
	require.Same(t, b, lookupInstance(idB))

	unregisterInstance(idA)
	require.Nil(t, lookupInstance(idA))
	require.Same(t, b, lookupInstance(idB))
	unregisterInstance(idB)
}

func TestCallbackDeliversShortMessage(t *testing.T) {
	m := newTestClient(t)
	id := registerInstance(m)
	t.Cleanup(func() { unregisterInstance(id) })

	var got [][]byte
	m.dispatcher.Set(contracts.ReceiverFunc(func(msg []byte, offset, count int, _ int64) {
		got = append(got, append([]byte(nil), msg[offset:offset+count]...))
	}))

	midiInCallback(0, MIM_DATA, id, 0x00643C90, 1)
	midiInCallback(0, MIM_DATA, id, 0x000005C1, 2)
	require.Equal(t, [][]byte{{0x90, 0x3C, 0x64}, {0xC1, 0x05}}, got)

	m.dispatcher.Clear()
	midiInCallback(0, MIM_DATA, id, 0x00003C80, 3)
	require.Len(t, got, 2)
}

func TestCallbackIgnoresUnknownInstance(t *testing.T) {
	require.NotPanics(t, func() {
		require.Zero(t, midiInCallback(0, MIM_DATA, ^uintptr(0), 0x00643C90, 1))
	})
}

func TestStopReleasesRegistration(t *testing.T) {
	m := newTestClient(t)
	m.instance = registerInstance(m)
	id := m.instance

	require.NoError(t, m.Stop())
	require.Zero(t, m.instance)
	require.Nil(t, lookupInstance(id))
}
