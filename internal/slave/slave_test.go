package slave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kprusa/rethundersim/internal/netmedium"
	"github.com/kprusa/rethundersim/internal/packet"
	"github.com/kprusa/rethundersim/internal/simkernel"
)

func newTestSlave(env *simkernel.Environment, staticAddress int, onReceived func(*Slave, []byte) []byte) *Slave {
	nn := netmedium.NewNetworkNode(env, 1)
	return NewSlave(nn, staticAddress, onReceived)
}

func TestHandleRequestDropsWhenNotNextHop(t *testing.T) {
	env := simkernel.NewEnvironment()
	s := newTestSlave(env, 2, nil)

	req := &packet.Request{NextHop: 9, SourceStatic: 0, Destination: 2}
	assert.Nil(t, s.handleRequest(req))
}

func TestHandleRequestAdoptsNewLogicAddress(t *testing.T) {
	env := simkernel.NewEnvironment()
	s := newTestSlave(env, 2, nil)

	req := &packet.Request{
		NextHop:      2,
		SourceStatic: 0,
		Destination:  2,
		Header:       packet.Header{Code: packet.Code{IsAddressingStatic: true}},
		NewAddresses: []packet.NewAddressEntry{{StaticAddress: 2, NewLogicAddress: 7}},
	}

	out := s.handleRequest(req)
	require.NotNil(t, out)

	require.NotNil(t, s.LogicAddress)
	assert.Equal(t, 7, *s.LogicAddress)
}

func TestHandleRequestBuildsResponseWhenEndpointAndStackEmpty(t *testing.T) {
	env := simkernel.NewEnvironment()
	var gotPayload []byte
	s := newTestSlave(env, 2, func(sl *Slave, payload []byte) []byte {
		gotPayload = payload
		return []byte("reply")
	})

	req := &packet.Request{
		NextHop:      2,
		SourceStatic: 0,
		Destination:  2,
		Payload:      []byte("ping"),
		Header:       packet.Header{Token: 4, Code: packet.Code{IsAddressingStatic: true}},
	}

	out := s.handleRequest(req)
	require.NotNil(t, out)

	resp, ok := out.(*packet.Response)
	require.True(t, ok)
	assert.Equal(t, []byte("ping"), gotPayload)
	assert.Equal(t, []byte("reply"), resp.Payload)
	assert.Equal(t, 0, resp.NextHop)
	assert.Equal(t, 4, resp.Head().Token)
	assert.Len(t, resp.NoiseTables, 1)
}

func TestHandleRequestPopsPathStackWhenEndpointWithRemainingHops(t *testing.T) {
	env := simkernel.NewEnvironment()
	s := newTestSlave(env, 2, nil)

	req := &packet.Request{
		NextHop:      2,
		SourceStatic: 0,
		Destination:  2,
		Header:       packet.Header{Code: packet.Code{IsAddressingStatic: true}},
		PathStack:    []packet.PathEntry{{Kind: packet.Static, Address: 5}},
	}

	out := s.handleRequest(req)
	require.NotNil(t, out)

	forwarded, ok := out.(*packet.Request)
	require.True(t, ok)
	assert.Equal(t, 5, forwarded.Destination)
	assert.Equal(t, 5, forwarded.NextHop)
	assert.Empty(t, forwarded.PathStack)
}

func TestHandleRequestForwardsDynamicallyViaLastSentRoutingTable(t *testing.T) {
	env := simkernel.NewEnvironment()
	s := newTestSlave(env, 2, nil)
	logic := 1
	s.LogicAddress = &logic
	s.lastSentRoutingTable = map[int]int{3: 10, 5: 12}

	req := &packet.Request{
		NextHop:      2,
		SourceStatic: 0,
		Destination:  4,
		Header:       packet.Header{Code: packet.Code{IsAddressingStatic: false}},
	}

	out := s.handleRequest(req)
	require.NotNil(t, out)

	forwarded, ok := out.(*packet.Request)
	require.True(t, ok)
	assert.Equal(t, 10, forwarded.NextHop) // greatest logic key <= 4 is 3 -> static 10
}

func TestHandleRequestDropsWhenNoForwardingProgress(t *testing.T) {
	env := simkernel.NewEnvironment()
	s := newTestSlave(env, 2, nil)
	logic := 5
	s.LogicAddress = &logic
	s.lastSentRoutingTable = map[int]int{1: 10}

	req := &packet.Request{
		NextHop:      2,
		SourceStatic: 0,
		Destination:  4,
		Header:       packet.Header{Code: packet.Code{IsAddressingStatic: false}},
	}

	assert.Nil(t, s.handleRequest(req))
}

func TestHandleResponseForwardRejectsMissingPreviousHop(t *testing.T) {
	env := simkernel.NewEnvironment()
	s := newTestSlave(env, 2, nil)

	resp := &packet.Response{NextHop: 2}
	assert.Nil(t, s.handleResponseForward(resp))
}

func TestHandleResponseForwardAppendsNoiseSnapshot(t *testing.T) {
	env := simkernel.NewEnvironment()
	s := newTestSlave(env, 2, nil)
	prev := 1
	s.previousNodeStaticAddr = &prev
	s.NoiseTable[9] = 123

	resp := &packet.Response{
		NextHop:     2,
		NoiseTables: []packet.NoiseRow{{8: 1}},
	}

	out := s.handleResponseForward(resp)
	require.NotNil(t, out)
	assert.Equal(t, 1, out.NextHop)
	assert.Len(t, out.NoiseTables, 2)
	assert.Equal(t, 123, out.NoiseTables[1][9])
}
