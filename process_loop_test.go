package mqtt311

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessLoopZeroTimeoutRunsOnce(t *testing.T) {
	client, transport, _, _ := newTestClient(t)

	require.NoError(t, client.ProcessLoop(0))

	// One iteration probes the transport exactly once when idle.
	assert.Equal(t, 1, transport.recvCalls)
}

func TestProcessLoopRunsUntilTimeout(t *testing.T) {
	client, transport, clock, _ := newTestClient(t)

	// Each iteration costs 10 simulated milliseconds.
	baseRecv := transport.Recv
	wrapped := recvWithTick(baseRecv, clock, 10)
	client.transport = &funcTransport{send: transport.Send, recv: wrapped}

	require.NoError(t, client.ProcessLoop(50))
	assert.Equal(t, 5, transport.recvCalls)
}

// funcTransport adapts two closures to the Transport interface.
type funcTransport struct {
	send func(p []byte) (int, error)
	recv func(p []byte) (int, error)
}

func (f *funcTransport) Send(p []byte) (int, error) { return f.send(p) }
func (f *funcTransport) Recv(p []byte) (int, error) { return f.recv(p) }

// recvWithTick advances the clock on every recv call.
func recvWithTick(recv func(p []byte) (int, error), clock *fakeClock, tick uint32) func(p []byte) (int, error) {
	return func(p []byte) (int, error) {
		clock.t += tick
		return recv(p)
	}
}

func TestProcessLoopInboundPublishQoS1(t *testing.T) {
	client, transport, _, recorder := newTestClient(t)
	connectTestClient(t, client, transport)

	// PUBLISH QoS 1, id 0x1234, topic "a/b", payload "hi".
	transport.feed(0x32, 0x09, 0x00, 0x03, 'a', '/', 'b', 0x12, 0x34, 'h', 'i')

	require.NoError(t, client.ProcessLoop(0))

	require.Len(t, recorder.events, 1)
	e := recorder.events[0]
	assert.Equal(t, PacketPUBLISH, e.packetType)
	assert.Equal(t, uint16(0x1234), e.packetID)
	require.NotNil(t, e.publish)
	assert.Equal(t, "a/b", e.publish.Topic)
	assert.Equal(t, []byte("hi"), e.publish.Payload)
	assert.Equal(t, QoS1, e.publish.QoS)

	// The engine acknowledged with PUBACK and finished the exchange.
	assert.Equal(t, []byte{0x40, 0x02, 0x12, 0x34}, transport.sent)
	assert.True(t, client.ControlPacketSent())
	assert.Equal(t, 0, client.tracker.InFlight())
}

func TestProcessLoopInboundPublishQoS0(t *testing.T) {
	client, transport, _, recorder := newTestClient(t)
	connectTestClient(t, client, transport)

	transport.feed(0x30, 0x04, 0x00, 0x01, 't', 'x')

	require.NoError(t, client.ProcessLoop(0))

	require.Len(t, recorder.events, 1)
	assert.Empty(t, transport.sent, "QoS 0 needs no acknowledgement")
	assert.False(t, client.ControlPacketSent())
}

func TestProcessLoopInboundPublishQoS2(t *testing.T) {
	client, transport, _, recorder := newTestClient(t)
	connectTestClient(t, client, transport)

	// PUBLISH QoS 2, id 9, topic "t", payload "x".
	publish := []byte{0x34, 0x06, 0x00, 0x01, 't', 0x00, 0x09, 'x'}
	transport.feed(publish...)

	require.NoError(t, client.ProcessLoop(0))

	require.Len(t, recorder.events, 1)
	assert.Equal(t, []byte{0x50, 0x02, 0x00, 0x09}, transport.sent, "PUBREC sent")

	state, ok := client.tracker.Lookup(9, OriginatorReceive)
	require.True(t, ok)
	assert.Equal(t, StatePubRelPending, state)

	t.Run("duplicate redelivery does not re-invoke the handler", func(t *testing.T) {
		transport.sent = nil
		transport.feed(publish...)

		require.NoError(t, client.ProcessLoop(0))

		assert.Len(t, recorder.events, 1, "handler must fire once")
		assert.Equal(t, []byte{0x50, 0x02, 0x00, 0x09}, transport.sent, "PUBREC re-driven")

		state, ok := client.tracker.Lookup(9, OriginatorReceive)
		require.True(t, ok)
		assert.Equal(t, StatePubRelPending, state, "state unchanged")
	})

	t.Run("pubrel completes the exchange", func(t *testing.T) {
		transport.sent = nil
		transport.feed(0x62, 0x02, 0x00, 0x09)

		require.NoError(t, client.ProcessLoop(0))

		assert.Len(t, recorder.events, 1, "no handler call for PUBREL")
		assert.Equal(t, []byte{0x70, 0x02, 0x00, 0x09}, transport.sent, "PUBCOMP sent")
		assert.Equal(t, 0, client.tracker.InFlight())
	})
}

func TestProcessLoopOutboundQoS1Completion(t *testing.T) {
	client, transport, _, recorder := newTestClient(t)
	connectTestClient(t, client, transport)

	packetID, err := client.Publish(&PublishInfo{Topic: "t", QoS: QoS1})
	require.NoError(t, err)

	transport.feed(0x40, 0x02, 0x00, byte(packetID))

	require.NoError(t, client.ProcessLoop(0))

	require.Len(t, recorder.events, 1)
	assert.Equal(t, PacketPUBACK, recorder.events[0].packetType)
	assert.Equal(t, packetID, recorder.events[0].packetID)
	assert.Nil(t, recorder.events[0].publish)
	assert.Equal(t, 0, client.tracker.InFlight())
	assert.Equal(t, 0, client.flow.InFlight())
}

func TestProcessLoopOutboundQoS2Handshake(t *testing.T) {
	client, transport, _, recorder := newTestClient(t)
	connectTestClient(t, client, transport)

	packetID, err := client.Publish(&PublishInfo{Topic: "t", QoS: QoS2})
	require.NoError(t, err)
	require.Equal(t, uint16(1), packetID)
	transport.sent = nil

	// PUBREC arrives; the engine must answer PUBREL and keep waiting.
	transport.feed(0x50, 0x02, 0x00, 0x01)
	require.NoError(t, client.ProcessLoop(0))

	assert.Equal(t, []byte{0x62, 0x02, 0x00, 0x01}, transport.sent)
	assert.Empty(t, recorder.events, "no event until the terminal ack")

	state, ok := client.tracker.Lookup(1, OriginatorSend)
	require.True(t, ok)
	assert.Equal(t, StatePubCompPending, state)

	// PUBCOMP closes the exchange and surfaces the terminal event.
	transport.sent = nil
	transport.feed(0x70, 0x02, 0x00, 0x01)
	require.NoError(t, client.ProcessLoop(0))

	require.Len(t, recorder.events, 1)
	assert.Equal(t, PacketPUBCOMP, recorder.events[0].packetType)
	assert.Equal(t, 0, client.tracker.InFlight())
}

func TestProcessLoopSubackAndUnsuback(t *testing.T) {
	client, transport, _, recorder := newTestClient(t)
	connectTestClient(t, client, transport)

	// SUBACK id 3, granted QoS 1; UNSUBACK id 4.
	transport.feed(0x90, 0x03, 0x00, 0x03, 0x01)
	transport.feed(0xB0, 0x02, 0x00, 0x04)

	require.NoError(t, client.ProcessLoop(0))
	require.NoError(t, client.ProcessLoop(0))

	require.Len(t, recorder.events, 2)
	assert.Equal(t, PacketSUBACK, recorder.events[0].packetType)
	assert.Equal(t, uint16(3), recorder.events[0].packetID)
	assert.Equal(t, PacketUNSUBACK, recorder.events[1].packetType)
	assert.Equal(t, uint16(4), recorder.events[1].packetID)
}

func TestProcessLoopPingresp(t *testing.T) {
	client, transport, clock, _ := newTestClient(t, WithKeepAlive(10))
	connectTestClient(t, client, transport)

	clock.t = 1000
	require.NoError(t, client.Ping())
	require.True(t, client.keepAlive.waitingForPingResp)

	transport.feed(0xD0, 0x00)
	require.NoError(t, client.ProcessLoop(0))

	assert.False(t, client.keepAlive.waitingForPingResp)
}

func TestProcessLoopKeepAliveFires(t *testing.T) {
	client, transport, clock, _ := newTestClient(t, WithKeepAlive(1))
	connectTestClient(t, client, transport)

	client.keepAlive.lastPacketTime = 0
	clock.t = 1000

	require.NoError(t, client.ProcessLoop(0))

	assert.Equal(t, []byte{0xC0, 0x00}, transport.sent, "PINGREQ sent")
	assert.True(t, client.keepAlive.waitingForPingResp)
	assert.Equal(t, uint32(1000), client.keepAlive.pingReqSendTime)
}

func TestProcessLoopKeepAliveTimeout(t *testing.T) {
	client, transport, clock, _ := newTestClient(t,
		WithKeepAlive(1), WithPingRespTimeout(500))
	connectTestClient(t, client, transport)

	client.keepAlive.pingSent(0)
	clock.t = 1000

	err := client.ProcessLoop(0)
	assert.ErrorIs(t, err, ErrKeepAliveTimeout)
}

func TestProcessLoopKeepAliveAcrossClockWrap(t *testing.T) {
	client, transport, clock, _ := newTestClient(t, WithKeepAlive(1))
	connectTestClient(t, client, transport)

	client.keepAlive.lastPacketTime = 0xFFFFFE0C
	clock.t = 0x000001F8 // 1004 ms later through the wrap

	require.NoError(t, client.ProcessLoop(0))
	assert.Equal(t, []byte{0xC0, 0x00}, transport.sent)
}

func TestProcessLoopRecvFailure(t *testing.T) {
	client, transport, _, _ := newTestClient(t)
	connectTestClient(t, client, transport)
	transport.recvErr = errors.New("closed")

	assert.ErrorIs(t, client.ProcessLoop(0), ErrRecvFailed)
}

func TestProcessLoopUnknownPacketType(t *testing.T) {
	client, transport, _, _ := newTestClient(t)
	connectTestClient(t, client, transport)

	// A second CONNACK is not legal mid-session.
	transport.feed(connackOK...)

	assert.ErrorIs(t, client.ProcessLoop(0), ErrBadResponse)
}

func TestProcessLoopUnknownPubackID(t *testing.T) {
	client, transport, _, _ := newTestClient(t)
	connectTestClient(t, client, transport)

	transport.feed(0x40, 0x02, 0x00, 0x63) // PUBACK for id 99, never sent

	assert.ErrorIs(t, client.ProcessLoop(0), ErrBadResponse)
}

func TestProcessLoopAckSerializationFailure(t *testing.T) {
	client, transport, _, _ := newTestClient(t)
	connectTestClient(t, client, transport)

	// Put an outbound QoS 2 exchange into PubRecPending, then shrink the
	// buffer so the automatic PUBREL cannot be built.
	_, err := client.Publish(&PublishInfo{Topic: "t", QoS: QoS2})
	require.NoError(t, err)
	client.buf = client.buf[:2]

	transport.feed(0x50, 0x02, 0x00, 0x01)

	assert.ErrorIs(t, client.ProcessLoop(0), ErrSendFailed)
}

func TestProcessLoopAckSendFailure(t *testing.T) {
	client, transport, _, _ := newTestClient(t)
	connectTestClient(t, client, transport)

	_, err := client.Publish(&PublishInfo{Topic: "t", QoS: QoS2})
	require.NoError(t, err)

	transport.feed(0x50, 0x02, 0x00, 0x01)
	transport.sendZero = true

	assert.ErrorIs(t, client.ProcessLoop(0), ErrSendFailed)
}

func TestSendStateAckIllegalFollowUp(t *testing.T) {
	client, transport, _, _ := newTestClient(t)
	connectTestClient(t, client, transport)

	// No record exists for id 5, so the post-send tracker update cannot
	// produce a valid state.
	err := client.sendStateAck(5, StatePubRelSend)
	assert.ErrorIs(t, err, ErrIllegalState)

	t.Run("unexpected state name", func(t *testing.T) {
		err := client.sendStateAck(5, StatePublishDone)
		assert.ErrorIs(t, err, ErrIllegalState)
	})
}

func TestProcessLoopClearsControlPacketSent(t *testing.T) {
	client, transport, _, _ := newTestClient(t)
	connectTestClient(t, client, transport)

	// First loop sends a PUBACK.
	transport.feed(0x32, 0x05, 0x00, 0x01, 't', 0x00, 0x07)
	require.NoError(t, client.ProcessLoop(0))
	assert.True(t, client.ControlPacketSent())

	// An idle loop clears the flag again.
	require.NoError(t, client.ProcessLoop(0))
	assert.False(t, client.ControlPacketSent())
}

func TestProcessLoopReentryGuard(t *testing.T) {
	client, _, _, _ := newTestClient(t)
	client.inHandler = true

	assert.ErrorIs(t, client.ProcessLoop(0), ErrIllegalState)
}
