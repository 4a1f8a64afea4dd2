package mqtt311

import "errors"

// ConnectionStatus is the lifecycle state of the MQTT connection.
type ConnectionStatus byte

const (
	// StatusNotConnected means no MQTT session is established.
	StatusNotConnected ConnectionStatus = 0
	// StatusConnected means CONNECT/CONNACK completed.
	StatusConnected ConnectionStatus = 1
	// StatusDisconnecting means a DISCONNECT is being sent.
	StatusDisconnecting ConnectionStatus = 2
)

// String returns the string representation of the connection status.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusNotConnected:
		return "not connected"
	case StatusConnected:
		return "connected"
	case StatusDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// maxConnackAttempts bounds how many empty reads Connect tolerates while
// waiting for the CONNACK.
const maxConnackAttempts = 100

// Client is a single-connection MQTT 3.1.1 protocol engine.
//
// It borrows a Transport, a millisecond clock, an event handler and one
// fixed byte buffer for the lifetime of the connection. The buffer is used
// both for assembling outbound packets and for accumulating inbound bytes;
// it must be large enough for the largest packet the application sends or
// receives.
//
// A Client owns no goroutines and takes no locks. All methods must be
// called from one goroutine at a time, and the event handler must not call
// back into the engine.
type Client struct {
	transport Transport
	now       TimeFunc
	onEvent   EventHandler
	buf       []byte

	opts    clientOptions
	logger  Logger
	metrics engineMetrics

	status       ConnectionStatus
	nextPacketID uint16
	keepAlive    keepAliveState

	// controlPacketSent is set by every successful send and cleared at
	// the start of each ProcessLoop iteration.
	controlPacketSent bool

	// inHandler guards against the event handler re-entering the engine.
	inHandler bool

	tracker Tracker
	flow    FlowController
}

// New creates a Client from its four borrowed collaborators. All of them
// are required; a nil transport, handler or clock, or an empty buffer,
// yields ErrBadParameter.
func New(transport Transport, handler EventHandler, now TimeFunc, buf []byte, opts ...Option) (*Client, error) {
	if transport == nil || handler == nil || now == nil || len(buf) == 0 {
		return nil, ErrBadParameter
	}

	options := applyOptions(opts...)

	c := &Client{
		transport:    transport,
		now:          now,
		onEvent:      handler,
		buf:          buf,
		opts:         options,
		logger:       options.logger,
		metrics:      engineMetrics{metrics: options.metrics},
		status:       StatusNotConnected,
		nextPacketID: 1,
		flow:         FlowController{limit: options.maxOutbound},
	}
	c.tracker.Reset()

	return c, nil
}

// Status returns the connection lifecycle state.
func (c *Client) Status() ConnectionStatus {
	return c.status
}

// ControlPacketSent reports whether any control packet has been sent since
// the start of the most recent ProcessLoop iteration. Sends made outside
// ProcessLoop, such as Connect, Publish or Ping, also set it.
func (c *Client) ControlPacketSent() bool {
	return c.controlPacketSent
}

// NextPacketID allocates the next packet identifier: it returns the
// current value and advances, wrapping from 0xFFFF to 1 and never
// producing zero.
func (c *Client) NextPacketID() uint16 {
	id := c.nextPacketID
	c.nextPacketID++
	if c.nextPacketID == 0 {
		c.nextPacketID = 1
	}
	return id
}

// send pushes the first n bytes of the fixed buffer through the transport,
// retrying short writes. Zero progress or a transport error yields
// ErrSendFailed. On success the keep-alive clock restarts and the
// control-packet-sent flag is set.
func (c *Client) send(packetType PacketType, n int) error {
	data := c.buf[:n]
	total := 0
	for total < len(data) {
		n, err := c.transport.Send(data[total:])
		if err != nil || n <= 0 {
			c.logger.Error("transport send failed", LogFields{
				LogFieldPacketType: packetType.String(),
				LogFieldError:      err,
			})
			return ErrSendFailed
		}
		total += n
	}

	c.keepAlive.packetSent(c.now())
	c.controlPacketSent = true
	c.metrics.packetSent(packetType, total)
	return nil
}

// readRemaining pulls packet.RemainingLength body bytes into the fixed
// buffer, tolerating short reads, and attaches them as packet.Payload.
func (c *Client) readRemaining(packet *PacketInfo) error {
	if packet.RemainingLength > uint32(len(c.buf)) {
		return ErrNoMemory
	}

	need := int(packet.RemainingLength)
	total := 0
	for total < need {
		n, err := c.transport.Recv(c.buf[total:need])
		if err != nil {
			return ErrRecvFailed
		}
		total += n
	}

	packet.Payload = c.buf[:need]
	return nil
}

// invokeHandler runs the user event handler with re-entry protection.
func (c *Client) invokeHandler(packet *PacketInfo, packetID uint16, publish *PublishInfo) {
	c.inHandler = true
	c.onEvent(*packet, packetID, publish)
	c.inHandler = false
}

// Connect establishes the MQTT session: it serializes CONNECT from the
// client's options, sends it, and waits for the CONNACK. Any other packet
// type in response is ErrBadResponse; a CONNACK with a non-zero return
// code is ErrServerRefused. It reports whether the server resumed a
// previous session.
func (c *Client) Connect() (sessionPresent bool, err error) {
	if c.inHandler {
		return false, ErrIllegalState
	}

	info := ConnectInfo{
		ClientID:     c.opts.clientID,
		CleanSession: c.opts.cleanSession,
		KeepAlive:    c.opts.keepAliveSec,
		Will:         c.opts.will,
		Username:     c.opts.username,
		Password:     c.opts.password,
	}

	n, err := SerializeConnect(&info, c.buf)
	if err != nil {
		return false, err
	}

	if err := c.send(PacketCONNECT, n); err != nil {
		return false, err
	}

	// The response cannot be assumed to arrive in one read; poll the
	// header reader until bytes show up.
	var packet PacketInfo
	for attempt := 0; ; attempt++ {
		packet, err = ReadIncomingPacket(c.transport.Recv)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrNoDataAvailable) || attempt == maxConnackAttempts {
			return false, err
		}
	}

	if packet.Type != PacketCONNACK {
		return false, ErrBadResponse
	}

	if err := c.readRemaining(&packet); err != nil {
		return false, err
	}
	c.metrics.packetReceived(packet.Type, 2+int(packet.RemainingLength))

	_, sessionPresent, err = DeserializeAck(&packet)
	if err != nil {
		c.logger.Warn("connect rejected", LogFields{LogFieldError: err})
		return sessionPresent, err
	}

	c.status = StatusConnected
	c.keepAlive = keepAliveState{
		intervalSec:    c.opts.keepAliveSec,
		respTimeoutMs:  c.opts.pingRespTimeoutMs,
		lastPacketTime: c.now(),
	}

	c.logger.Info("connected", LogFields{
		LogFieldClientID: c.opts.clientID,
		"session_present": sessionPresent,
	})
	return sessionPresent, nil
}

// Subscribe sends a SUBSCRIBE packet for the given subscriptions and
// returns its packet identifier. The matching SUBACK is delivered to the
// event handler by ProcessLoop.
func (c *Client) Subscribe(subs ...Subscription) (uint16, error) {
	if c.inHandler {
		return 0, ErrIllegalState
	}

	if _, packetSize, err := SubscribePacketSize(subs); err != nil {
		return 0, err
	} else if packetSize > uint32(len(c.buf)) {
		return 0, ErrNoMemory
	}

	packetID := c.NextPacketID()
	n, err := SerializeSubscribe(subs, packetID, c.buf)
	if err != nil {
		return 0, err
	}

	if err := c.send(PacketSUBSCRIBE, n); err != nil {
		return 0, err
	}

	return packetID, nil
}

// Unsubscribe sends an UNSUBSCRIBE packet for the given topic filters and
// returns its packet identifier. The matching UNSUBACK is delivered to the
// event handler by ProcessLoop.
func (c *Client) Unsubscribe(filters ...string) (uint16, error) {
	if c.inHandler {
		return 0, ErrIllegalState
	}

	if _, packetSize, err := UnsubscribePacketSize(filters); err != nil {
		return 0, err
	} else if packetSize > uint32(len(c.buf)) {
		return 0, ErrNoMemory
	}

	packetID := c.NextPacketID()
	n, err := SerializeUnsubscribe(filters, packetID, c.buf)
	if err != nil {
		return 0, err
	}

	if err := c.send(PacketUNSUBSCRIBE, n); err != nil {
		return 0, err
	}

	return packetID, nil
}

// Publish sends a PUBLISH packet and returns the packet identifier it
// used, which is zero for QoS 0. For QoS 1 and 2 a state record is opened
// before the send; if the send fails the record is retired so a retry can
// run under a fresh identifier. The terminal acknowledgement (PUBACK or
// PUBCOMP) reaches the event handler through ProcessLoop.
func (c *Client) Publish(info *PublishInfo) (uint16, error) {
	if c.inHandler {
		return 0, ErrIllegalState
	}

	if info == nil {
		return 0, ErrBadParameter
	}

	_, packetSize, err := PublishPacketSize(info)
	if err != nil {
		return 0, err
	}
	if packetSize > uint32(len(c.buf)) {
		return 0, ErrNoMemory
	}

	var packetID uint16
	if info.QoS > QoS0 {
		if !c.flow.TryAcquire() {
			return 0, ErrNoMemory
		}

		packetID = c.NextPacketID()
		if err := c.tracker.ReservePublish(packetID, info.QoS); err != nil {
			c.flow.Release()
			return 0, err
		}
	}

	n, err := SerializePublish(info, packetID, c.buf)
	if err != nil {
		c.closeFailedPublish(info.QoS, packetID)
		return 0, err
	}

	if err := c.send(PacketPUBLISH, n); err != nil {
		c.closeFailedPublish(info.QoS, packetID)
		return 0, err
	}

	if info.QoS > QoS0 {
		if _, _, err := c.tracker.UpdatePublish(packetID, OriginatorSend, info.QoS); err != nil {
			return packetID, err
		}
		c.metrics.inflight(c.tracker.InFlight())
	}

	c.logger.Debug("published", LogFields{
		LogFieldTopic:    info.Topic,
		LogFieldPacketID: packetID,
		LogFieldQoS:      info.QoS.String(),
	})
	return packetID, nil
}

// closeFailedPublish retires the state record and flow slot of a QoS >= 1
// publish whose serialization or send failed.
func (c *Client) closeFailedPublish(qos QoS, packetID uint16) {
	if qos == QoS0 {
		return
	}
	c.tracker.Release(packetID, OriginatorSend)
	c.flow.Release()
	c.metrics.inflight(c.tracker.InFlight())
}

// Ping sends a PINGREQ and starts the ping response timer.
func (c *Client) Ping() error {
	if c.inHandler {
		return ErrIllegalState
	}

	n, err := SerializePingreq(c.buf)
	if err != nil {
		return err
	}

	if err := c.send(PacketPINGREQ, n); err != nil {
		return err
	}

	c.keepAlive.pingSent(c.now())
	return nil
}

// Disconnect sends a DISCONNECT packet and marks the session closed. The
// caller tears down the transport afterwards; the server publishes the
// will for any other kind of termination.
func (c *Client) Disconnect() error {
	if c.inHandler {
		return ErrIllegalState
	}

	n, err := SerializeDisconnect(c.buf)
	if err != nil {
		return err
	}

	c.status = StatusDisconnecting
	if err := c.send(PacketDISCONNECT, n); err != nil {
		return err
	}

	c.status = StatusNotConnected
	c.logger.Info("disconnected", LogFields{LogFieldClientID: c.opts.clientID})
	return nil
}
