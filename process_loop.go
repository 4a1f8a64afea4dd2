package mqtt311

import "errors"

// ProcessLoop is the engine's cooperative work step. It repeatedly reads
// at most one incoming packet, dispatches it (invoking the event handler
// and sending any acknowledgement the packet demands), and re-evaluates
// keep-alive, until at least timeoutMs milliseconds have elapsed on the
// engine's clock. A timeoutMs of zero runs exactly one iteration.
//
// The first failure other than "no data available" ends the call:
// ErrRecvFailed, ErrSendFailed and ErrKeepAliveTimeout mean the connection
// is probably unusable and the caller should tear down and reconnect; the
// other statuses leave the connection open.
func (c *Client) ProcessLoop(timeoutMs uint32) error {
	if c.inHandler {
		return ErrIllegalState
	}

	entryTime := c.now()

	for {
		c.controlPacketSent = false

		if err := c.processIteration(); err != nil {
			return err
		}

		if elapsed(c.now(), entryTime) >= timeoutMs {
			return nil
		}
	}
}

// processIteration runs one read/dispatch/keep-alive cycle.
func (c *Client) processIteration() error {
	packet, err := ReadIncomingPacket(c.transport.Recv)
	switch {
	case errors.Is(err, ErrNoDataAvailable):
		// Idle; only keep-alive work remains.

	case err != nil:
		return err

	default:
		if err := c.readRemaining(&packet); err != nil {
			return err
		}
		c.metrics.packetReceived(packet.Type, 2+int(packet.RemainingLength))

		if err := c.dispatch(&packet); err != nil {
			return err
		}
	}

	return c.checkKeepAlive()
}

// dispatch routes one complete inbound packet through deserialization,
// state tracking, the event handler and any owed acknowledgement.
func (c *Client) dispatch(packet *PacketInfo) error {
	switch packet.Type {
	case PacketPUBLISH:
		return c.handleIncomingPublish(packet)

	case PacketPUBACK, PacketPUBCOMP:
		packetID, _, err := DeserializeAck(packet)
		if err != nil {
			return err
		}

		next, err := c.tracker.UpdateAck(packetID, packet.Type, OriginatorReceive)
		if err != nil {
			return err
		}
		if next != StatePublishDone {
			return ErrIllegalState
		}

		c.flow.Release()
		c.metrics.inflight(c.tracker.InFlight())
		c.invokeHandler(packet, packetID, nil)
		return nil

	case PacketPUBREC:
		packetID, _, err := DeserializeAck(packet)
		if err != nil {
			return err
		}

		next, err := c.tracker.UpdateAck(packetID, PacketPUBREC, OriginatorReceive)
		if err != nil {
			return err
		}
		return c.sendStateAck(packetID, next)

	case PacketPUBREL:
		packetID, _, err := DeserializeAck(packet)
		if err != nil {
			return err
		}

		next, err := c.tracker.UpdateAck(packetID, PacketPUBREL, OriginatorReceive)
		if err != nil {
			return err
		}
		return c.sendStateAck(packetID, next)

	case PacketSUBACK, PacketUNSUBACK:
		packetID, _, err := DeserializeAck(packet)
		if err != nil {
			return err
		}
		c.invokeHandler(packet, packetID, nil)
		return nil

	case PacketPINGRESP:
		if _, _, err := DeserializeAck(packet); err != nil {
			return err
		}
		c.keepAlive.pingAcked()
		c.logger.Debug("ping response received", nil)
		return nil

	default:
		c.logger.Warn("unexpected packet type", LogFields{
			LogFieldPacketType: packet.Type.String(),
		})
		return ErrBadResponse
	}
}

// handleIncomingPublish drives an inbound PUBLISH through the tracker, the
// event handler and the acknowledgement it demands.
func (c *Client) handleIncomingPublish(packet *PacketInfo) error {
	info, packetID, err := DeserializePublish(packet)
	if err != nil {
		return err
	}

	if info.QoS == QoS0 {
		c.invokeHandler(packet, packetID, &info)
		return nil
	}

	next, dup, err := c.tracker.UpdatePublish(packetID, OriginatorReceive, info.QoS)
	if err != nil {
		return err
	}
	c.metrics.inflight(c.tracker.InFlight())

	// A redelivery of an exchange already in progress re-drives the owed
	// acknowledgement but must not surface the message again.
	if !dup {
		c.invokeHandler(packet, packetID, &info)
	}

	return c.sendStateAck(packetID, next)
}

// sendStateAck serializes and sends the acknowledgement named by a
// tracker-produced state (StatePubAckSend, StatePubRecSend, StatePubRelSend
// or StatePubCompSend), then advances the tracker past the send.
func (c *Client) sendStateAck(packetID uint16, state PublishState) error {
	var ackType PacketType

	switch state {
	case StatePubAckSend:
		ackType = PacketPUBACK
	case StatePubRecSend:
		ackType = PacketPUBREC
	case StatePubRelSend:
		ackType = PacketPUBREL
	case StatePubCompSend:
		ackType = PacketPUBCOMP
	default:
		return ErrIllegalState
	}

	n, err := SerializeAck(ackType, packetID, c.buf)
	if err != nil {
		// An acknowledgement the engine owes could not be built; the
		// exchange cannot make progress.
		return ErrSendFailed
	}

	if err := c.send(ackType, n); err != nil {
		return err
	}

	if _, err := c.tracker.UpdateAck(packetID, ackType, OriginatorSend); err != nil {
		return err
	}
	c.metrics.inflight(c.tracker.InFlight())

	return nil
}

// checkKeepAlive sends PINGREQ when the connection has been idle for the
// keep-alive interval, and fails the loop when an outstanding PINGREQ has
// gone unanswered past the response timeout.
func (c *Client) checkKeepAlive() error {
	if c.keepAlive.intervalSec == 0 {
		return nil
	}

	now := c.now()

	if c.keepAlive.timedOut(now) {
		c.metrics.keepAliveTimeout()
		c.logger.Error("keep-alive timeout", LogFields{
			"ping_sent_at": c.keepAlive.pingReqSendTime,
		})
		return ErrKeepAliveTimeout
	}

	if c.keepAlive.pingDue(now) {
		if err := c.Ping(); err != nil {
			if errors.Is(err, ErrSendFailed) {
				return err
			}
			return ErrSendFailed
		}
		c.logger.Debug("ping request sent", nil)
	}

	return nil
}
