package mqtt311

// DefaultPingRespTimeout is the time in milliseconds the engine waits for
// a PINGRESP before ProcessLoop reports ErrKeepAliveTimeout.
const DefaultPingRespTimeout = 5000

// keepAliveState tracks the client side of MQTT keep-alive: when the last
// control packet went out, whether a PINGREQ is outstanding, and when it
// was sent.
//
// All timestamps are 32-bit milliseconds from the engine's TimeFunc. The
// clock may wrap; every comparison goes through elapsed(), never through a
// signed difference, so intervals up to 2^31 ms survive the wrap.
type keepAliveState struct {
	// intervalSec is the negotiated keep-alive interval in seconds. Zero
	// disables keep-alive entirely.
	intervalSec uint16

	// respTimeoutMs bounds the wait for a PINGRESP.
	respTimeoutMs uint32

	// lastPacketTime is when the last control packet was successfully
	// sent.
	lastPacketTime uint32

	// pingReqSendTime is when the outstanding PINGREQ went out. Only
	// meaningful while waitingForPingResp is set.
	pingReqSendTime uint32

	// waitingForPingResp is set between sending PINGREQ and receiving
	// PINGRESP.
	waitingForPingResp bool
}

// elapsed returns later - start in unsigned 32-bit arithmetic, which is
// correct across a clock wrap for differences up to 2^31 ms.
func elapsed(later, start uint32) uint32 {
	return later - start
}

// packetSent records a successful outbound control packet.
func (k *keepAliveState) packetSent(now uint32) {
	k.lastPacketTime = now
}

// pingSent records an outbound PINGREQ.
func (k *keepAliveState) pingSent(now uint32) {
	k.pingReqSendTime = now
	k.waitingForPingResp = true
}

// pingAcked records a received PINGRESP.
func (k *keepAliveState) pingAcked() {
	k.waitingForPingResp = false
}

// pingDue reports whether the idle period has reached the keep-alive
// interval and a PINGREQ should go out.
func (k *keepAliveState) pingDue(now uint32) bool {
	if k.intervalSec == 0 || k.waitingForPingResp {
		return false
	}
	return elapsed(now, k.lastPacketTime) >= uint32(k.intervalSec)*1000
}

// timedOut reports whether the outstanding PINGREQ has gone unanswered for
// the full response timeout.
func (k *keepAliveState) timedOut(now uint32) bool {
	if k.intervalSec == 0 || !k.waitingForPingResp {
		return false
	}
	return elapsed(now, k.pingReqSendTime) >= k.respTimeoutMs
}
