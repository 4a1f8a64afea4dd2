package mqtt311

// ConnackReturnCode is the CONNACK connect return code.
// MQTT v3.1.1 spec: Section 3.2.2.3
type ConnackReturnCode byte

// CONNACK return codes.
const (
	ConnAccepted           ConnackReturnCode = 0
	ConnRefusedProtocol    ConnackReturnCode = 1
	ConnRefusedIdentifier  ConnackReturnCode = 2
	ConnRefusedUnavailable ConnackReturnCode = 3
	ConnRefusedCredentials ConnackReturnCode = 4
	ConnRefusedNotAuthed   ConnackReturnCode = 5
)

// String returns the string representation of the return code.
func (c ConnackReturnCode) String() string {
	switch c {
	case ConnAccepted:
		return "connection accepted"
	case ConnRefusedProtocol:
		return "unacceptable protocol version"
	case ConnRefusedIdentifier:
		return "identifier rejected"
	case ConnRefusedUnavailable:
		return "server unavailable"
	case ConnRefusedCredentials:
		return "bad user name or password"
	case ConnRefusedNotAuthed:
		return "not authorized"
	default:
		return "unknown return code"
	}
}

// connackRemainingLength is the fixed remaining length of a CONNACK packet.
const connackRemainingLength = 2

// sessionPresentMask isolates the session present bit of the connect
// acknowledge flags; the remaining bits are reserved and must be zero.
const sessionPresentMask = 0x01

// deserializeConnack parses the two-byte CONNACK variable header held in
// packet.Payload. A non-zero return code yields ErrServerRefused; reserved
// acknowledge-flag bits yield ErrBadResponse.
func deserializeConnack(packet *PacketInfo) (sessionPresent bool, err error) {
	if packet.RemainingLength != connackRemainingLength ||
		len(packet.Payload) < connackRemainingLength {
		return false, ErrBadResponse
	}

	ackFlags := packet.Payload[0]
	if ackFlags&^byte(sessionPresentMask) != 0 {
		return false, ErrBadResponse
	}
	sessionPresent = ackFlags&sessionPresentMask != 0

	code := ConnackReturnCode(packet.Payload[1])
	if code != ConnAccepted {
		if code > ConnRefusedNotAuthed {
			return sessionPresent, ErrBadResponse
		}
		return sessionPresent, ErrServerRefused
	}

	return sessionPresent, nil
}
