package mqtt311

import "errors"

// PacketType represents an MQTT control packet type.
type PacketType byte

// MQTT control packet types as defined in the specification.
// MQTT v3.1.1 spec: Section 2.2.1
const (
	PacketCONNECT     PacketType = 1
	PacketCONNACK     PacketType = 2
	PacketPUBLISH     PacketType = 3
	PacketPUBACK      PacketType = 4
	PacketPUBREC      PacketType = 5
	PacketPUBREL      PacketType = 6
	PacketPUBCOMP     PacketType = 7
	PacketSUBSCRIBE   PacketType = 8
	PacketSUBACK      PacketType = 9
	PacketUNSUBSCRIBE PacketType = 10
	PacketUNSUBACK    PacketType = 11
	PacketPINGREQ     PacketType = 12
	PacketPINGRESP    PacketType = 13
	PacketDISCONNECT  PacketType = 14
)

// String returns the string representation of the packet type.
func (p PacketType) String() string {
	switch p {
	case PacketCONNECT:
		return "CONNECT"
	case PacketCONNACK:
		return "CONNACK"
	case PacketPUBLISH:
		return "PUBLISH"
	case PacketPUBACK:
		return "PUBACK"
	case PacketPUBREC:
		return "PUBREC"
	case PacketPUBREL:
		return "PUBREL"
	case PacketPUBCOMP:
		return "PUBCOMP"
	case PacketSUBSCRIBE:
		return "SUBSCRIBE"
	case PacketSUBACK:
		return "SUBACK"
	case PacketUNSUBSCRIBE:
		return "UNSUBSCRIBE"
	case PacketUNSUBACK:
		return "UNSUBACK"
	case PacketPINGREQ:
		return "PINGREQ"
	case PacketPINGRESP:
		return "PINGRESP"
	case PacketDISCONNECT:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// Valid returns true if the packet type is valid for MQTT 3.1.1.
func (p PacketType) Valid() bool {
	return p >= PacketCONNECT && p <= PacketDISCONNECT
}

// Fixed header errors.
var (
	ErrInvalidPacketType  = errors.New("invalid packet type")
	ErrInvalidPacketFlags = errors.New("invalid packet flags")
)

// PUBLISH fixed-header flag bits.
const (
	publishFlagRetain = 0x01
	publishFlagQoS    = 0x06
	publishFlagDup    = 0x08
)

// pubrelFlags is the only legal flag nibble for PUBREL, SUBSCRIBE and
// UNSUBSCRIBE packets.
const pubrelFlags = 0x02

// PacketInfo describes one incoming MQTT control packet: its fixed header
// fields plus the raw bytes following the fixed header. Payload aliases a
// region of the engine's fixed buffer; it is only valid until the next
// engine operation.
type PacketInfo struct {
	// Type is the control packet type from the high nibble of the first
	// fixed-header byte.
	Type PacketType

	// Flags is the low nibble of the first fixed-header byte.
	Flags byte

	// RemainingLength is the number of bytes following the fixed header.
	RemainingLength uint32

	// Payload holds the variable header and payload bytes once they have
	// been read from the transport. The header reader leaves it nil.
	Payload []byte
}

// DUP returns the DUP flag for a PUBLISH packet.
func (p *PacketInfo) DUP() bool {
	return p.Flags&publishFlagDup != 0
}

// QoS returns the QoS level from PUBLISH packet flags.
func (p *PacketInfo) QoS() QoS {
	return QoS((p.Flags & publishFlagQoS) >> 1)
}

// Retain returns the RETAIN flag for a PUBLISH packet.
func (p *PacketInfo) Retain() bool {
	return p.Flags&publishFlagRetain != 0
}

// validateFlags checks the flag nibble against the packet type.
// MQTT v3.1.1 spec: Section 2.2.2 (reserved flag values).
func (p *PacketInfo) validateFlags() error {
	switch p.Type {
	case PacketPUBLISH:
		if (p.Flags&publishFlagQoS)>>1 > 2 {
			return ErrInvalidPacketFlags
		}
		// DUP must be 0 for QoS 0 messages.
		if p.QoS() == QoS0 && p.DUP() {
			return ErrInvalidPacketFlags
		}
		return nil

	case PacketPUBREL, PacketSUBSCRIBE, PacketUNSUBSCRIBE:
		if p.Flags != pubrelFlags {
			return ErrInvalidPacketFlags
		}
		return nil

	case PacketCONNECT, PacketCONNACK, PacketPUBACK, PacketPUBREC,
		PacketPUBCOMP, PacketSUBACK, PacketUNSUBACK, PacketPINGREQ,
		PacketPINGRESP, PacketDISCONNECT:
		if p.Flags != 0x00 {
			return ErrInvalidPacketFlags
		}
		return nil

	default:
		return ErrInvalidPacketType
	}
}

// QoS is an MQTT quality of service level.
type QoS byte

// Quality of service levels.
// MQTT v3.1.1 spec: Section 4.3
const (
	// QoS0 delivers at most once.
	QoS0 QoS = 0
	// QoS1 delivers at least once, acknowledged by PUBACK.
	QoS1 QoS = 1
	// QoS2 delivers exactly once via the PUBREC/PUBREL/PUBCOMP handshake.
	QoS2 QoS = 2
)

// String returns the string representation of the QoS level.
func (q QoS) String() string {
	switch q {
	case QoS0:
		return "QoS0"
	case QoS1:
		return "QoS1"
	case QoS2:
		return "QoS2"
	default:
		return "UNKNOWN"
	}
}

// Valid returns true if the QoS level is 0, 1 or 2.
func (q QoS) Valid() bool {
	return q <= QoS2
}
