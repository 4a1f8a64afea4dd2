package mqtt311

// ackRemainingLength is the fixed remaining length of the four publish
// acknowledgement packets and UNSUBACK: a two-byte packet identifier.
const ackRemainingLength = 2

// ackPacketSize is the total wire size of a publish acknowledgement packet.
const ackPacketSize = 4

// AckPacketSize returns the remaining length and total wire size of a
// publish acknowledgement packet (PUBACK, PUBREC, PUBREL, PUBCOMP).
func AckPacketSize() (remainingLength, packetSize uint32) {
	return ackRemainingLength, ackPacketSize
}

// SerializeAck writes a PUBACK, PUBREC, PUBREL or PUBCOMP packet for
// packetID into buf and returns the number of bytes written.
// MQTT v3.1.1 spec: Sections 3.4 - 3.7
func SerializeAck(ackType PacketType, packetID uint16, buf []byte) (int, error) {
	switch ackType {
	case PacketPUBACK, PacketPUBREC, PacketPUBREL, PacketPUBCOMP:
	default:
		return 0, ErrBadParameter
	}

	if packetID == 0 {
		return 0, ErrBadParameter
	}

	if len(buf) < ackPacketSize {
		return 0, ErrNoMemory
	}

	flags := byte(0)
	if ackType == PacketPUBREL {
		// PUBREL carries the reserved flag nibble 0x02.
		flags = pubrelFlags
	}

	buf[0] = byte(ackType)<<4 | flags
	buf[1] = ackRemainingLength
	putUint16(buf[2:], packetID)
	return ackPacketSize, nil
}

// DeserializeAck parses an acknowledgement packet held in packet.Payload:
// CONNACK, PUBACK, PUBREC, PUBREL, PUBCOMP, SUBACK, UNSUBACK or PINGRESP.
// sessionPresent is meaningful only for CONNACK; packetID is zero for
// packets that carry none.
func DeserializeAck(packet *PacketInfo) (packetID uint16, sessionPresent bool, err error) {
	if packet == nil {
		return 0, false, ErrBadParameter
	}

	if err := packet.validateFlags(); err != nil {
		return 0, false, ErrBadResponse
	}

	switch packet.Type {
	case PacketCONNACK:
		sessionPresent, err = deserializeConnack(packet)
		return 0, sessionPresent, err

	case PacketPUBACK, PacketPUBREC, PacketPUBREL, PacketPUBCOMP, PacketUNSUBACK:
		packetID, err = deserializePacketID(packet)
		return packetID, false, err

	case PacketSUBACK:
		packetID, _, err = deserializeSuback(packet)
		return packetID, false, err

	case PacketPINGRESP:
		if packet.RemainingLength != 0 {
			return 0, false, ErrBadResponse
		}
		return 0, false, nil

	default:
		return 0, false, ErrBadResponse
	}
}

// deserializePacketID parses the two-byte packet identifier that is the
// entire variable header of PUBACK, PUBREC, PUBREL, PUBCOMP and UNSUBACK.
func deserializePacketID(packet *PacketInfo) (uint16, error) {
	if packet.RemainingLength != ackRemainingLength ||
		len(packet.Payload) < ackRemainingLength {
		return 0, ErrBadResponse
	}

	packetID := uint16(packet.Payload[0])<<8 | uint16(packet.Payload[1])
	if packetID == 0 {
		return 0, ErrBadResponse
	}

	return packetID, nil
}
