package mqtt311

// SubackFailure is the SUBACK return code denoting a rejected subscription.
// The other legal codes are the granted QoS levels 0, 1 and 2.
// MQTT v3.1.1 spec: Section 3.9.3
const SubackFailure = 0x80

// deserializeSuback parses a SUBACK packet held in packet.Payload. The
// returned codes slice aliases packet.Payload and holds one granted-QoS or
// failure code per requested subscription.
func deserializeSuback(packet *PacketInfo) (packetID uint16, codes []byte, err error) {
	if packet.RemainingLength < 3 ||
		uint32(len(packet.Payload)) != packet.RemainingLength {
		return 0, nil, ErrBadResponse
	}

	packetID = uint16(packet.Payload[0])<<8 | uint16(packet.Payload[1])
	if packetID == 0 {
		return 0, nil, ErrBadResponse
	}

	codes = packet.Payload[2:]
	for _, code := range codes {
		switch code {
		case byte(QoS0), byte(QoS1), byte(QoS2), SubackFailure:
		default:
			return 0, nil, ErrBadResponse
		}
	}

	return packetID, codes, nil
}

// DeserializeSuback parses a SUBACK packet and returns the packet
// identifier together with the per-subscription return codes.
func DeserializeSuback(packet *PacketInfo) (uint16, []byte, error) {
	if packet == nil {
		return 0, nil, ErrBadParameter
	}

	if packet.Type != PacketSUBACK {
		return 0, nil, ErrInvalidPacketType
	}

	if err := packet.validateFlags(); err != nil {
		return 0, nil, ErrBadResponse
	}

	return deserializeSuback(packet)
}
