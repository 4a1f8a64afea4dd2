package mqtt311

import "errors"

// PUBLISH packet errors.
var (
	ErrInvalidQoS      = errors.New("invalid QoS level")
	ErrInvalidPacketID = errors.New("invalid packet identifier")
	ErrInvalidDup      = errors.New("DUP flag requires QoS 1 or 2")
)

// PublishInfo holds the fields of an MQTT PUBLISH packet.
// MQTT v3.1.1 spec: Section 3.3
type PublishInfo struct {
	// Topic is the topic name the message is published to.
	Topic string

	// Payload is the application message body. For an inbound publish it
	// aliases the engine's fixed buffer and is only valid until the next
	// engine operation.
	Payload []byte

	// QoS is the quality of service level (0, 1, or 2).
	QoS QoS

	// Retain indicates if this is a retained message.
	Retain bool

	// Dup indicates a possible redelivery of an earlier attempt. Only
	// legal with QoS 1 or 2.
	Dup bool
}

// validate checks the PUBLISH fields against MQTT 3.1.1 rules.
func (p *PublishInfo) validate() error {
	if err := ValidateTopicName(p.Topic); err != nil {
		return err
	}

	if !p.QoS.Valid() {
		return ErrInvalidQoS
	}

	if p.Dup && p.QoS == QoS0 {
		return ErrInvalidDup
	}

	return nil
}

// headerRemainingLength is the remaining length contributed by everything
// except the payload: topic string plus packet identifier for QoS > 0.
func (p *PublishInfo) headerRemainingLength() uint32 {
	size := uint32(2 + len(p.Topic))
	if p.QoS > QoS0 {
		size += 2
	}
	return size
}

// PublishPacketSize computes the remaining length and total wire size of
// the PUBLISH packet described by info.
func PublishPacketSize(info *PublishInfo) (remainingLength, packetSize uint32, err error) {
	if info == nil {
		return 0, 0, ErrBadParameter
	}

	if err := info.validate(); err != nil {
		return 0, 0, badParameter(err)
	}

	remainingLength = info.headerRemainingLength() + uint32(len(info.Payload))
	if remainingLength > maxRemainingLen {
		return 0, 0, ErrVarintTooLarge
	}

	packetSize = remainingLength + 1 + uint32(varintSize(remainingLength))
	return remainingLength, packetSize, nil
}

// publishFlags builds the PUBLISH fixed-header flag nibble.
func publishFlags(info *PublishInfo) byte {
	flags := byte(info.QoS&0x03) << 1
	if info.Retain {
		flags |= publishFlagRetain
	}
	if info.Dup {
		flags |= publishFlagDup
	}
	return flags
}

// SerializePublish writes the complete PUBLISH packet, payload included,
// into buf and returns the number of bytes written. packetID must be
// non-zero when QoS > 0 and is ignored otherwise.
func SerializePublish(info *PublishInfo, packetID uint16, buf []byte) (int, error) {
	remainingLength, packetSize, err := PublishPacketSize(info)
	if err != nil {
		return 0, err
	}

	if info.QoS > QoS0 && packetID == 0 {
		return 0, badParameter(ErrInvalidPacketID)
	}

	if uint32(len(buf)) < packetSize {
		return 0, ErrNoMemory
	}

	n := serializePublishHeaderInto(info, packetID, remainingLength, buf)
	n += copy(buf[n:], info.Payload)
	return n, nil
}

// SerializePublishHeader writes only the PUBLISH fixed header, topic and
// packet identifier into buf, so a large payload can be handed to the
// transport directly without copying it through the fixed buffer. The
// returned count covers the header bytes only.
func SerializePublishHeader(info *PublishInfo, packetID uint16, buf []byte) (int, error) {
	remainingLength, _, err := PublishPacketSize(info)
	if err != nil {
		return 0, err
	}

	if info.QoS > QoS0 && packetID == 0 {
		return 0, badParameter(ErrInvalidPacketID)
	}

	headerSize := info.headerRemainingLength() + 1 + uint32(varintSize(remainingLength))
	if uint32(len(buf)) < headerSize {
		return 0, ErrNoMemory
	}

	return serializePublishHeaderInto(info, packetID, remainingLength, buf), nil
}

// serializePublishHeaderInto writes the fixed header, topic and packet
// identifier. The caller has validated info and checked buffer bounds.
func serializePublishHeaderInto(info *PublishInfo, packetID uint16, remainingLength uint32, buf []byte) int {
	buf[0] = byte(PacketPUBLISH)<<4 | publishFlags(info)
	n := 1
	n += encodeVarint(buf[n:], remainingLength)
	n += putString(buf[n:], info.Topic)

	if info.QoS > QoS0 {
		n += putUint16(buf[n:], packetID)
	}

	return n
}

// DeserializePublish parses a complete PUBLISH packet whose body is held in
// packet.Payload. The returned payload aliases packet.Payload; the returned
// packet identifier is zero for QoS 0.
func DeserializePublish(packet *PacketInfo) (PublishInfo, uint16, error) {
	if packet == nil {
		return PublishInfo{}, 0, ErrBadParameter
	}

	if packet.Type != PacketPUBLISH {
		return PublishInfo{}, 0, ErrInvalidPacketType
	}

	if err := packet.validateFlags(); err != nil {
		return PublishInfo{}, 0, ErrBadResponse
	}

	body := packet.Payload
	if uint32(len(body)) != packet.RemainingLength || len(body) < 2 {
		return PublishInfo{}, 0, ErrBadResponse
	}

	topicLen := int(body[0])<<8 | int(body[1])
	if len(body) < 2+topicLen {
		return PublishInfo{}, 0, ErrBadResponse
	}

	info := PublishInfo{
		Topic:  string(body[2 : 2+topicLen]),
		QoS:    packet.QoS(),
		Retain: packet.Retain(),
		Dup:    packet.DUP(),
	}

	if err := ValidateTopicName(info.Topic); err != nil {
		return PublishInfo{}, 0, ErrBadResponse
	}

	rest := body[2+topicLen:]
	var packetID uint16

	if info.QoS > QoS0 {
		if len(rest) < 2 {
			return PublishInfo{}, 0, ErrBadResponse
		}
		packetID = uint16(rest[0])<<8 | uint16(rest[1])
		if packetID == 0 {
			return PublishInfo{}, 0, ErrBadResponse
		}
		rest = rest[2:]
	}

	info.Payload = rest
	return info, packetID, nil
}
