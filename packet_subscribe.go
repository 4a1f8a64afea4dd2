package mqtt311

import "errors"

// ErrNoSubscriptions is returned when a SUBSCRIBE or UNSUBSCRIBE packet is
// built with an empty subscription list.
var ErrNoSubscriptions = errors.New("at least one subscription is required")

// Subscription pairs a topic filter with a requested maximum QoS.
// MQTT v3.1.1 spec: Section 3.8.3
type Subscription struct {
	// Filter is the topic filter, possibly containing wildcards.
	Filter string

	// QoS is the maximum QoS the server may use when forwarding matching
	// messages.
	QoS QoS
}

// validate checks a single subscription entry.
func (s *Subscription) validate() error {
	if err := ValidateTopicFilter(s.Filter); err != nil {
		return err
	}

	if !s.QoS.Valid() {
		return ErrInvalidQoS
	}

	return nil
}

// subscribeRemainingLength computes the remaining length of a SUBSCRIBE
// packet: packet identifier plus, per entry, the filter string and the
// requested QoS byte.
func subscribeRemainingLength(subs []Subscription) uint32 {
	size := uint32(2)
	for i := range subs {
		size += uint32(2+len(subs[i].Filter)) + 1
	}
	return size
}

// SubscribePacketSize computes the remaining length and total wire size of
// a SUBSCRIBE packet for the given subscription list.
func SubscribePacketSize(subs []Subscription) (remainingLength, packetSize uint32, err error) {
	if len(subs) == 0 {
		return 0, 0, badParameter(ErrNoSubscriptions)
	}

	for i := range subs {
		if err := subs[i].validate(); err != nil {
			return 0, 0, badParameter(err)
		}
	}

	remainingLength = subscribeRemainingLength(subs)
	if remainingLength > maxRemainingLen {
		return 0, 0, ErrVarintTooLarge
	}

	packetSize = remainingLength + 1 + uint32(varintSize(remainingLength))
	return remainingLength, packetSize, nil
}

// SerializeSubscribe writes a SUBSCRIBE packet for the given subscriptions
// into buf and returns the number of bytes written.
// MQTT v3.1.1 spec: Section 3.8
func SerializeSubscribe(subs []Subscription, packetID uint16, buf []byte) (int, error) {
	remainingLength, packetSize, err := SubscribePacketSize(subs)
	if err != nil {
		return 0, err
	}

	if packetID == 0 {
		return 0, badParameter(ErrInvalidPacketID)
	}

	if uint32(len(buf)) < packetSize {
		return 0, ErrNoMemory
	}

	buf[0] = byte(PacketSUBSCRIBE)<<4 | pubrelFlags
	n := 1
	n += encodeVarint(buf[n:], remainingLength)
	n += putUint16(buf[n:], packetID)

	for i := range subs {
		n += putString(buf[n:], subs[i].Filter)
		buf[n] = byte(subs[i].QoS)
		n++
	}

	return n, nil
}
