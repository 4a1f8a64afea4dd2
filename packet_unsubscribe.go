package mqtt311

// unsubscribeRemainingLength computes the remaining length of an
// UNSUBSCRIBE packet: packet identifier plus one filter string per entry.
func unsubscribeRemainingLength(filters []string) uint32 {
	size := uint32(2)
	for _, f := range filters {
		size += uint32(2 + len(f))
	}
	return size
}

// UnsubscribePacketSize computes the remaining length and total wire size
// of an UNSUBSCRIBE packet for the given topic filters.
func UnsubscribePacketSize(filters []string) (remainingLength, packetSize uint32, err error) {
	if len(filters) == 0 {
		return 0, 0, badParameter(ErrNoSubscriptions)
	}

	for _, f := range filters {
		if err := ValidateTopicFilter(f); err != nil {
			return 0, 0, badParameter(err)
		}
	}

	remainingLength = unsubscribeRemainingLength(filters)
	if remainingLength > maxRemainingLen {
		return 0, 0, ErrVarintTooLarge
	}

	packetSize = remainingLength + 1 + uint32(varintSize(remainingLength))
	return remainingLength, packetSize, nil
}

// SerializeUnsubscribe writes an UNSUBSCRIBE packet for the given topic
// filters into buf and returns the number of bytes written.
// MQTT v3.1.1 spec: Section 3.10
func SerializeUnsubscribe(filters []string, packetID uint16, buf []byte) (int, error) {
	remainingLength, packetSize, err := UnsubscribePacketSize(filters)
	if err != nil {
		return 0, err
	}

	if packetID == 0 {
		return 0, badParameter(ErrInvalidPacketID)
	}

	if uint32(len(buf)) < packetSize {
		return 0, ErrNoMemory
	}

	buf[0] = byte(PacketUNSUBSCRIBE)<<4 | pubrelFlags
	n := 1
	n += encodeVarint(buf[n:], remainingLength)
	n += putUint16(buf[n:], packetID)

	for _, f := range filters {
		n += putString(buf[n:], f)
	}

	return n, nil
}
