package mqtt311

// ReadIncomingPacket reads the fixed header of exactly one incoming MQTT
// packet via recv: one byte for the type and flags, then the remaining
// length one byte at a time, since the transport may deliver single bytes.
//
// It returns ErrNoDataAvailable when the first read yields no bytes,
// ErrRecvFailed on a transport error, and ErrBadResponse on a malformed
// remaining length or an unknown packet type. The variable header and
// payload are NOT read; the caller fetches RemainingLength bytes next.
func ReadIncomingPacket(recv RecvFunc) (PacketInfo, error) {
	if recv == nil {
		return PacketInfo{}, ErrBadParameter
	}

	var first [1]byte
	n, err := recv(first[:])
	if err != nil {
		return PacketInfo{}, ErrRecvFailed
	}
	if n == 0 {
		return PacketInfo{}, ErrNoDataAvailable
	}

	packet := PacketInfo{
		Type:  PacketType(first[0] >> 4),
		Flags: first[0] & 0x0F,
	}

	if !packet.Type.Valid() {
		return packet, ErrBadResponse
	}

	// Decode the remaining length incrementally. A read of zero bytes here
	// means the rest of the header is still in flight; keep polling.
	var dec varintDecoder
	var b [1]byte

	for {
		n, err := recv(b[:])
		if err != nil {
			return packet, ErrRecvFailed
		}
		if n == 0 {
			continue
		}

		done, err := dec.feed(b[0])
		if err != nil {
			return packet, ErrBadResponse
		}
		if done {
			break
		}
	}

	packet.RemainingLength = dec.value
	return packet, nil
}
