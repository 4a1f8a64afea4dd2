package mqtt311

// disconnectPacketSize is the total wire size of a DISCONNECT packet: the
// fixed header only.
const disconnectPacketSize = 2

// DisconnectPacketSize returns the total wire size of a DISCONNECT packet.
func DisconnectPacketSize() uint32 {
	return disconnectPacketSize
}

// SerializeDisconnect writes a DISCONNECT packet into buf and returns the
// number of bytes written.
// MQTT v3.1.1 spec: Section 3.14
func SerializeDisconnect(buf []byte) (int, error) {
	if len(buf) < disconnectPacketSize {
		return 0, ErrNoMemory
	}

	buf[0] = byte(PacketDISCONNECT) << 4
	buf[1] = 0
	return disconnectPacketSize, nil
}
