package mqtt311

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serializeAndParse pushes info through the serializer and back through
// the deserializer the way the engine's wire path would.
func serializeAndParse(t *testing.T, info *PublishInfo, packetID uint16) (PublishInfo, uint16) {
	t.Helper()

	buf := make([]byte, 1024)
	n, err := SerializePublish(info, packetID, buf)
	require.NoError(t, err)

	remaining, read, err := decodeVarint(buf[1:n])
	require.NoError(t, err)

	packet := PacketInfo{
		Type:            PacketType(buf[0] >> 4),
		Flags:           buf[0] & 0x0F,
		RemainingLength: remaining,
		Payload:         buf[1+read : n],
	}
	require.Equal(t, PacketPUBLISH, packet.Type)

	parsed, id, err := DeserializePublish(&packet)
	require.NoError(t, err)
	return parsed, id
}

func TestPublishRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		info     PublishInfo
		packetID uint16
	}{
		{
			name: "qos0",
			info: PublishInfo{Topic: "a/b", Payload: []byte("hello")},
		},
		{
			name:     "qos1 retained",
			info:     PublishInfo{Topic: "x", Payload: []byte{0x01, 0x02}, QoS: QoS1, Retain: true},
			packetID: 7,
		},
		{
			name:     "qos2 dup",
			info:     PublishInfo{Topic: "dev/1/state", Payload: []byte("on"), QoS: QoS2, Dup: true},
			packetID: 0x1234,
		},
		{
			name: "empty payload",
			info: PublishInfo{Topic: "empty"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, id := serializeAndParse(t, &tt.info, tt.packetID)

			assert.Equal(t, tt.info.Topic, parsed.Topic)
			assert.Equal(t, tt.info.QoS, parsed.QoS)
			assert.Equal(t, tt.info.Retain, parsed.Retain)
			assert.Equal(t, tt.info.Dup, parsed.Dup)
			if len(tt.info.Payload) == 0 {
				assert.Empty(t, parsed.Payload)
			} else {
				assert.Equal(t, tt.info.Payload, parsed.Payload)
			}
			assert.Equal(t, tt.packetID, id)
		})
	}
}

func TestSerializePublishWireFormat(t *testing.T) {
	info := PublishInfo{
		Topic:   "a/b",
		Payload: []byte("hi"),
		QoS:     QoS1,
		Retain:  true,
	}

	buf := make([]byte, 64)
	n, err := SerializePublish(&info, 0x1234, buf)
	require.NoError(t, err)

	want := []byte{
		0x33, 9, // PUBLISH | QoS1 | RETAIN, remaining length
		0x00, 0x03, 'a', '/', 'b', // topic
		0x12, 0x34, // packet identifier
		'h', 'i', // payload
	}
	assert.Equal(t, want, buf[:n])
}

func TestSerializePublishErrors(t *testing.T) {
	buf := make([]byte, 64)

	t.Run("qos1 with zero packet id", func(t *testing.T) {
		info := PublishInfo{Topic: "a", QoS: QoS1}
		_, err := SerializePublish(&info, 0, buf)
		assert.ErrorIs(t, err, ErrBadParameter)
		assert.ErrorIs(t, err, ErrInvalidPacketID)
	})

	t.Run("invalid qos", func(t *testing.T) {
		info := PublishInfo{Topic: "a", QoS: QoS(3)}
		_, err := SerializePublish(&info, 1, buf)
		assert.ErrorIs(t, err, ErrBadParameter)
		assert.ErrorIs(t, err, ErrInvalidQoS)
	})

	t.Run("dup on qos0", func(t *testing.T) {
		info := PublishInfo{Topic: "a", Dup: true}
		_, err := SerializePublish(&info, 0, buf)
		assert.ErrorIs(t, err, ErrBadParameter)
		assert.ErrorIs(t, err, ErrInvalidDup)
	})

	t.Run("wildcard topic", func(t *testing.T) {
		info := PublishInfo{Topic: "a/#"}
		_, err := SerializePublish(&info, 0, buf)
		assert.ErrorIs(t, err, ErrBadParameter)
		assert.ErrorIs(t, err, ErrInvalidTopicName)
	})

	t.Run("buffer too small", func(t *testing.T) {
		info := PublishInfo{Topic: "a", Payload: []byte("0123456789")}
		_, err := SerializePublish(&info, 0, make([]byte, 4))
		assert.ErrorIs(t, err, ErrNoMemory)
	})
}

func TestSerializePublishHeader(t *testing.T) {
	info := PublishInfo{
		Topic:   "t",
		Payload: make([]byte, 300),
		QoS:     QoS1,
	}

	buf := make([]byte, 16)
	n, err := SerializePublishHeader(&info, 9, buf)
	require.NoError(t, err)

	// Remaining length covers topic, packet id and the payload that will
	// be sent separately; header bytes themselves exclude the payload.
	remaining, read, err := decodeVarint(buf[1:n])
	require.NoError(t, err)
	assert.Equal(t, uint32(2+1+2+300), remaining)
	assert.Equal(t, 1+read+3+2, n)

	t.Run("header buffer too small", func(t *testing.T) {
		_, err := SerializePublishHeader(&info, 9, make([]byte, 4))
		assert.ErrorIs(t, err, ErrNoMemory)
	})
}

func TestDeserializePublishErrors(t *testing.T) {
	t.Run("wrong type", func(t *testing.T) {
		packet := &PacketInfo{Type: PacketPUBACK, RemainingLength: 2, Payload: []byte{0, 1}}
		_, _, err := DeserializePublish(packet)
		assert.ErrorIs(t, err, ErrInvalidPacketType)
	})

	t.Run("qos3 flags", func(t *testing.T) {
		packet := &PacketInfo{Type: PacketPUBLISH, Flags: 0x06, RemainingLength: 5, Payload: []byte{0x00, 0x01, 'a', 0x00, 0x01}}
		_, _, err := DeserializePublish(packet)
		assert.ErrorIs(t, err, ErrBadResponse)
	})

	t.Run("dup with qos0 flags", func(t *testing.T) {
		packet := &PacketInfo{Type: PacketPUBLISH, Flags: 0x08, RemainingLength: 3, Payload: []byte{0x00, 0x01, 'a'}}
		_, _, err := DeserializePublish(packet)
		assert.ErrorIs(t, err, ErrBadResponse)
	})

	t.Run("truncated topic", func(t *testing.T) {
		packet := &PacketInfo{Type: PacketPUBLISH, RemainingLength: 3, Payload: []byte{0x00, 0x09, 'a'}}
		_, _, err := DeserializePublish(packet)
		assert.ErrorIs(t, err, ErrBadResponse)
	})

	t.Run("missing packet id", func(t *testing.T) {
		packet := &PacketInfo{Type: PacketPUBLISH, Flags: 0x02, RemainingLength: 3, Payload: []byte{0x00, 0x01, 'a'}}
		_, _, err := DeserializePublish(packet)
		assert.ErrorIs(t, err, ErrBadResponse)
	})

	t.Run("zero packet id", func(t *testing.T) {
		packet := &PacketInfo{Type: PacketPUBLISH, Flags: 0x02, RemainingLength: 5, Payload: []byte{0x00, 0x01, 'a', 0x00, 0x00}}
		_, _, err := DeserializePublish(packet)
		assert.ErrorIs(t, err, ErrBadResponse)
	})

	t.Run("length mismatch", func(t *testing.T) {
		packet := &PacketInfo{Type: PacketPUBLISH, RemainingLength: 10, Payload: []byte{0x00, 0x01, 'a'}}
		_, _, err := DeserializePublish(packet)
		assert.ErrorIs(t, err, ErrBadResponse)
	})

	t.Run("wildcard in topic", func(t *testing.T) {
		packet := &PacketInfo{Type: PacketPUBLISH, RemainingLength: 3, Payload: []byte{0x00, 0x01, '#'}}
		_, _, err := DeserializePublish(packet)
		assert.ErrorIs(t, err, ErrBadResponse)
	})
}

func BenchmarkSerializePublish(b *testing.B) {
	info := PublishInfo{Topic: "bench/topic", Payload: make([]byte, 128), QoS: QoS1}
	buf := make([]byte, 256)

	b.ReportAllocs()
	for b.Loop() {
		_, _ = SerializePublish(&info, 42, buf)
	}
}

func BenchmarkDeserializePublish(b *testing.B) {
	info := PublishInfo{Topic: "bench/topic", Payload: make([]byte, 128), QoS: QoS1}
	buf := make([]byte, 256)
	n, _ := SerializePublish(&info, 42, buf)

	remaining, read, _ := decodeVarint(buf[1:n])
	packet := PacketInfo{
		Type:            PacketPUBLISH,
		Flags:           buf[0] & 0x0F,
		RemainingLength: remaining,
		Payload:         buf[1+read : n],
	}

	b.ReportAllocs()
	for b.Loop() {
		_, _, _ = DeserializePublish(&packet)
	}
}

func FuzzDeserializePublish(f *testing.F) {
	f.Add(byte(0x00), []byte{0x00, 0x01, 'a', 'x'})
	f.Add(byte(0x02), []byte{0x00, 0x01, 'a', 0x00, 0x01})
	f.Add(byte(0x0D), []byte{0x00, 0x03, 'a', '/', 'b', 0x12, 0x34, 'p'})
	f.Add(byte(0x06), []byte{0x00, 0x00})

	f.Fuzz(func(_ *testing.T, flags byte, body []byte) {
		packet := PacketInfo{
			Type:            PacketPUBLISH,
			Flags:           flags & 0x0F,
			RemainingLength: uint32(len(body)),
			Payload:         body,
		}
		_, _, _ = DeserializePublish(&packet)
	})
}
