package mqtt311

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElapsedUnsignedArithmetic(t *testing.T) {
	tests := []struct {
		name  string
		start uint32
		later uint32
		want  uint32
	}{
		{name: "simple", start: 100, later: 350, want: 250},
		{name: "zero", start: 42, later: 42, want: 0},
		{name: "across wrap", start: 0xFFFFFF00, later: 0x00000100, want: 0x200},
		{name: "just before wrap", start: 0xFFFFFFFF, later: 0x00000000, want: 1},
		{name: "large interval", start: 0x80000000, later: 0xFFFFFFFF, want: 0x7FFFFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, elapsed(tt.later, tt.start))
		})
	}
}

func TestKeepAlivePingDue(t *testing.T) {
	k := keepAliveState{intervalSec: 1, respTimeoutMs: 500}

	k.packetSent(0)
	assert.False(t, k.pingDue(999))
	assert.True(t, k.pingDue(1000))
	assert.True(t, k.pingDue(5000))

	t.Run("not while waiting for response", func(t *testing.T) {
		k.pingSent(1000)
		assert.False(t, k.pingDue(3000))
	})

	t.Run("disabled interval", func(t *testing.T) {
		off := keepAliveState{}
		off.packetSent(0)
		assert.False(t, off.pingDue(1 << 30))
	})
}

func TestKeepAlivePingDueAcrossWrap(t *testing.T) {
	k := keepAliveState{intervalSec: 1}

	k.packetSent(0xFFFFFE0C) // 500 ms before the clock wraps
	assert.False(t, k.pingDue(0xFFFFFFFF))
	assert.True(t, k.pingDue(0x000001F8)) // 1004 ms later, numerically smaller
}

func TestKeepAliveTimedOut(t *testing.T) {
	k := keepAliveState{intervalSec: 1, respTimeoutMs: 500}

	assert.False(t, k.timedOut(1000), "no ping outstanding")

	k.pingSent(0)
	assert.False(t, k.timedOut(499))
	assert.True(t, k.timedOut(500))
	assert.True(t, k.timedOut(1000))

	k.pingAcked()
	assert.False(t, k.timedOut(10000))
}

func TestKeepAliveTimedOutAcrossWrap(t *testing.T) {
	k := keepAliveState{intervalSec: 1, respTimeoutMs: 500}

	k.pingSent(0xFFFFFFC0)
	assert.False(t, k.timedOut(0xFFFFFFFF))
	assert.True(t, k.timedOut(0x000001C4))
}
