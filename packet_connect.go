package mqtt311

import "errors"

// CONNECT packet constants.
// MQTT v3.1.1 spec: Section 3.1.2
const (
	protocolName  = "MQTT"
	protocolLevel = 4
)

// Connect flag bit positions.
const (
	connectFlagCleanSession = 0x02
	connectFlagWillFlag     = 0x04
	connectFlagWillRetain   = 0x20
	connectFlagPasswordFlag = 0x40
	connectFlagUsernameFlag = 0x80
)

// CONNECT packet errors.
var (
	ErrClientIDRequired = errors.New("client ID required with clean session false")
	ErrInvalidWill      = errors.New("invalid will message")
)

// WillInfo describes a last will and testament message carried in the
// CONNECT payload. The server publishes it if the connection terminates
// without a DISCONNECT packet.
// MQTT v3.1.1 spec: Section 3.1.2.5
type WillInfo struct {
	// Topic is the will topic name.
	Topic string

	// Payload is the will message body.
	Payload []byte

	// QoS is the quality of service the will is published with.
	QoS QoS

	// Retain indicates if the will message should be retained.
	Retain bool
}

// validate checks the will fields.
func (w *WillInfo) validate() error {
	if err := ValidateTopicName(w.Topic); err != nil {
		return ErrInvalidWill
	}

	if !w.QoS.Valid() {
		return ErrInvalidWill
	}

	if len(w.Payload) > maxUint16 {
		return ErrInvalidWill
	}

	return nil
}

// ConnectInfo holds the fields of an MQTT CONNECT packet.
// MQTT v3.1.1 spec: Section 3.1
type ConnectInfo struct {
	// ClientID is the client identifier. It may be empty only when
	// CleanSession is true.
	ClientID string

	// CleanSession directs the server to discard any previous session
	// state.
	CleanSession bool

	// KeepAlive is the keep-alive interval in seconds. Zero disables
	// client keep-alive.
	KeepAlive uint16

	// Will is the optional last will and testament.
	Will *WillInfo

	// Username for authentication. Empty means no username.
	Username string

	// Password for authentication. Only sent when Username is set.
	Password []byte
}

// connectFlags returns the connect flags byte.
// MQTT v3.1.1 spec: Section 3.1.2.3
func (c *ConnectInfo) connectFlags() byte {
	var flags byte

	if c.CleanSession {
		flags |= connectFlagCleanSession
	}

	if c.Will != nil {
		flags |= connectFlagWillFlag
		flags |= byte(c.Will.QoS&0x03) << 3
		if c.Will.Retain {
			flags |= connectFlagWillRetain
		}
	}

	if c.Username != "" {
		flags |= connectFlagUsernameFlag
		if c.Password != nil {
			flags |= connectFlagPasswordFlag
		}
	}

	return flags
}

// validate checks the CONNECT fields against MQTT 3.1.1 rules.
func (c *ConnectInfo) validate() error {
	if err := validateString(c.ClientID); err != nil {
		return err
	}

	// A zero-length client ID requires a clean session; the server has no
	// stored state to resume for an anonymous client.
	// MQTT v3.1.1 spec: Section 3.1.3.1
	if c.ClientID == "" && !c.CleanSession {
		return ErrClientIDRequired
	}

	if c.Will != nil {
		if err := c.Will.validate(); err != nil {
			return err
		}
	}

	if c.Username != "" {
		if err := validateString(c.Username); err != nil {
			return err
		}
	}

	if len(c.Password) > maxUint16 {
		return ErrStringTooLong
	}

	return nil
}

// remainingLength computes the remaining length of the CONNECT packet.
func (c *ConnectInfo) remainingLength() uint32 {
	// Variable header: protocol name (6), level (1), flags (1),
	// keep-alive (2).
	size := uint32(10)

	size += uint32(2 + len(c.ClientID))

	if c.Will != nil {
		size += uint32(2 + len(c.Will.Topic))
		size += uint32(2 + len(c.Will.Payload))
	}

	if c.Username != "" {
		size += uint32(2 + len(c.Username))
		if c.Password != nil {
			size += uint32(2 + len(c.Password))
		}
	}

	return size
}

// ConnectPacketSize computes the remaining length and the total wire size
// of the CONNECT packet described by info.
func ConnectPacketSize(info *ConnectInfo) (remainingLength, packetSize uint32, err error) {
	if info == nil {
		return 0, 0, ErrBadParameter
	}

	if err := info.validate(); err != nil {
		return 0, 0, badParameter(err)
	}

	remainingLength = info.remainingLength()
	packetSize = remainingLength + 1 + uint32(varintSize(remainingLength))
	return remainingLength, packetSize, nil
}

// SerializeConnect writes the CONNECT packet described by info into buf and
// returns the number of bytes written. It fails with ErrNoMemory when buf
// cannot hold the complete packet.
func SerializeConnect(info *ConnectInfo, buf []byte) (int, error) {
	remainingLength, packetSize, err := ConnectPacketSize(info)
	if err != nil {
		return 0, err
	}

	if uint32(len(buf)) < packetSize {
		return 0, ErrNoMemory
	}

	// Fixed header.
	buf[0] = byte(PacketCONNECT) << 4
	n := 1
	n += encodeVarint(buf[n:], remainingLength)

	// Variable header.
	n += putString(buf[n:], protocolName)
	buf[n] = protocolLevel
	n++
	buf[n] = info.connectFlags()
	n++
	n += putUint16(buf[n:], info.KeepAlive)

	// Payload.
	n += putString(buf[n:], info.ClientID)

	if info.Will != nil {
		n += putString(buf[n:], info.Will.Topic)
		n += putBinary(buf[n:], info.Will.Payload)
	}

	if info.Username != "" {
		n += putString(buf[n:], info.Username)
		if info.Password != nil {
			n += putBinary(buf[n:], info.Password)
		}
	}

	return n, nil
}
