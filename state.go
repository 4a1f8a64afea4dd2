package mqtt311

// MaxInflight is the capacity of the publish state tracker: the maximum
// number of QoS 1 and QoS 2 exchanges, outbound and inbound combined, that
// may be awaiting acknowledgement at once.
const MaxInflight = 10

// Originator identifies which side of the connection started a publish
// exchange, or which direction an acknowledgement packet travelled.
type Originator byte

const (
	// OriginatorSend marks packets this client sent.
	OriginatorSend Originator = 0
	// OriginatorReceive marks packets the server sent.
	OriginatorReceive Originator = 1
)

// String returns the string representation of the originator.
func (o Originator) String() string {
	switch o {
	case OriginatorSend:
		return "send"
	case OriginatorReceive:
		return "receive"
	default:
		return "unknown"
	}
}

// PublishState is the position of an in-flight publish exchange in its
// acknowledgement sequence.
type PublishState byte

// Publish exchange states. The Pending states wait on the peer; the Send
// states wait on this client's next outbound acknowledgement.
const (
	StateInvalid PublishState = iota
	StatePublishSend
	StatePubAckPending
	StatePubRecPending
	StatePubRelPending
	StatePubCompPending
	StatePubAckSend
	StatePubRecSend
	StatePubRelSend
	StatePubCompSend
	StatePublishDone
	StateNull
)

// String returns the string representation of the publish state.
func (s PublishState) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StatePublishSend:
		return "publish-send"
	case StatePubAckPending:
		return "puback-pending"
	case StatePubRecPending:
		return "pubrec-pending"
	case StatePubRelPending:
		return "pubrel-pending"
	case StatePubCompPending:
		return "pubcomp-pending"
	case StatePubAckSend:
		return "puback-send"
	case StatePubRecSend:
		return "pubrec-send"
	case StatePubRelSend:
		return "pubrel-send"
	case StatePubCompSend:
		return "pubcomp-send"
	case StatePublishDone:
		return "publish-done"
	case StateNull:
		return "null"
	default:
		return "unknown"
	}
}

// publishRecord is one slot of the tracker table.
type publishRecord struct {
	packetID   uint16
	qos        QoS
	state      PublishState
	originator Originator
}

// Tracker records the acknowledgement progress of every in-flight QoS 1
// and QoS 2 publish exchange on one connection.
//
// Storage is a fixed-capacity slot table with a free list of indices;
// lookups walk the live slots. No two live records share the same
// (packetID, originator) pair. Records are created when an outbound
// publish is reserved before its first send or when an inbound publish
// arrives, and destroyed when the exchange reaches StatePublishDone.
//
// The zero value is empty and ready to use. Tracker is not safe for
// concurrent use; the engine that owns it is single-threaded by contract.
type Tracker struct {
	slots [MaxInflight]publishRecord
	free  [MaxInflight]uint8
	nfree int
	init  bool
}

// ensureInit lazily builds the free list so the zero value works.
func (t *Tracker) ensureInit() {
	if t.init {
		return
	}
	for i := range t.free {
		t.free[i] = uint8(i)
	}
	t.nfree = MaxInflight
	t.init = true
}

// Reset discards every record.
func (t *Tracker) Reset() {
	*t = Tracker{}
	t.ensureInit()
}

// find returns the live record for (packetID, originator).
func (t *Tracker) find(packetID uint16, originator Originator) *publishRecord {
	for i := range t.slots {
		rec := &t.slots[i]
		if rec.state != StateInvalid && rec.packetID == packetID && rec.originator == originator {
			return rec
		}
	}
	return nil
}

// alloc takes a slot off the free list.
func (t *Tracker) alloc() *publishRecord {
	t.ensureInit()
	if t.nfree == 0 {
		return nil
	}
	t.nfree--
	return &t.slots[t.free[t.nfree]]
}

// release returns a record's slot to the free list.
func (t *Tracker) release(rec *publishRecord) {
	for i := range t.slots {
		if &t.slots[i] == rec {
			t.free[t.nfree] = uint8(i)
			t.nfree++
			break
		}
	}
	*rec = publishRecord{}
}

// InFlight returns the number of live records.
func (t *Tracker) InFlight() int {
	t.ensureInit()
	return MaxInflight - t.nfree
}

// Lookup returns the current state of the exchange for
// (packetID, originator), if one is live.
func (t *Tracker) Lookup(packetID uint16, originator Originator) (PublishState, bool) {
	rec := t.find(packetID, originator)
	if rec == nil {
		return StateInvalid, false
	}
	return rec.state, true
}

// ReservePublish registers a new outbound QoS 1 or 2 publish before its
// first send, in StatePublishSend. It fails with ErrNoMemory when the
// table is full and with ErrIllegalState when the packet identifier is
// already in flight in the same direction.
func (t *Tracker) ReservePublish(packetID uint16, qos QoS) error {
	if packetID == 0 || qos == QoS0 || !qos.Valid() {
		return ErrBadParameter
	}

	if t.find(packetID, OriginatorSend) != nil {
		return ErrIllegalState
	}

	rec := t.alloc()
	if rec == nil {
		return ErrNoMemory
	}

	*rec = publishRecord{
		packetID:   packetID,
		qos:        qos,
		state:      StatePublishSend,
		originator: OriginatorSend,
	}
	return nil
}

// Release destroys the record for (packetID, originator) regardless of its
// state. The engine uses it to retire a reserved outbound publish whose
// send failed, so a retry can use a fresh identifier.
func (t *Tracker) Release(packetID uint16, originator Originator) {
	if rec := t.find(packetID, originator); rec != nil {
		t.release(rec)
	}
}

// UpdatePublish advances the tracker for a PUBLISH event: originator
// OriginatorSend after this client successfully sent a QoS >= 1 publish,
// OriginatorReceive after one arrived. It returns the produced state, which
// for inbound publishes names the acknowledgement the engine owes
// (StatePubAckSend or StatePubRecSend).
//
// dup reports an inbound duplicate: the identifier is already tracked, the
// stored state is re-driven, and the user callback must not fire again.
func (t *Tracker) UpdatePublish(packetID uint16, originator Originator, qos QoS) (next PublishState, dup bool, err error) {
	if packetID == 0 || qos == QoS0 || !qos.Valid() {
		return StateNull, false, ErrBadParameter
	}

	switch originator {
	case OriginatorSend:
		rec := t.find(packetID, OriginatorSend)
		if rec == nil || rec.state != StatePublishSend {
			return StateNull, false, ErrIllegalState
		}
		if qos == QoS1 {
			rec.state = StatePubAckPending
		} else {
			rec.state = StatePubRecPending
		}
		return rec.state, false, nil

	case OriginatorReceive:
		if rec := t.find(packetID, OriginatorReceive); rec != nil {
			// A redelivered QoS 2 publish: the stored exchange stands and
			// the owed acknowledgement is re-driven.
			switch rec.state {
			case StatePubRecSend, StatePubRelPending:
				return StatePubRecSend, true, nil
			case StatePubAckSend:
				return StatePubAckSend, true, nil
			default:
				return StateNull, false, ErrIllegalState
			}
		}

		rec := t.alloc()
		if rec == nil {
			return StateNull, false, ErrNoMemory
		}

		state := StatePubAckSend
		if qos == QoS2 {
			state = StatePubRecSend
		}
		*rec = publishRecord{
			packetID:   packetID,
			qos:        qos,
			state:      state,
			originator: OriginatorReceive,
		}
		return state, false, nil

	default:
		return StateNull, false, ErrBadParameter
	}
}

// calculateAck yields the state an exchange moves to when an
// acknowledgement of ackType travels in direction origin, given the
// exchange's current state. StateNull means the event is illegal.
func calculateAck(current PublishState, ackType PacketType, origin Originator) PublishState {
	switch {
	case ackType == PacketPUBACK && origin == OriginatorReceive && current == StatePubAckPending:
		return StatePublishDone
	case ackType == PacketPUBREC && origin == OriginatorReceive && current == StatePubRecPending:
		return StatePubRelSend
	case ackType == PacketPUBREL && origin == OriginatorSend && current == StatePubRelSend:
		return StatePubCompPending
	case ackType == PacketPUBCOMP && origin == OriginatorReceive && current == StatePubCompPending:
		return StatePublishDone

	case ackType == PacketPUBACK && origin == OriginatorSend && current == StatePubAckSend:
		return StatePublishDone
	case ackType == PacketPUBREC && origin == OriginatorSend && current == StatePubRecSend:
		return StatePubRelPending
	case ackType == PacketPUBREC && origin == OriginatorSend && current == StatePubRelPending:
		// Re-sent PUBREC for a duplicate publish; the exchange stands.
		return StatePubRelPending
	case ackType == PacketPUBREL && origin == OriginatorReceive && current == StatePubRelPending:
		return StatePubCompSend
	case ackType == PacketPUBCOMP && origin == OriginatorSend && current == StatePubCompSend:
		return StatePublishDone

	default:
		return StateNull
	}
}

// recordOwner maps an acknowledgement event to the originator of the
// publish record it belongs to: PUBACK, PUBREC and PUBCOMP received from
// the server acknowledge publishes this client sent; PUBREL received from
// the server belongs to a publish this client received, and conversely for
// acknowledgements this client sends.
func recordOwner(ackType PacketType, origin Originator) Originator {
	inbound := origin == OriginatorReceive
	if ackType == PacketPUBREL {
		inbound = !inbound
	}
	if inbound {
		return OriginatorSend
	}
	return OriginatorReceive
}

// UpdateAck advances the tracker for an acknowledgement event. ackType is
// one of PUBACK, PUBREC, PUBREL, PUBCOMP; origin says whether this client
// sent or received it. The record is destroyed when the produced state is
// StatePublishDone.
//
// A received acknowledgement for an unknown identifier is a protocol
// violation by the peer (ErrBadResponse); any other impossible event is
// ErrIllegalState.
func (t *Tracker) UpdateAck(packetID uint16, ackType PacketType, origin Originator) (PublishState, error) {
	switch ackType {
	case PacketPUBACK, PacketPUBREC, PacketPUBREL, PacketPUBCOMP:
	default:
		return StateNull, ErrBadParameter
	}

	if packetID == 0 {
		return StateNull, ErrBadParameter
	}

	rec := t.find(packetID, recordOwner(ackType, origin))
	if rec == nil {
		if origin == OriginatorReceive {
			return StateNull, ErrBadResponse
		}
		return StateNull, ErrIllegalState
	}

	next := calculateAck(rec.state, ackType, origin)
	if next == StateNull {
		return StateNull, ErrIllegalState
	}

	if next == StatePublishDone {
		t.release(rec)
	} else {
		rec.state = next
	}

	return next, nil
}
