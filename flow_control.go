package mqtt311

// FlowController bounds the number of outbound QoS 1 and 2 publishes
// awaiting acknowledgement, so a fast publisher fails early instead of
// exhausting the tracker's slot table from under inbound exchanges.
//
// The zero value is unlimited until SetLimit is called. Like the rest of
// the engine it is single-threaded by contract and takes no locks.
type FlowController struct {
	limit    int
	inFlight int
}

// NewFlowController creates a flow controller admitting at most limit
// outstanding outbound publishes. A non-positive limit admits everything.
func NewFlowController(limit int) *FlowController {
	return &FlowController{limit: limit}
}

// SetLimit replaces the admission limit.
func (f *FlowController) SetLimit(limit int) {
	f.limit = limit
}

// InFlight returns the number of outstanding outbound publishes.
func (f *FlowController) InFlight() int {
	return f.inFlight
}

// TryAcquire claims one slot. It reports false when the limit is reached.
func (f *FlowController) TryAcquire() bool {
	if f.limit > 0 && f.inFlight >= f.limit {
		return false
	}
	f.inFlight++
	return true
}

// Release returns one slot when an outbound publish completes.
func (f *FlowController) Release() {
	if f.inFlight > 0 {
		f.inFlight--
	}
}

// Reset clears the in-flight count.
func (f *FlowController) Reset() {
	f.inFlight = 0
}
