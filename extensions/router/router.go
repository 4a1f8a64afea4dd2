// Package router dispatches inbound MQTT publishes to handlers by topic
// filter. It plugs in as the engine's event handler, so registered
// handlers run synchronously inside the process loop and inherit its
// contract: they must not call back into the engine.
package router

import (
	"github.com/yourslab/mqtt311"
)

// Handler processes one inbound publish.
type Handler func(packetID uint16, publish *mqtt311.PublishInfo)

// Condition defines filtering criteria for message routing.
type Condition struct {
	topicFilter *string
	qos         *mqtt311.QoS
}

// ConditionOption configures a Condition.
type ConditionOption func(*Condition)

// WithTopic sets the topic filter for message matching. Supports MQTT
// wildcards: + (single level) and # (multi level).
func WithTopic(filter string) ConditionOption {
	return func(c *Condition) {
		c.topicFilter = &filter
	}
}

// WithQoS filters messages by the QoS they were delivered with.
func WithQoS(qos mqtt311.QoS) ConditionOption {
	return func(c *Condition) {
		c.qos = &qos
	}
}

// matches checks if a condition matches the publish.
func (c *Condition) matches(publish *mqtt311.PublishInfo) bool {
	if c.topicFilter != nil && !mqtt311.TopicMatch(*c.topicFilter, publish.Topic) {
		return false
	}
	if c.qos != nil && *c.qos != publish.QoS {
		return false
	}
	return true
}

// registration holds a handler with its conditions.
type registration struct {
	handler   Handler
	condition Condition
}

// Router dispatches inbound publishes to handlers based on conditions.
// Registration happens at setup time; routing runs on the engine's single
// thread, so no locking is involved.
type Router struct {
	handlers []registration

	// Fallback, when set, receives publishes no condition matched.
	Fallback Handler
}

// New creates a new Router.
func New() *Router {
	return &Router{}
}

// Handle registers a handler with optional conditions.
//
// Examples:
//
//	r.Handle(handler, router.WithTopic("sensors/#"))
//	r.Handle(handler, router.WithTopic("sensors/#"), router.WithQoS(mqtt311.QoS1))
func (r *Router) Handle(handler Handler, opts ...ConditionOption) {
	var cond Condition
	for _, opt := range opts {
		opt(&cond)
	}

	r.handlers = append(r.handlers, registration{
		handler:   handler,
		condition: cond,
	})
}

// Route dispatches a publish to all matching handlers. Multiple handlers
// may run if multiple conditions match.
func (r *Router) Route(packetID uint16, publish *mqtt311.PublishInfo) {
	if publish == nil {
		return
	}

	matched := false
	for _, reg := range r.handlers {
		if reg.condition.matches(publish) {
			matched = true
			reg.handler(packetID, publish)
		}
	}

	if !matched && r.Fallback != nil {
		r.Fallback(packetID, publish)
	}
}

// Filters returns all unique registered topic filters, ready to feed to
// Client.Subscribe.
func (r *Router) Filters() []string {
	seen := make(map[string]struct{})
	var filters []string

	for _, reg := range r.handlers {
		if reg.condition.topicFilter == nil {
			continue
		}
		if _, ok := seen[*reg.condition.topicFilter]; ok {
			continue
		}
		seen[*reg.condition.topicFilter] = struct{}{}
		filters = append(filters, *reg.condition.topicFilter)
	}

	return filters
}

// Len returns the number of registered handlers.
func (r *Router) Len() int {
	return len(r.handlers)
}

// Clear removes all handlers.
func (r *Router) Clear() {
	r.handlers = r.handlers[:0]
}

// EventHandler returns an engine event handler that routes inbound
// publishes and ignores acknowledgement events.
func (r *Router) EventHandler() mqtt311.EventHandler {
	return func(packet mqtt311.PacketInfo, packetID uint16, publish *mqtt311.PublishInfo) {
		if packet.Type == mqtt311.PacketPUBLISH {
			r.Route(packetID, publish)
		}
	}
}
