package mqtt311

// MetricLabels represents key-value pairs for metric labels.
type MetricLabels map[string]string

// Metrics defines the interface for collecting engine metrics.
type Metrics interface {
	// Counter returns a counter metric.
	Counter(name string, labels MetricLabels) Counter

	// Gauge returns a gauge metric.
	Gauge(name string, labels MetricLabels) Gauge
}

// Counter is a monotonically increasing counter.
type Counter interface {
	// Inc increments the counter by 1.
	Inc()

	// Add adds the given value to the counter.
	Add(delta float64)

	// Value returns the current value.
	Value() float64
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	// Set sets the gauge to the given value.
	Set(value float64)

	// Inc increments the gauge by 1.
	Inc()

	// Dec decrements the gauge by 1.
	Dec()

	// Value returns the current value.
	Value() float64
}

// Standard metric names for the client engine.
const (
	// MetricPacketsSent is the total number of control packets sent.
	MetricPacketsSent = "mqtt_packets_sent_total"

	// MetricPacketsReceived is the total number of control packets
	// received.
	MetricPacketsReceived = "mqtt_packets_received_total"

	// MetricBytesSent is the total bytes sent.
	MetricBytesSent = "mqtt_bytes_sent_total"

	// MetricBytesReceived is the total bytes received.
	MetricBytesReceived = "mqtt_bytes_received_total"

	// MetricPublishesInflight is the current number of unacknowledged
	// QoS >= 1 exchanges.
	MetricPublishesInflight = "mqtt_publishes_inflight"

	// MetricKeepAliveTimeouts is the total number of keep-alive timeouts.
	MetricKeepAliveTimeouts = "mqtt_keep_alive_timeouts_total"
)

// Standard metric labels.
const (
	// LabelPacketType is the packet type label.
	LabelPacketType = "packet_type"

	// LabelQoS is the QoS level label.
	LabelQoS = "qos"
)

// NoOpMetrics is a no-op implementation of Metrics. It is the engine
// default.
type NoOpMetrics struct{}

// Counter returns a no-op counter.
func (n *NoOpMetrics) Counter(_ string, _ MetricLabels) Counter {
	return &noOpCounter{}
}

// Gauge returns a no-op gauge.
func (n *NoOpMetrics) Gauge(_ string, _ MetricLabels) Gauge {
	return &noOpGauge{}
}

type noOpCounter struct{}

func (n *noOpCounter) Inc()           {}
func (n *noOpCounter) Add(_ float64)  {}
func (n *noOpCounter) Value() float64 { return 0 }

type noOpGauge struct{}

func (n *noOpGauge) Set(_ float64)  {}
func (n *noOpGauge) Inc()           {}
func (n *noOpGauge) Dec()           {}
func (n *noOpGauge) Value() float64 { return 0 }

// engineMetrics provides convenience recorders for the client engine.
type engineMetrics struct {
	metrics Metrics
}

// packetSent records a sent control packet and its wire size.
func (e *engineMetrics) packetSent(packetType PacketType, bytes int) {
	labels := MetricLabels{LabelPacketType: packetType.String()}
	e.metrics.Counter(MetricPacketsSent, labels).Inc()
	e.metrics.Counter(MetricBytesSent, nil).Add(float64(bytes))
}

// packetReceived records a received control packet and its wire size.
func (e *engineMetrics) packetReceived(packetType PacketType, bytes int) {
	labels := MetricLabels{LabelPacketType: packetType.String()}
	e.metrics.Counter(MetricPacketsReceived, labels).Inc()
	e.metrics.Counter(MetricBytesReceived, nil).Add(float64(bytes))
}

// inflight records the current number of open QoS >= 1 exchanges.
func (e *engineMetrics) inflight(n int) {
	e.metrics.Gauge(MetricPublishesInflight, nil).Set(float64(n))
}

// keepAliveTimeout records a missed PINGRESP.
func (e *engineMetrics) keepAliveTimeout() {
	e.metrics.Counter(MetricKeepAliveTimeouts, nil).Inc()
}
