package mqtt311

// clientOptions holds the configurable parts of a Client.
type clientOptions struct {
	clientID          string
	cleanSession      bool
	keepAliveSec      uint16
	pingRespTimeoutMs uint32
	will              *WillInfo
	username          string
	password          []byte
	maxOutbound       int
	logger            Logger
	metrics           Metrics
}

// defaultOptions returns the options applied before user options.
func defaultOptions() clientOptions {
	return clientOptions{
		cleanSession:      true,
		pingRespTimeoutMs: DefaultPingRespTimeout,
		maxOutbound:       MaxInflight,
		logger:            NewNoOpLogger(),
		metrics:           &NoOpMetrics{},
	}
}

// Option configures a Client.
type Option func(*clientOptions)

// applyOptions builds the effective options.
func applyOptions(opts ...Option) clientOptions {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// WithClientID sets the client identifier sent in CONNECT. An empty client
// ID is only legal together with a clean session.
func WithClientID(clientID string) Option {
	return func(o *clientOptions) {
		o.clientID = clientID
	}
}

// WithCleanSession directs the server to discard any previous session
// state. The default is true.
func WithCleanSession(clean bool) Option {
	return func(o *clientOptions) {
		o.cleanSession = clean
	}
}

// WithKeepAlive sets the keep-alive interval in seconds. Zero (the
// default) disables keep-alive: no PINGREQ is ever sent and no timeout is
// tracked.
func WithKeepAlive(seconds uint16) Option {
	return func(o *clientOptions) {
		o.keepAliveSec = seconds
	}
}

// WithPingRespTimeout sets how long, in milliseconds, the process loop
// waits for a PINGRESP before reporting ErrKeepAliveTimeout.
func WithPingRespTimeout(ms uint32) Option {
	return func(o *clientOptions) {
		o.pingRespTimeoutMs = ms
	}
}

// WithWill sets the last will and testament carried in CONNECT.
func WithWill(will *WillInfo) Option {
	return func(o *clientOptions) {
		o.will = will
	}
}

// WithCredentials sets the username and password sent in CONNECT. A nil
// password sends the username alone.
func WithCredentials(username string, password []byte) Option {
	return func(o *clientOptions) {
		o.username = username
		o.password = password
	}
}

// WithMaxOutbound bounds the number of outbound QoS 1 and 2 publishes
// awaiting acknowledgement. The default is MaxInflight, the tracker's
// whole capacity.
func WithMaxOutbound(limit int) Option {
	return func(o *clientOptions) {
		o.maxOutbound = limit
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. The default discards everything.
func WithMetrics(metrics Metrics) Option {
	return func(o *clientOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}
