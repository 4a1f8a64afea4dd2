// Package mqtt311 implements a single-connection MQTT 3.1.1 client engine
// for constrained environments.
//
// This package implements the MQTT Version 3.1.1 OASIS Standard:
// http://docs.oasis-open.org/mqtt/mqtt/v3.1.1/os/mqtt-v3.1.1-os.html
//
// The package is split into three layers that can be used independently:
//
//   - A packet codec: pure functions that serialize and deserialize MQTT
//     control packets into caller-owned byte buffers. The codec performs no
//     I/O and no allocation.
//
//   - A publish state tracker: a fixed-capacity table recording the
//     acknowledgement progress of every in-flight QoS 1 and QoS 2 exchange.
//
//   - A client engine: combines the codec, the tracker, a caller-supplied
//     Transport and a caller-supplied millisecond clock into connect,
//     subscribe, publish, ping and process-loop operations.
//
// The engine owns no goroutines and performs no internal locking. All
// blocking happens inside the Transport; the process loop is a plain
// cooperative function driven by the caller. Concurrent use of one Client
// from multiple goroutines requires external synchronization.
package mqtt311
