package mqtt311

import (
	"errors"
	"fmt"
)

// Engine status sentinels - check with errors.Is().
//
// Every fallible operation in this package reports one of these values (or
// nil for success). There is no hidden control flow: the process loop
// surfaces the first non-nil, non-ErrNoDataAvailable status it encounters in
// an iteration and stops.
var (
	// ErrBadParameter is returned for nil inputs, a zero packet identifier,
	// an invalid QoS, or otherwise malformed user input.
	ErrBadParameter = errors.New("bad parameter")

	// ErrNoMemory is returned when the provided fixed buffer is too small
	// for the packet being built.
	ErrNoMemory = errors.New("buffer too small")

	// ErrSendFailed is returned when Transport.Send reports an error or
	// makes no progress.
	ErrSendFailed = errors.New("transport send failed")

	// ErrRecvFailed is returned when Transport.Recv reports a fatal error.
	ErrRecvFailed = errors.New("transport recv failed")

	// ErrBadResponse is returned when wire bytes fail validation: reserved
	// bits set, remaining-length overflow, or an unexpected packet type.
	ErrBadResponse = errors.New("bad response from server")

	// ErrServerRefused is returned when a CONNACK carries a non-zero
	// return code.
	ErrServerRefused = errors.New("server refused connection")

	// ErrNoDataAvailable indicates the transport had no bytes to read. It
	// is non-fatal; the process loop uses it to move on to keep-alive.
	ErrNoDataAvailable = errors.New("no data available")

	// ErrKeepAliveTimeout is returned when no PINGRESP arrives within the
	// ping response timeout.
	ErrKeepAliveTimeout = errors.New("keep-alive timeout")

	// ErrIllegalState is returned when the publish state tracker cannot
	// produce a valid next state for an event.
	ErrIllegalState = errors.New("illegal publish state transition")
)

// badParameter tags a caller-input validation failure with ErrBadParameter
// while keeping the specific cause, so both match under errors.Is. The
// serializers use it the same way the read path folds codec sentinels into
// ErrBadResponse.
func badParameter(err error) error {
	return fmt.Errorf("%w: %w", ErrBadParameter, err)
}
