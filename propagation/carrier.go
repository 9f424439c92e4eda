// Package propagation encodes and decodes span contexts across process
// boundaries. Two formats are built in: a generic prefixed text map and a
// Jaeger-compatible composite header. Extract treats malformed input as "no
// context present"; only a carrier of the wrong capability is an error.
package propagation

import (
	"errors"
	"net/http"
)

// Format tokens select a propagator at inject/extract time.
type BuiltinFormat byte

const (
	// TextMap propagates contexts as arbitrary string pairs.
	TextMap BuiltinFormat = iota
	// HTTPHeaders propagates contexts as HTTP-header-safe string pairs.
	HTTPHeaders
)

var (
	// ErrInvalidCarrier marks a carrier lacking the needed capability.
	// This is caller misuse and fails fast.
	ErrInvalidCarrier = errors.New("propagation: invalid carrier")

	// ErrUnsupportedFormat marks an unknown format token.
	ErrUnsupportedFormat = errors.New("propagation: unsupported format")
)

// TextMapWriter is the write capability a carrier offers Inject.
type TextMapWriter interface {
	Set(key, value string)
}

// TextMapReader is the read capability a carrier offers Extract.
type TextMapReader interface {
	// ForeachKey calls handler for each key/value pair, stopping on error.
	ForeachKey(handler func(key, value string) error) error
}

// TextMapCarrier adapts a plain string map to both carrier capabilities.
type TextMapCarrier map[string]string

// Set stores a key/value pair.
func (c TextMapCarrier) Set(key, value string) {
	c[key] = value
}

// ForeachKey iterates all pairs.
func (c TextMapCarrier) ForeachKey(handler func(key, value string) error) error {
	for k, v := range c {
		if err := handler(k, v); err != nil {
			return err
		}
	}
	return nil
}

// HTTPHeadersCarrier adapts an http.Header to both carrier capabilities.
type HTTPHeadersCarrier http.Header

// Set stores a header.
func (c HTTPHeadersCarrier) Set(key, value string) {
	http.Header(c).Set(key, value)
}

// ForeachKey iterates all header values.
func (c HTTPHeadersCarrier) ForeachKey(handler func(key, value string) error) error {
	for k, vals := range c {
		for _, v := range vals {
			if err := handler(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}
