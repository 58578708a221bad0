// Package envelope defines the in-flight message representation shared by
// every broker component: the kernel, the transport adapters, and the
// decorator chain all operate on *envelope.Envelope, never on a raw payload.
package envelope

import (
	"time"

	"github.com/brokercore/brokercore/pkg/errors"
)

// Algorithm names a compression codec applied to an encoded payload.
type Algorithm string

const (
	CompressionNone    Algorithm = "none"
	CompressionGzip    Algorithm = "gzip"
	CompressionDeflate Algorithm = "deflate"
	CompressionBrotli  Algorithm = "brotli"
	CompressionLZ4     Algorithm = "lz4"
	CompressionZstd    Algorithm = "zstd"
)

// Compression records the codec used to compress Envelope.Payload, along
// with the sizes needed to reverse it without external state.
type Compression struct {
	Algorithm      Algorithm `json:"algorithm"`
	OriginalSize   int       `json:"original_size"`
	CompressedSize int       `json:"compressed_size"`
}

// Headers is a mapping from string keys to scalar values. Only
// string, int64, int, bool, and []byte are valid values; anything else is
// rejected by Set.
type Headers map[string]any

// Set stores a scalar header value, returning ArgumentInvalid if v is not
// one of the supported scalar kinds.
func (h Headers) Set(key string, v any) error {
	switch v.(type) {
	case string, int64, int, bool, []byte:
		h[key] = v
		return nil
	default:
		return errors.ArgumentInvalid("header value must be string, int, bool, or []byte", nil)
	}
}

func (h Headers) String(key string) (string, bool) {
	v, ok := h[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Envelope is the in-flight representation of a message: an opaque
// payload plus the routing and correlation metadata the kernel and
// transport adapters need to deliver it.
type Envelope struct {
	// Payload is the encoded (and possibly compressed) message body.
	Payload []byte `json:"payload"`

	// MessageType discriminates the payload's logical type. The kernel
	// uses this to look up the subscription registry.
	MessageType string `json:"message_type"`

	// MessageID uniquely identifies this message. The kernel synthesizes
	// a random UUID if the caller leaves it empty.
	MessageID string `json:"message_id"`

	// CorrelationID optionally links this message to a request/response
	// exchange or a saga chain.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Timestamp is when the message entered the system.
	Timestamp time.Time `json:"timestamp"`

	// Headers carries caller and transport metadata.
	Headers Headers `json:"headers,omitempty"`

	// RoutingKey selects the destination: queue name, topic, subject, or
	// stream, depending on the transport adapter in use.
	RoutingKey string `json:"routing_key"`

	// Compression records how Payload was compressed, if at all.
	Compression Compression `json:"compression"`
}

// New builds an Envelope with Timestamp set to now and an empty, non-nil
// Headers map. MessageID is left blank; the kernel fills it in on publish
// if absent.
func New(messageType string, payload []byte) *Envelope {
	return &Envelope{
		Payload:     payload,
		MessageType: messageType,
		Timestamp:   time.Now(),
		Headers:     make(Headers),
		Compression: Compression{Algorithm: CompressionNone},
	}
}

// Validate checks the invariants the kernel requires before publish:
// non-empty message type and non-nil payload.
func (e *Envelope) Validate() error {
	if e == nil {
		return errors.ArgumentInvalid("envelope must not be nil", nil)
	}
	if e.MessageType == "" {
		return errors.ArgumentInvalid("envelope message_type must not be empty", nil)
	}
	if e.Payload == nil {
		return errors.ArgumentInvalid("envelope payload must not be nil", nil)
	}
	return nil
}

// Clone returns a deep-enough copy safe for a decorator to mutate headers
// or compression metadata without affecting the caller's original.
func (e *Envelope) Clone() *Envelope {
	clone := *e
	clone.Payload = append([]byte(nil), e.Payload...)
	clone.Headers = make(Headers, len(e.Headers))
	for k, v := range e.Headers {
		clone.Headers[k] = v
	}
	return &clone
}
