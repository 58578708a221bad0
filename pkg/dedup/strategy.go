package dedup

import (
	"strconv"

	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/errors"
	"github.com/cespare/xxhash/v2"
)

// Strategy derives the dedup hash for an envelope.
type Strategy func(env *envelope.Envelope) (string, error)

// ContentHashStrategy hashes the envelope's encoded payload with xxhash,
// giving a stable, fast fingerprint independent of any header the
// publisher set.
func ContentHashStrategy() Strategy {
	return func(env *envelope.Envelope) (string, error) {
		sum := xxhash.Sum64(env.Payload)
		return strconv.FormatUint(sum, 16), nil
	}
}

// MessageIDStrategy uses the envelope's message ID, failing if the
// publisher left it empty.
func MessageIDStrategy() Strategy {
	return func(env *envelope.Envelope) (string, error) {
		if env.MessageID == "" {
			return "", errors.ArgumentInvalid("message_id missing for message-id dedup strategy", nil)
		}
		return env.MessageID, nil
	}
}

// CustomStrategy wraps a caller-supplied pure function as a Strategy.
func CustomStrategy(fn func(env *envelope.Envelope) (string, error)) Strategy {
	return fn
}
