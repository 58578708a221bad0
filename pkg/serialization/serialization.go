package serialization

import (
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/errors"
)

// Config configures a Pipeline.
type Config struct {
	// Format selects the codec. Defaults to json.
	Format Format `env:"SERIALIZATION_FORMAT" env-default:"json"`

	// CompressionAlgorithm is applied after encoding when the encoded
	// payload is at least MinSizeBytes. "none" disables compression.
	CompressionAlgorithm envelope.Algorithm `env:"SERIALIZATION_COMPRESSION_ALGORITHM" env-default:"none"`

	// MinSizeBytes is the compression threshold.
	MinSizeBytes int `env:"SERIALIZATION_COMPRESSION_MIN_SIZE_BYTES" env-default:"1024"`

	// AvroSchema is the explicit schema used when Format is avro. If
	// empty, the schema is reflected once, at New, from the sample value's
	// Go type.
	AvroSchema string `env:"SERIALIZATION_AVRO_SCHEMA" env-default:""`
}

// Pipeline encodes values into envelopes and decodes envelopes back into
// values, applying compression above a configured threshold.
type Pipeline struct {
	cfg        Config
	codec      Codec
	compressor Compressor
}

// New builds a Pipeline from cfg. sample, when Format is avro and
// AvroSchema is empty, is reflected to derive the schema.
func New(cfg Config, sample any) (*Pipeline, error) {
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if cfg.CompressionAlgorithm == "" {
		cfg.CompressionAlgorithm = envelope.CompressionNone
	}
	if cfg.MinSizeBytes <= 0 {
		cfg.MinSizeBytes = 1024
	}

	var codec Codec
	switch cfg.Format {
	case FormatJSON:
		codec = JSONCodec()
	case FormatAvro:
		c, err := NewAvroCodec(cfg.AvroSchema, sample)
		if err != nil {
			return nil, err
		}
		codec = c
	default:
		return nil, errors.ConfigInvalid("unknown serialization format: "+string(cfg.Format), nil)
	}

	compressor, err := compressorFor(cfg.CompressionAlgorithm)
	if err != nil {
		return nil, err
	}

	return &Pipeline{cfg: cfg, codec: codec, compressor: compressor}, nil
}

// Encode serializes v, compressing the result if it meets the configured
// threshold, and returns a populated Envelope carrying the compression
// metadata needed to reverse it.
func (p *Pipeline) Encode(messageType string, v any) (*envelope.Envelope, error) {
	encoded, err := p.codec.Encode(v)
	if err != nil {
		return nil, err
	}

	env := envelope.New(messageType, encoded)
	originalSize := len(encoded)

	if p.compressor != nil && originalSize >= p.cfg.MinSizeBytes {
		compressed, err := p.compressor.Compress(encoded)
		if err != nil {
			return nil, err
		}
		env.Payload = compressed
		env.Compression = envelope.Compression{
			Algorithm:      p.cfg.CompressionAlgorithm,
			OriginalSize:   originalSize,
			CompressedSize: len(compressed),
		}
	} else {
		env.Compression = envelope.Compression{
			Algorithm:      envelope.CompressionNone,
			OriginalSize:   originalSize,
			CompressedSize: originalSize,
		}
	}

	return env, nil
}

// Decode reverses Encode: it decompresses env.Payload according to
// env.Compression, then decodes the result into a T.
func Decode[T any](p *Pipeline, env *envelope.Envelope) (T, error) {
	var out T

	payload := env.Payload
	if env.Compression.Algorithm != envelope.CompressionNone && env.Compression.Algorithm != "" {
		compressor, err := compressorFor(env.Compression.Algorithm)
		if err != nil {
			return out, err
		}
		if compressor == nil {
			return out, errors.ConfigInvalid("envelope declares compression but none is configured", nil)
		}
		payload, err = compressor.Decompress(payload)
		if err != nil {
			return out, err
		}
	}

	if err := p.codec.Decode(payload, &out); err != nil {
		return out, err
	}
	return out, nil
}
