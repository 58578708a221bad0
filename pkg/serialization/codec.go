// Package serialization implements the encode/decode and compression
// pipeline: encode(message) -> bytes, decode<T>(bytes) -> T, with an
// optional compression pass applied after encoding.
package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/brokercore/brokercore/pkg/errors"
	"github.com/hamba/avro/v2"
)

// Format names an encoding codec.
type Format string

const (
	FormatJSON Format = "json"
	FormatAvro Format = "avro"
)

// Codec encodes and decodes Go values to and from bytes. Encoding is
// stable: the same input produces the same bytes within a process.
type Codec interface {
	Name() Format
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// NewEncodeError wraps a non-serializable-field failure.
func NewEncodeError(format Format, err error) *errors.AppError {
	return errors.New(errors.CodeInvalidArgument, fmt.Sprintf("%s encode failed", format), err)
}

// NewDecodeError wraps a malformed-bytes or wrong-type failure.
func NewDecodeError(format Format, err error) *errors.AppError {
	return errors.New(errors.CodeInvalidArgument, fmt.Sprintf("%s decode failed", format), err)
}

type jsonCodec struct{}

// JSONCodec is the default, self-describing textual codec. It is stable
// because encoding/json serializes struct fields in declaration order.
func JSONCodec() Codec { return jsonCodec{} }

func (jsonCodec) Name() Format { return FormatJSON }

func (jsonCodec) Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, NewEncodeError(FormatJSON, err)
	}
	return b, nil
}

func (jsonCodec) Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return NewDecodeError(FormatJSON, err)
	}
	return nil
}

// avroCodec is the compact binary alternative, opt-in via configuration.
// Schema is resolved once at construction, either from an explicit JSON
// schema string or reflected from the sample value's Go type.
type avroCodec struct {
	schema avro.Schema
}

// NewAvroCodec builds a Codec bound to schemaJSON. If schemaJSON is empty,
// the schema is derived by reflecting over sample.
func NewAvroCodec(schemaJSON string, sample any) (Codec, error) {
	var schema avro.Schema
	var err error
	if schemaJSON != "" {
		schema, err = avro.Parse(schemaJSON)
	} else {
		schema, err = avro.SchemaOf(sample)
	}
	if err != nil {
		return nil, errors.ConfigInvalid("invalid avro schema", err)
	}
	return &avroCodec{schema: schema}, nil
}

func (c *avroCodec) Name() Format { return FormatAvro }

func (c *avroCodec) Encode(v any) ([]byte, error) {
	b, err := avro.Marshal(c.schema, v)
	if err != nil {
		return nil, NewEncodeError(FormatAvro, err)
	}
	return b, nil
}

func (c *avroCodec) Decode(data []byte, v any) error {
	if err := avro.Unmarshal(c.schema, data, v); err != nil {
		return NewDecodeError(FormatAvro, err)
	}
	return nil
}
