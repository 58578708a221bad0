package serialization_test

import (
	"strings"
	"testing"

	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderCreated struct {
	ID     string `json:"id" avro:"id"`
	Amount int    `json:"amount" avro:"amount"`
}

func TestPipeline_JSONRoundTrip(t *testing.T) {
	p, err := serialization.New(serialization.Config{Format: serialization.FormatJSON}, orderCreated{})
	require.NoError(t, err)

	env, err := p.Encode("order.created", orderCreated{ID: "o1", Amount: 42})
	require.NoError(t, err)
	assert.Equal(t, envelope.CompressionNone, env.Compression.Algorithm)

	out, err := serialization.Decode[orderCreated](p, env)
	require.NoError(t, err)
	assert.Equal(t, "o1", out.ID)
	assert.Equal(t, 42, out.Amount)
}

func TestPipeline_CompressesAboveThreshold(t *testing.T) {
	p, err := serialization.New(serialization.Config{
		Format:                serialization.FormatJSON,
		CompressionAlgorithm:  envelope.CompressionGzip,
		MinSizeBytes:          10,
	}, orderCreated{})
	require.NoError(t, err)

	big := orderCreated{ID: strings.Repeat("x", 200), Amount: 1}
	env, err := p.Encode("order.created", big)
	require.NoError(t, err)
	assert.Equal(t, envelope.CompressionGzip, env.Compression.Algorithm)
	assert.Greater(t, env.Compression.OriginalSize, env.Compression.CompressedSize)

	out, err := serialization.Decode[orderCreated](p, env)
	require.NoError(t, err)
	assert.Equal(t, big.ID, out.ID)
}

func TestPipeline_SkipsCompressionBelowThreshold(t *testing.T) {
	p, err := serialization.New(serialization.Config{
		Format:               serialization.FormatJSON,
		CompressionAlgorithm: envelope.CompressionGzip,
		MinSizeBytes:         10_000,
	}, orderCreated{})
	require.NoError(t, err)

	env, err := p.Encode("order.created", orderCreated{ID: "o1", Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, envelope.CompressionNone, env.Compression.Algorithm)
}

func TestPipeline_AvroRoundTrip(t *testing.T) {
	schema := `{"type":"record","name":"orderCreated","fields":[
		{"name":"id","type":"string"},
		{"name":"amount","type":"int"}
	]}`
	p, err := serialization.New(serialization.Config{Format: serialization.FormatAvro, AvroSchema: schema}, orderCreated{})
	require.NoError(t, err)

	env, err := p.Encode("order.created", orderCreated{ID: "o2", Amount: 7})
	require.NoError(t, err)

	out, err := serialization.Decode[orderCreated](p, env)
	require.NoError(t, err)
	assert.Equal(t, "o2", out.ID)
	assert.Equal(t, 7, out.Amount)
}

func TestPipeline_DecodeFailsOnMalformedBytes(t *testing.T) {
	p, err := serialization.New(serialization.Config{Format: serialization.FormatJSON}, orderCreated{})
	require.NoError(t, err)

	env := envelope.New("order.created", []byte("not json"))
	_, err = serialization.Decode[orderCreated](p, env)
	assert.Error(t, err)
}

func TestPipeline_CompressionRoundTripAcrossAlgorithms(t *testing.T) {
	algs := []envelope.Algorithm{
		envelope.CompressionGzip,
		envelope.CompressionDeflate,
		envelope.CompressionBrotli,
		envelope.CompressionLZ4,
		envelope.CompressionZstd,
	}

	for _, alg := range algs {
		alg := alg
		t.Run(string(alg), func(t *testing.T) {
			p, err := serialization.New(serialization.Config{
				Format:               serialization.FormatJSON,
				CompressionAlgorithm: alg,
				MinSizeBytes:         1,
			}, orderCreated{})
			require.NoError(t, err)

			env, err := p.Encode("order.created", orderCreated{ID: "o3", Amount: 9})
			require.NoError(t, err)
			assert.Equal(t, alg, env.Compression.Algorithm)

			out, err := serialization.Decode[orderCreated](p, env)
			require.NoError(t, err)
			assert.Equal(t, "o3", out.ID)
		})
	}
}
