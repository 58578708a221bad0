package envelope_test

import (
	"testing"

	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/stretchr/testify/assert"
)

func TestNew_SetsDefaults(t *testing.T) {
	e := envelope.New("order.created", []byte(`{"id":1}`))

	assert.Equal(t, "order.created", e.MessageType)
	assert.Empty(t, e.MessageID)
	assert.False(t, e.Timestamp.IsZero())
	assert.NotNil(t, e.Headers)
	assert.Equal(t, envelope.CompressionNone, e.Compression.Algorithm)
}

func TestValidate_RejectsEmptyMessageType(t *testing.T) {
	e := envelope.New("", []byte("x"))
	err := e.Validate()
	assert.Error(t, err)
}

func TestValidate_RejectsNilPayload(t *testing.T) {
	e := envelope.New("order.created", nil)
	err := e.Validate()
	assert.Error(t, err)
}

func TestValidate_AcceptsWellFormedEnvelope(t *testing.T) {
	e := envelope.New("order.created", []byte("x"))
	assert.NoError(t, e.Validate())
}

func TestHeaders_SetRejectsUnsupportedType(t *testing.T) {
	h := envelope.Headers{}
	err := h.Set("bad", 3.14)
	assert.Error(t, err)
}

func TestHeaders_SetAcceptsScalarTypes(t *testing.T) {
	h := envelope.Headers{}
	assert.NoError(t, h.Set("s", "value"))
	assert.NoError(t, h.Set("i", int64(42)))
	assert.NoError(t, h.Set("b", true))
	assert.NoError(t, h.Set("bytes", []byte("raw")))

	s, ok := h.String("s")
	assert.True(t, ok)
	assert.Equal(t, "value", s)
}

func TestClone_IsIndependentOfOriginal(t *testing.T) {
	e := envelope.New("order.created", []byte("original"))
	_ = e.Headers.Set("k", "v")

	clone := e.Clone()
	clone.Payload[0] = 'X'
	clone.Headers["k"] = "changed"

	assert.Equal(t, byte('o'), e.Payload[0])
	assert.Equal(t, "v", e.Headers["k"])
}
