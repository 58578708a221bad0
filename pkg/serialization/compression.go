package serialization

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor compresses and decompresses a byte stream under one codec.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// NewCompressionError wraps a compress/decompress failure.
func NewCompressionError(alg envelope.Algorithm, err error) *errors.AppError {
	return errors.New(errors.CodeInvalidArgument, fmt.Sprintf("%s compression failed", alg), err)
}

type gzipCompressor struct{}

func (gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, NewCompressionError(envelope.CompressionGzip, err)
	}
	if err := w.Close(); err != nil {
		return nil, NewCompressionError(envelope.CompressionGzip, err)
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, NewCompressionError(envelope.CompressionGzip, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, NewCompressionError(envelope.CompressionGzip, err)
	}
	return out, nil
}

type deflateCompressor struct{}

func (deflateCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, NewCompressionError(envelope.CompressionDeflate, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, NewCompressionError(envelope.CompressionDeflate, err)
	}
	if err := w.Close(); err != nil {
		return nil, NewCompressionError(envelope.CompressionDeflate, err)
	}
	return buf.Bytes(), nil
}

func (deflateCompressor) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, NewCompressionError(envelope.CompressionDeflate, err)
	}
	return out, nil
}

type brotliCompressor struct{}

func (brotliCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, NewCompressionError(envelope.CompressionBrotli, err)
	}
	if err := w.Close(); err != nil {
		return nil, NewCompressionError(envelope.CompressionBrotli, err)
	}
	return buf.Bytes(), nil
}

func (brotliCompressor) Decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, NewCompressionError(envelope.CompressionBrotli, err)
	}
	return out, nil
}

type lz4Compressor struct{}

func (lz4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, NewCompressionError(envelope.CompressionLZ4, err)
	}
	if err := w.Close(); err != nil {
		return nil, NewCompressionError(envelope.CompressionLZ4, err)
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) Decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, NewCompressionError(envelope.CompressionLZ4, err)
	}
	return out, nil
}

type zstdCompressor struct{}

func (zstdCompressor) Compress(data []byte) ([]byte, error) {
	w, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, NewCompressionError(envelope.CompressionZstd, err)
	}
	defer w.Close()
	return w.EncodeAll(data, nil), nil
}

func (zstdCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := zstd.NewReader(nil)
	if err != nil {
		return nil, NewCompressionError(envelope.CompressionZstd, err)
	}
	defer r.Close()
	out, err := r.DecodeAll(data, nil)
	if err != nil {
		return nil, NewCompressionError(envelope.CompressionZstd, err)
	}
	return out, nil
}

func compressorFor(alg envelope.Algorithm) (Compressor, error) {
	switch alg {
	case envelope.CompressionNone, "":
		return nil, nil
	case envelope.CompressionGzip:
		return gzipCompressor{}, nil
	case envelope.CompressionDeflate:
		return deflateCompressor{}, nil
	case envelope.CompressionBrotli:
		return brotliCompressor{}, nil
	case envelope.CompressionLZ4:
		return lz4Compressor{}, nil
	case envelope.CompressionZstd:
		return zstdCompressor{}, nil
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown compression algorithm %q", alg), nil)
	}
}
