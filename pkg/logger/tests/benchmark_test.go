package logger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/brokercore/brokercore/pkg/logger"
)

func BenchmarkTraceHandler(b *testing.B) {
	h := slog.NewJSONHandler(io.Discard, nil)
	th := logger.NewTraceHandler(h)
	l := slog.New(th)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.InfoContext(ctx, "message published",
			"message_id", "12345",
			"broker", "kafka",
			"topic", "orders",
			"status", "ok",
		)
	}
}

func BenchmarkTraceHandler_NoSpan(b *testing.B) {
	h := slog.NewJSONHandler(io.Discard, nil)
	th := logger.NewTraceHandler(h)
	l := slog.New(th)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Info("message published", "message_id", "12345")
	}
}
