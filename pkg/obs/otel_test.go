package obs

import (
	"context"
	"resledger/pkg/logger"
	"testing"
)

func TestInitTracer_DisabledWithoutEndpoint(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})

	shutdown, err := InitTracer(context.Background(), log, "test", "")
	if err != nil {
		t.Fatalf("InitTracer() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}

	_, span := Tracer().Start(context.Background(), "noop")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Errorf("expected a no-op span without a provider")
	}
}
