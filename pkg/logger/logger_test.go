package logx

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

// Not parallel: Init replaces the global logger.

func TestInitLevelsAndContextFallback(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Output: &buf})
	t.Cleanup(func() { Init() })

	log.Debug().Msg("hidden")
	log.Ctx(context.Background()).Info().Str("cycle_id", "c1").Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line logged at info level: %s", out)
	}
	if !strings.Contains(out, `"cycle_id":"c1"`) {
		t.Fatalf("context logger did not fall back to global: %s", out)
	}

	buf.Reset()
	Init(Config{Debug: true, Output: &buf})
	log.Debug().Msg("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("debug line missing: %s", buf.String())
	}
}
