//go:build integration

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/archon-research/stl/user-batch/internal/testutil"
)

func TestRun_Strategies(t *testing.T) {
	pool, dsn, cleanup := testutil.SetupPostgres(t)
	t.Cleanup(cleanup)

	for _, k := range []string{"FLUSH_BOUNDARY", "FLUSH_RATE", "SLOW_CALL_THRESHOLD", "OTEL_EXPORTER_OTLP_ENDPOINT", "JAEGER_ENDPOINT", "TRACE_STDOUT"} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")

	tests := []struct {
		name      string
		args      []string
		wantTotal int64
	}{
		{name: "medium", args: []string{"-strategy", "medium", "-count", "1000"}, wantTotal: 1000},
		{name: "massive", args: []string{"-strategy", "massive", "-count", "2500", "-chunk-size", "1000"}, wantTotal: 3500},
		{name: "auto", args: []string{"-count", "1500"}, wantTotal: 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			args := append([]string{"-db", dsn}, tt.args...)
			if err := run(context.Background(), args, &out); err != nil {
				t.Fatalf("run: %v", err)
			}
			if !strings.Contains(out.String(), "inserted") {
				t.Errorf("unexpected output %q", out.String())
			}
			if got := testutil.CountUsers(t, context.Background(), pool); got != tt.wantTotal {
				t.Errorf("users stored = %d, want %d", got, tt.wantTotal)
			}
		})
	}
}
