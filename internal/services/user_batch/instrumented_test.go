package user_batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/archon-research/stl/user-batch/internal/services/shared"
	"github.com/archon-research/stl/user-batch/internal/testutil"
)

// countingHandler collects the method attribute of every record.
type countingHandler struct {
	mu      *sync.Mutex
	methods *[]string
	errs    *[]string
}

func newCountingHandler() *countingHandler {
	return &countingHandler{mu: &sync.Mutex{}, methods: &[]string{}, errs: &[]string{}}
}

func (h *countingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *countingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	r.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "method":
			*h.methods = append(*h.methods, a.Value.String())
		case "error":
			*h.errs = append(*h.errs, a.Value.String())
		}
		return true
	})
	return nil
}

func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *countingHandler) WithGroup(string) slog.Handler      { return h }

func (h *countingHandler) Methods() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), *h.methods...)
}

func newInstrumentedFixture(t *testing.T) (*fixture, *Instrumented, *countingHandler) {
	t.Helper()
	f := newFixture(t, ServiceConfig{ChunkSize: 10, MediumBatchMax: 20})
	h := newCountingHandler()
	interceptor := shared.NewInterceptor(shared.InterceptorConfig{Logger: slog.New(h)})
	return f, NewInstrumented(f.service, interceptor), h
}

func TestInstrumented_OneRecordPerCall(t *testing.T) {
	ctx := context.Background()
	f, svc, h := newInstrumentedFixture(t)

	if err := svc.InsertMediumBatch(ctx, testutil.MakeUsers(t, "m", 5)); err != nil {
		t.Fatalf("InsertMediumBatch: %v", err)
	}
	if err := svc.InsertMassiveBatch(ctx, testutil.MakeUsers(t, "x", 25)); err != nil {
		t.Fatalf("InsertMassiveBatch: %v", err)
	}
	// Insert delegates internally; only the outer call is logged.
	if err := svc.Insert(ctx, testutil.MakeUsers(t, "a", 30)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := svc.InsertOne(ctx, testutil.MakeUsers(t, "o", 1)[0]); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	count, err := svc.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 61 {
		t.Errorf("Count = %d, want 61", count)
	}
	if n := len(f.store.Committed()); n != 61 {
		t.Errorf("committed = %d, want 61", n)
	}

	want := []string{
		"UserBatchService.InsertMediumBatch",
		"UserBatchService.InsertMassiveBatch",
		"UserBatchService.Insert",
		"UserBatchService.InsertOne",
		"UserBatchService.Count",
	}
	got := h.Methods()
	if len(got) != len(want) {
		t.Fatalf("got %d records %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d method = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInstrumented_ErrorPassesThroughUnchanged(t *testing.T) {
	ctx := context.Background()
	f, svc, h := newInstrumentedFixture(t)
	storeErr := errors.New("duplicate key value violates unique constraint")
	f.gateway.insertBatchErr = storeErr

	direct := f.service.InsertMediumBatch(ctx, testutil.MakeUsers(t, "d", 3))
	wrapped := svc.InsertMediumBatch(ctx, testutil.MakeUsers(t, "w", 3))

	if wrapped == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(wrapped, ErrDataAccess) || !errors.Is(wrapped, storeErr) {
		t.Errorf("error chain lost: %v", wrapped)
	}
	if wrapped.Error() != direct.Error() {
		t.Errorf("decorated error %q differs from direct %q", wrapped, direct)
	}
	if len(*h.errs) != 1 {
		t.Errorf("expected the failure to be logged once, got %d", len(*h.errs))
	}
}

func TestInstrumented_CountFailure(t *testing.T) {
	f, svc, h := newInstrumentedFixture(t)
	f.gateway.countErr = errors.New("connection reset")

	n, err := svc.Count(context.Background())
	if !errors.Is(err, ErrDataAccess) {
		t.Fatalf("expected ErrDataAccess, got %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d on failure, want 0", n)
	}
	if len(h.Methods()) != 1 {
		t.Errorf("records = %d, want 1", len(h.Methods()))
	}
}
