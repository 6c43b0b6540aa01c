package memory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jayesh55555/Product-Importer/internal/catalog"
	"github.com/jayesh55555/Product-Importer/internal/dispatcher"
	"github.com/jayesh55555/Product-Importer/internal/domain"
	"github.com/jayesh55555/Product-Importer/internal/importer"
	"github.com/jayesh55555/Product-Importer/internal/outbox"
	"github.com/jayesh55555/Product-Importer/internal/store"
)

// pipelineReceiver records every webhook POST it accepts.
type pipelineReceiver struct {
	mu         sync.Mutex
	bodies     [][]byte
	signatures []string
	seqs       []string
}

func (r *pipelineReceiver) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		r.mu.Lock()
		r.bodies = append(r.bodies, body)
		r.signatures = append(r.signatures, req.Header.Get("X-Importer-Signature"))
		r.seqs = append(r.seqs, req.Header.Get("X-Importer-Event-Seq"))
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (r *pipelineReceiver) received() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.bodies))
	copy(out, r.bodies)
	return out
}

// drainEvents leases and processes queued events until the queue is empty.
func drainEvents(t *testing.T, s *Store, d *dispatcher.Dispatcher) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		ev, err := s.LeaseNextEvent(ctx)
		if errors.Is(err, store.ErrNoPendingEvent) {
			return
		}
		if err != nil {
			t.Fatalf("lease: %v", err)
		}
		d.Process(ctx, ev)
	}
	t.Fatal("event queue did not drain")
}

func runImport(t *testing.T, s *Store, imp *importer.Importer, csvBody string) domain.ImportJob {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "upload.csv")
	if err := os.WriteFile(path, []byte(csvBody), 0o600); err != nil {
		t.Fatalf("write spool: %v", err)
	}
	job, err := s.CreateJob(ctx, domain.ImportJob{SpoolPath: path})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	claimed, err := s.ClaimQueuedJob(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	imp.ProcessJob(ctx, claimed)

	final, err := s.GetImportJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	return final
}

// TestPipelineImportToWebhook drives a CSV upload through the importer, the
// event queue and the dispatcher against a live HTTP receiver, checking the
// wire payloads end to end.
func TestPipelineImportToWebhook(t *testing.T) {
	s := New()
	ctx := context.Background()

	receiver := &pipelineReceiver{}
	srv := httptest.NewServer(receiver.handler())
	defer srv.Close()

	const secret = "hook-secret"
	sub, err := s.CreateSubscriber(ctx, domain.Subscriber{
		Name:      "catalog-feed",
		TargetURL: srv.URL,
		EventKind: domain.EventProductCreated,
		Active:    true,
		Secret:    secret,
	})
	if err != nil {
		t.Fatalf("create subscriber: %v", err)
	}

	imp := importer.New(importer.Config{BatchSize: 100}, s, catalog.New(s), outbox.New(s))

	job := runImport(t, s, imp, "sku,name,description,active\n"+
		"abc-1,First widget,small,true\n"+
		"abc-2,Second widget,large,false\n")
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("job = %s (reason %q), want completed", job.Status, job.Reason)
	}
	if job.CreatedCount != 2 || job.ProcessedRows != 2 {
		t.Fatalf("counters = created %d processed %d, want 2/2", job.CreatedCount, job.ProcessedRows)
	}

	disp := dispatcher.New(dispatcher.Config{MaxAttempts: 3, Timeout: 5 * time.Second}, s, dispatcher.NewHTTPWebhookSender())
	drainEvents(t, s, disp)

	bodies := receiver.received()
	if len(bodies) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(bodies))
	}

	skus := map[string]bool{}
	for i, body := range bodies {
		var wire struct {
			Event     string                 `json:"event"`
			Timestamp string                 `json:"timestamp"`
			Data      map[string]interface{} `json:"data"`
		}
		if err := json.Unmarshal(body, &wire); err != nil {
			t.Fatalf("payload %d: %v", i, err)
		}
		if wire.Event != "product.created" {
			t.Errorf("payload %d event = %q", i, wire.Event)
		}
		if _, err := time.Parse(time.RFC3339, wire.Timestamp); err != nil {
			t.Errorf("payload %d timestamp %q: %v", i, wire.Timestamp, err)
		}
		for _, key := range []string{"id", "sku", "name", "description", "active", "created_at", "updated_at"} {
			if _, ok := wire.Data[key]; !ok {
				t.Errorf("payload %d missing data.%s", i, key)
			}
		}
		if len(wire.Data) != 7 {
			t.Errorf("payload %d has %d data fields, want exactly 7", i, len(wire.Data))
		}
		skus[wire.Data["sku"].(string)] = true

		if !dispatcher.VerifySignature(secret, body, receiver.signatures[i]) {
			t.Errorf("payload %d signature does not verify", i)
		}
		if receiver.seqs[i] == "" {
			t.Errorf("payload %d missing X-Importer-Event-Seq", i)
		}
	}
	if !skus["abc-1"] || !skus["abc-2"] {
		t.Errorf("delivered skus = %v, want both imported rows", skus)
	}

	for seq := int64(1); seq <= 2; seq++ {
		ev, err := s.GetEvent(ctx, seq)
		if err != nil {
			t.Fatalf("event %d: %v", seq, err)
		}
		if ev.Status != domain.EventStatusDelivered {
			t.Errorf("event %d = %s, want delivered", seq, ev.Status)
		}
	}

	acked, _ := s.DeliveredSubscriberIDs(ctx, 1)
	if !acked[sub.ID] {
		t.Error("delivery log missing the subscriber acknowledgement")
	}
}

// TestPipelineReimportEmitsNothing re-imports an identical file and expects
// zero new events and zero new deliveries.
func TestPipelineReimportEmitsNothing(t *testing.T) {
	s := New()
	ctx := context.Background()

	receiver := &pipelineReceiver{}
	srv := httptest.NewServer(receiver.handler())
	defer srv.Close()

	if _, err := s.CreateSubscriber(ctx, domain.Subscriber{
		Name: "feed", TargetURL: srv.URL,
		EventKind: domain.EventProductCreated, Active: true,
	}); err != nil {
		t.Fatalf("create subscriber: %v", err)
	}

	imp := importer.New(importer.Config{}, s, catalog.New(s), outbox.New(s))
	disp := dispatcher.New(dispatcher.Config{MaxAttempts: 2, Timeout: 5 * time.Second}, s, dispatcher.NewHTTPWebhookSender())

	const upload = "sku,name,description,active\nabc-1,Widget,small,true\n"

	first := runImport(t, s, imp, upload)
	if first.Status != domain.JobStatusCompleted || first.CreatedCount != 1 {
		t.Fatalf("first import = %+v", first)
	}
	drainEvents(t, s, disp)
	if got := len(receiver.received()); got != 1 {
		t.Fatalf("deliveries after first import = %d, want 1", got)
	}

	second := runImport(t, s, imp, upload)
	if second.Status != domain.JobStatusCompleted {
		t.Fatalf("second import = %s (reason %q)", second.Status, second.Reason)
	}
	if second.CreatedCount != 0 || second.UpdatedCount != 0 || second.ProcessedRows != 1 {
		t.Errorf("second import counters = created %d updated %d processed %d, want 0/0/1",
			second.CreatedCount, second.UpdatedCount, second.ProcessedRows)
	}

	if n, _ := s.PendingEventCount(ctx); n != 0 {
		t.Errorf("pending events after re-import = %d, want 0", n)
	}
	if got := len(receiver.received()); got != 1 {
		t.Errorf("deliveries after re-import = %d, want still 1", got)
	}
}
