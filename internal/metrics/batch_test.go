package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/resdomain/internal/domain/action"
	dombatch "github.com/kailas-cloud/resdomain/internal/domain/batch"
	"github.com/kailas-cloud/resdomain/internal/domain/resource"
	"github.com/kailas-cloud/resdomain/internal/event"
)

type note struct{ id string }

func (n *note) EntityType() string    { return "note" }
func (n *note) EntityID() string      { return n.id }
func (n *note) SetEntityID(id string) { n.id = id }

func processedBatch() *dombatch.Batch {
	b := dombatch.FromCandidates(resource.Raws(&note{}, &note{}, &note{}))
	b.Get(0).SetStatus(resource.StatusCreated)
	b.Get(1).SetStatus(resource.StatusCreated)
	b.Get(2).SetStatus(resource.StatusError)
	return b
}

func TestBatchListener_RecordsPostEvents(t *testing.T) {
	batches := BatchesTotal.WithLabelValues("note", "create", "mixed")
	created := ItemsTotal.WithLabelValues("note", "create", "created")
	failed := ItemsTotal.WithLabelValues("note", "create", "error")
	beforeBatches := testutil.ToFloat64(batches)
	beforeCreated := testutil.ToFloat64(created)
	beforeFailed := testutil.ToFloat64(failed)

	e := event.New("note", event.Post, action.Create, processedBatch())
	BatchListener{}.Handle(context.Background(), e)

	if got := testutil.ToFloat64(batches) - beforeBatches; got != 1 {
		t.Errorf("batches_total delta = %f, want 1", got)
	}
	if got := testutil.ToFloat64(created) - beforeCreated; got != 2 {
		t.Errorf("items_total{created} delta = %f, want 2", got)
	}
	if got := testutil.ToFloat64(failed) - beforeFailed; got != 1 {
		t.Errorf("items_total{error} delta = %f, want 1", got)
	}
	if testutil.CollectAndCount(BatchSize) == 0 {
		t.Error("expected batch_size observations")
	}
}

func TestBatchListener_IgnoresPreEvents(t *testing.T) {
	batches := BatchesTotal.WithLabelValues("note", "update", "mixed")
	before := testutil.ToFloat64(batches)

	e := event.New("note", event.Pre, action.Update, processedBatch())
	BatchListener{}.Handle(context.Background(), e)

	if got := testutil.ToFloat64(batches) - before; got != 0 {
		t.Errorf("pre-event counted: delta = %f", got)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	Register()
	Register()
}
