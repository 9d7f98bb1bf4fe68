package reconcile

import (
	"context"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// Args is the reconciliation job payload. Uniqueness by args gives a
// second dedup layer in front of the store's event-id check.
type Args struct {
	Identity    string    `json:"identity"`
	EventID     string    `json:"event_id"`
	PeriodStart time.Time `json:"period_start"`
}

func (Args) Kind() string { return "billing_reconcile" }

func (Args) InsertOpts() river.InsertOpts {
	return river.InsertOpts{UniqueOpts: river.UniqueOpts{ByArgs: true}}
}

// Worker runs reconciliation jobs off the webhook path.
type Worker struct {
	river.WorkerDefaults[Args]
	Reconciler *Reconciler
}

func (w *Worker) Work(ctx context.Context, job *river.Job[Args]) error {
	_, err := w.Reconciler.Reconcile(ctx, job.Args.Identity, job.Args.EventID, job.Args.PeriodStart)
	return err
}

// Enqueuer is the slice of the river client the webhook handler needs;
// nil means reconcile inline.
type Enqueuer interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}
