package fleet

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/kubernetes"

	"github.com/WhizardTelemetry/eBPFConductor/internal/k8s"
	"github.com/WhizardTelemetry/eBPFConductor/internal/rbac"
	"github.com/WhizardTelemetry/eBPFConductor/internal/store"
)

// Actions recorded in the audit trail.
const (
	ActionApply  = "apply"
	ActionDelete = "delete"
)

// Target is one cluster to roll the grant out to.
type Target struct {
	Name       string
	Kubeconfig []byte
}

// Result is the outcome of a rollout against one target.
type Result struct {
	Cluster string
	Err     error
}

// Recorder persists rollout events. The zero-value NopRecorder is used when
// no database is configured.
type Recorder interface {
	Record(ctx context.Context, ev store.RolloutEvent)
}

// NopRecorder drops events.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, store.RolloutEvent) {}

// ClientFactory builds a clientset from kubeconfig bytes. Swappable in tests.
type ClientFactory func(kubeconfig []byte) (kubernetes.Interface, error)

// Rollout applies or retracts the manifest across a set of clusters with
// bounded parallelism. A failure against one cluster does not stop the rest.
type Rollout struct {
	Parallelism int
	Clients     ClientFactory
	Recorder    Recorder
	Logger      *slog.Logger
}

// New creates a Rollout with the given parallelism bound.
func New(parallelism int, rec Recorder, logger *slog.Logger) *Rollout {
	if parallelism <= 0 {
		parallelism = 1
	}
	if rec == nil {
		rec = NopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rollout{
		Parallelism: parallelism,
		Clients:     k8s.ClientFromKubeconfig,
		Recorder:    rec,
		Logger:      logger,
	}
}

// Run executes the action against every target and returns per-target
// results in target order.
func (r *Rollout) Run(ctx context.Context, action string, m *rbac.Manifest, targets []Target) []Result {
	results := make([]Result, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Parallelism)

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			err := r.runOne(ctx, action, m, target)
			results[i] = Result{Cluster: target.Name, Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (r *Rollout) runOne(ctx context.Context, action string, m *rbac.Manifest, target Target) error {
	r.Logger.Info("rolling out", "cluster", target.Name, "action", action)

	err := func() error {
		client, err := r.Clients(target.Kubeconfig)
		if err != nil {
			return err
		}
		switch action {
		case ActionDelete:
			return k8s.Delete(ctx, client, m)
		default:
			return k8s.Apply(ctx, client, m)
		}
	}()

	ev := store.RolloutEvent{
		ID:      newEventID(),
		Cluster: target.Name,
		Action:  action,
		Outcome: "ok",
	}
	if err != nil {
		ev.Outcome = "error"
		ev.Detail = err.Error()
		r.Logger.Error("rollout failed", "cluster", target.Name, "error", err)
	}
	r.Recorder.Record(ctx, ev)

	return err
}

func newEventID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
}
