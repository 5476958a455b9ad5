// Package syncengine drains the offline submission queue to the server.
//
// ────────────────────────────────────────────────────────────────────
// LEARNING NOTE — the three rules of the drain
// ────────────────────────────────────────────────────────────────────
//  1. FIFO, one at a time. Visits are captured in a meaningful order and
//     must arrive in it; parallel uploads would reorder them and the
//     server contract has no idempotency keys to make that safe.
//  2. Per-entry failure isolation. A failed entry stays in the queue for
//     the next drain and this drain moves on — one bad entry must never
//     dam the queue behind it.
//  3. One drain at a time. Connectivity flaps fire OnChange repeatedly;
//     an atomic guard makes overlapping triggers cheap no-ops instead of
//     duplicate submissions.
package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"storecheck/internal/fieldkit/api"
	"storecheck/internal/fieldkit/connectivity"
	"storecheck/internal/fieldkit/localstore"
	"storecheck/internal/models"
)

// ErrDrainInProgress is returned when DrainQueue is called while another
// drain is still running.
var ErrDrainInProgress = errors.New("syncengine: drain already in progress")

// VisitCreator is the one server operation the engine needs. *api.Client
// satisfies it; tests substitute their own.
type VisitCreator interface {
	CreateVisit(ctx context.Context, p models.VisitPayload) (models.Visit, error)
}

// Failure records one queue entry that could not be synced this round. The
// entry remains queued and retryable.
type Failure struct {
	ID  string
	Err error
}

// Result summarizes one drain.
type Result struct {
	// Synced counts entries accepted by the server and removed from the
	// queue.
	Synced int
	// Failed lists entries that stay queued, in queue order.
	Failed []Failure
}

// Engine drains the queue when asked, or automatically on an
// offline→online transition.
type Engine struct {
	store    *localstore.Store
	server   VisitCreator
	oracle   connectivity.Oracle // may be nil: callers then gate drains themselves
	log      *slog.Logger
	draining atomic.Bool
}

// New builds an engine over the local store and server client. A nil oracle
// disables the offline short-circuit and Watch.
func New(store *localstore.Store, server VisitCreator, oracle connectivity.Oracle, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, server: server, oracle: oracle, log: log}
}

// Watch subscribes the engine to connectivity transitions: every
// offline→online edge starts a drain on a new goroutine. Returns the
// unsubscribe function, or nil when no oracle is configured.
func (e *Engine) Watch(ctx context.Context) (cancel func()) {
	if e.oracle == nil {
		return nil
	}
	return e.oracle.OnChange(func(online bool) {
		if !online {
			return
		}
		go func() {
			if _, err := e.DrainQueue(ctx); err != nil && !errors.Is(err, ErrDrainInProgress) {
				e.log.Error("auto drain", "err", err)
			}
		}()
	})
}

// DrainQueue submits every pending visit in capture order. While offline it
// is a no-op returning a zero Result. Safe to call from any goroutine; a
// second call while one runs returns ErrDrainInProgress.
func (e *Engine) DrainQueue(ctx context.Context) (Result, error) {
	if !e.draining.CompareAndSwap(false, true) {
		return Result{}, ErrDrainInProgress
	}
	defer e.draining.Store(false)

	if e.oracle != nil && !e.oracle.Online() {
		return Result{}, nil
	}

	pending, err := e.store.Pending(ctx)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, v := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		// The server assigns the real id; the offline id exists only to
		// key the queue entry. The create carries the same "completed"
		// state a live submission would — the server cannot tell a
		// drained visit from one submitted online, and must not.
		payload := v.Payload
		payload.State = models.VisitCompleted

		_, err := e.server.CreateVisit(ctx, payload)
		if err != nil {
			var apiErr *api.APIError
			if errors.As(err, &apiErr) {
				// Server saw it and said no. The entry needs a human
				// decision (fix or discard), not a blind retry.
				e.log.Warn("visit rejected during drain", "id", v.ID, "status", apiErr.Status, "err", apiErr.Message)
			} else {
				// Transport failure: probably offline again. The entry
				// will succeed untouched on the next drain.
				e.log.Info("visit not delivered during drain", "id", v.ID, "err", err)
			}
			res.Failed = append(res.Failed, Failure{ID: v.ID, Err: err})
			continue
		}

		if err := e.store.Remove(ctx, v.ID); err != nil {
			// The server accepted the visit but the local delete failed;
			// next drain will re-send and the server sees a duplicate.
			// Surfacing the error beats hiding the possibility.
			return res, err
		}
		res.Synced++
	}
	return res, nil
}
