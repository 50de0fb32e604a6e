package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"platter/internal/display"
	"platter/internal/logging"
	"platter/internal/queue"
	"platter/internal/services"
)

const claimRetryDelay = 5 * time.Second

// stage bundles the per-stage behavior a worker loop executes. execute runs
// the external operation and must not touch the store; record persists the
// outcome and performs the handoff to the next stage.
type stage struct {
	name    string
	pending queue.Status
	active  queue.Status
	execute func(ctx context.Context, item *queue.Item, progress func(percent int)) error
	record  func(ctx context.Context, item *queue.Item) error
}

// worker is one long-lived stage loop. It idles on its wake signal, claims
// pending items oldest first, and survives both external-tool failures and
// store faults; only context cancellation ends the loop.
type worker struct {
	stage  stage
	store  *queue.Store
	hub    *display.Hub
	wake   *Signal
	gate   func() bool
	logger *slog.Logger
}

func (w *worker) run(ctx context.Context) {
	for {
		if err := w.wake.Wait(ctx); err != nil {
			return
		}
		if !w.drain(ctx) {
			return
		}
	}
}

// drain processes pending items until none remain, then clears the wake
// signal so the next enqueue re-arms it. Returns false on shutdown.
func (w *worker) drain(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if w.gate != nil && !w.gate() {
			w.wake.Clear()
			return true
		}

		item, err := w.claim(ctx)
		if err != nil {
			w.logger.Error("claim failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_failed"),
			)
			select {
			case <-ctx.Done():
				return false
			case <-time.After(claimRetryDelay):
			}
			continue
		}
		if item == nil {
			w.wake.Clear()
			// An enqueue may land between the empty query and the clear;
			// one recheck closes that window.
			item, err = w.claim(ctx)
			if err != nil || item == nil {
				return true
			}
		}

		w.process(ctx, item)
	}
}

// claim selects the earliest pending item and transitions it to the active
// status within one short store session. Returns nil when nothing is
// pending.
func (w *worker) claim(ctx context.Context) (*queue.Item, error) {
	pending, err := w.store.ItemsByStatus(ctx, w.stage.pending)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	item := pending[0]
	if err := w.store.SetStatus(ctx, item.ID, w.stage.active); err != nil {
		return nil, err
	}
	item.Status = w.stage.active
	w.hub.SetStatus(item.MediaName, item.Status)
	return item, nil
}

func (w *worker) process(ctx context.Context, item *queue.Item) {
	requestID := uuid.NewString()
	logger := w.logger.With(
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldMediaKey, item.MediaKey),
		logging.String(logging.FieldRequestID, requestID),
	)
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
	)
	start := time.Now()

	execErr := w.stage.execute(ctx, item, w.progressFunc(item))
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) || errors.Is(execErr, context.DeadlineExceeded) {
			logger.Debug("stage interrupted by shutdown")
			return
		}
		w.recordFailure(ctx, logger, item, execErr)
		return
	}

	if err := w.stage.record(ctx, item); err != nil {
		logger.Error("failed to persist stage result",
			logging.Error(err),
			logging.String(logging.FieldEventType, "record_failed"),
		)
		return
	}
	w.hub.SetStatus(item.MediaName, item.Status)
	logger.Info("stage finished",
		logging.String(logging.FieldEventType, "stage_finish"),
		logging.Duration("elapsed", time.Since(start)),
	)
}

func (w *worker) recordFailure(ctx context.Context, logger *slog.Logger, item *queue.Item, execErr error) {
	if services.IsExternalToolError(execErr) {
		logger.Warn("external tool failed",
			logging.Error(execErr),
			logging.String(logging.FieldEventType, "external_tool_failed"),
		)
	} else {
		logger.Error("stage execution failed",
			logging.Error(execErr),
			logging.String(logging.FieldEventType, "stage_failed"),
		)
	}
	if err := w.store.SetError(ctx, item.ID, execErr.Error()); err != nil {
		logger.Error("failed to persist error status", logging.Error(err))
		return
	}
	item.Status = queue.StatusError
	w.hub.SetStatus(item.MediaName, queue.StatusError)
}

// progressFunc clamps ticks to [0,100] and drops regressions so observers
// see a non-decreasing sequence within one execution.
func (w *worker) progressFunc(item *queue.Item) func(percent int) {
	last := -1
	return func(percent int) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		if percent < last {
			return
		}
		last = percent
		w.hub.SetProgress(item.MediaName, percent)
	}
}
