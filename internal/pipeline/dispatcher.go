package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"platter/internal/config"
	"platter/internal/display"
	"platter/internal/imaging"
	"platter/internal/logging"
	"platter/internal/media"
	"platter/internal/queue"
	"platter/internal/services"
	"platter/internal/textutil"
)

// Encoder transcodes one title of an input into the output path, reporting
// percent-complete through progress. Satisfied by the handbrake client.
type Encoder interface {
	Encode(ctx context.Context, presetName string, descriptor *media.Descriptor, inputPath, outputPath string, titleIndex int, progress func(percent int)) error
}

// Dispatcher is the queue facade: it persists submitted jobs, owns the two
// stage workers and their wake signals, and resumes incomplete work on
// startup.
type Dispatcher struct {
	cfg     *config.Config
	store   *queue.Store
	hub     *display.Hub
	imager  imaging.Imager
	scanner *media.Scanner
	encoder Encoder
	logger  *slog.Logger

	ripWake    *Signal
	encodeWake *Signal
	enabled    atomic.Bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a dispatcher. The scanner memoizes descriptor scans across
// encodes of the same source.
func New(cfg *config.Config, store *queue.Store, hub *display.Hub, imager imaging.Imager, scanner *media.Scanner, encoder Encoder, logger *slog.Logger) (*Dispatcher, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("config and store required")
	}
	if imager == nil || scanner == nil || encoder == nil {
		return nil, errors.New("imager, scanner, and encoder required")
	}
	if hub == nil {
		hub = display.NewHub(nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Dispatcher{
		cfg:        cfg,
		store:      store,
		hub:        hub,
		imager:     imager,
		scanner:    scanner,
		encoder:    encoder,
		logger:     logger,
		ripWake:    NewSignal(),
		encodeWake: NewSignal(),
	}
	d.enabled.Store(cfg.Workflow.StartEnabled)
	return d, nil
}

// Start launches both stage workers. It does not signal them; call
// RestartIncompleteJobs or SetEnabled to surface existing work.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("dispatcher already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true

	workers := []*worker{
		{
			stage:  d.ripStage(),
			store:  d.store,
			hub:    d.hub,
			wake:   d.ripWake,
			gate:   d.enabled.Load,
			logger: logging.NewComponentLogger(d.logger, "rip-worker"),
		},
		{
			stage:  d.encodeStage(),
			store:  d.store,
			hub:    d.hub,
			wake:   d.encodeWake,
			gate:   d.enabled.Load,
			logger: logging.NewComponentLogger(d.logger, "encode-worker"),
		},
	}
	d.wg.Add(len(workers))
	for _, w := range workers {
		go func(w *worker) {
			defer d.wg.Done()
			w.run(runCtx)
		}(w)
	}
	return nil
}

// Stop cancels the workers and waits for them to finish their current
// iteration. An item mid-execute is interrupted, its persisted status left
// as-is for the next startup to resume.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
}

// Enqueue submits a media job. A job whose media identity is already queued
// is silently skipped so the caller can re-submit without checking first.
// The returned item is nil for a duplicate.
func (d *Dispatcher) Enqueue(ctx context.Context, source media.Source, outputPath string, titleIndex int, needsRip bool) (*queue.Item, error) {
	initial := queue.StatusPendingEncode
	if needsRip {
		initial = queue.StatusPendingRip
	}

	d.hub.Ensure(source.DisplayName())

	item, err := d.store.Insert(ctx, source, outputPath, titleIndex, initial)
	if errors.Is(err, queue.ErrDuplicateKey) {
		d.logger.Debug("duplicate submission skipped",
			logging.String(logging.FieldMediaKey, source.Key()),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	d.logger.Info("job enqueued",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldMediaKey, item.MediaKey),
		logging.String("status", item.Status.String()),
	)
	d.hub.SetStatus(item.MediaName, item.Status)
	if d.enabled.Load() {
		if needsRip {
			d.ripWake.Set()
		} else {
			d.encodeWake.Set()
		}
	}
	return item, nil
}

// SetEnabled arms or disarms job dispatch. Enabling wakes both stages so
// already-pending items become eligible; disabling prevents new claims but
// never interrupts an item mid-execute.
func (d *Dispatcher) SetEnabled(enabled bool) {
	d.enabled.Store(enabled)
	if enabled {
		d.ripWake.Set()
		d.encodeWake.Set()
	} else {
		d.ripWake.Clear()
		d.encodeWake.Clear()
	}
}

// Enabled reports whether dispatch is armed.
func (d *Dispatcher) Enabled() bool {
	return d.enabled.Load()
}

// RestartIncompleteJobs resumes work left over from a previous run: items
// stranded in an active status by an unclean shutdown are reset to the
// matching pending status, every incomplete item is logged, and the stages
// with pending work are woken.
func (d *Dispatcher) RestartIncompleteJobs(ctx context.Context) error {
	incomplete, err := d.store.ItemsBelowStatus(ctx, queue.StatusFinished)
	if err != nil {
		return fmt.Errorf("query incomplete items: %w", err)
	}

	var ripPending, encodePending int
	for _, item := range incomplete {
		if reset, ok := item.Status.PendingStatus(); ok && item.Status.IsActive() {
			if err := d.store.SetStatus(ctx, item.ID, reset); err != nil {
				return fmt.Errorf("reset item %d: %w", item.ID, err)
			}
			d.logger.Info("reset interrupted job",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldMediaKey, item.MediaKey),
				logging.String("from", item.Status.String()),
				logging.String("to", reset.String()),
			)
			item.Status = reset
		}

		d.hub.Ensure(item.MediaName)
		d.logger.Info("incomplete job found",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldMediaKey, item.MediaKey),
			logging.String("status", item.Status.String()),
			logging.String(logging.FieldEventType, "restart_incomplete"),
		)

		switch item.Status {
		case queue.StatusPendingRip:
			ripPending++
		case queue.StatusPendingEncode:
			encodePending++
		}
	}

	if d.enabled.Load() {
		if ripPending > 0 {
			d.ripWake.Set()
		}
		if encodePending > 0 {
			d.encodeWake.Set()
		}
	}
	return nil
}

// Len reports the number of items awaiting encode.
func (d *Dispatcher) Len(ctx context.Context) (int, error) {
	return d.store.Len(ctx)
}

// Store exposes the backing queue store for read-only surfaces.
func (d *Dispatcher) Store() *queue.Store {
	return d.store
}

func (d *Dispatcher) ripStage() stage {
	return stage{
		name:    "rip",
		pending: queue.StatusPendingRip,
		active:  queue.StatusRipping,
		execute: d.executeRip,
		record:  d.recordRipSuccess,
	}
}

func (d *Dispatcher) encodeStage() stage {
	return stage{
		name:    "encode",
		pending: queue.StatusPendingEncode,
		active:  queue.StatusEncoding,
		execute: d.executeEncode,
		record:  d.recordEncodeSuccess,
	}
}

func (d *Dispatcher) executeRip(ctx context.Context, item *queue.Item, progress func(percent int)) error {
	imagePath := d.imagePath(item)
	if err := d.imager.SaveToFile(ctx, item.Source, imagePath, progress); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return services.Wrap(services.ErrExternalTool, "rip", "save to file", "image extraction failed", err)
	}
	ripped := media.NewFileSource(imagePath)
	ripped.Volume = item.Source.Volume
	ripped.Name = item.MediaName
	item.Source = ripped
	return nil
}

// recordRipSuccess persists the image-file source, hands the item to the
// encode stage, and wakes the encode worker. The handoff is daisy-chained:
// a ripped item never waits for a separate dispatch.
func (d *Dispatcher) recordRipSuccess(ctx context.Context, item *queue.Item) error {
	if err := d.store.UpdateSource(ctx, item.ID, item.Source); err != nil {
		return err
	}
	if err := d.store.SetStatus(ctx, item.ID, queue.StatusPendingEncode); err != nil {
		return err
	}
	item.Status = queue.StatusPendingEncode
	d.encodeWake.Set()
	return nil
}

func (d *Dispatcher) executeEncode(ctx context.Context, item *queue.Item, progress func(percent int)) error {
	descriptor, err := d.scanner.Resolve(ctx, item.Source.Path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return services.Wrap(services.ErrExternalTool, "encode", "scan", "title scan failed", err)
	}

	titleIndex := item.TitleIndex
	if _, ok := descriptor.Titles[titleIndex]; !ok {
		titleIndex = descriptor.LongestTitle()
	}
	if title, ok := descriptor.Titles[titleIndex]; ok {
		d.logger.Info("title selected",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Int("title", titleIndex),
			logging.Duration("duration", title.Duration),
			logging.String("audio_languages", strings.Join(title.AudioLanguages(), ", ")),
		)
	}

	err = d.encoder.Encode(ctx, d.cfg.HandBrake.Preset, descriptor, item.Source.Path, item.OutputPath, titleIndex, progress)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return services.Wrap(services.ErrExternalTool, "encode", "transcode", "transcode failed", err)
	}
	return nil
}

func (d *Dispatcher) recordEncodeSuccess(ctx context.Context, item *queue.Item) error {
	if err := d.store.SetStatus(ctx, item.ID, queue.StatusFinished); err != nil {
		return err
	}
	item.Status = queue.StatusFinished
	return nil
}

func (d *Dispatcher) imagePath(item *queue.Item) string {
	base := textutil.SanitizeFileName(item.MediaKey)
	if base == "" {
		base = fmt.Sprintf("item-%d", item.ID)
	}
	if filepath.Ext(base) == "" {
		base += ".iso"
	}
	return filepath.Join(d.cfg.Paths.TempDir, base)
}
