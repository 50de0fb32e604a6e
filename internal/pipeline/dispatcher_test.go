package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"platter/internal/config"
	"platter/internal/display"
	"platter/internal/media"
	"platter/internal/pipeline"
	"platter/internal/queue"
	"platter/internal/testsupport"
)

type fakeImager struct {
	mu    sync.Mutex
	fail  bool
	ticks []int
	calls []string
}

func (f *fakeImager) SaveToFile(ctx context.Context, source media.Source, imagePath string, progress func(int)) error {
	f.mu.Lock()
	f.calls = append(f.calls, source.Key())
	fail := f.fail
	ticks := f.ticks
	f.mu.Unlock()

	if fail {
		return errors.New("exit status 1")
	}
	for _, tick := range ticks {
		if progress != nil {
			progress(tick)
		}
	}
	return nil
}

func (f *fakeImager) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeEncoder struct {
	mu     sync.Mutex
	fail   bool
	inputs []string
}

func (f *fakeEncoder) Encode(ctx context.Context, presetName string, descriptor *media.Descriptor, inputPath, outputPath string, titleIndex int, progress func(int)) error {
	f.mu.Lock()
	f.inputs = append(f.inputs, inputPath)
	fail := f.fail
	f.mu.Unlock()

	if fail {
		return errors.New("exit status 3")
	}
	if progress != nil {
		progress(100)
	}
	return nil
}

func (f *fakeEncoder) encodedInputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

func staticScanner() *media.Scanner {
	return media.NewScanner(func(ctx context.Context, sourcePath string) (*media.Descriptor, error) {
		return &media.Descriptor{Titles: map[int]media.Title{1: {Duration: time.Hour}}}, nil
	})
}

type env struct {
	cfg        *config.Config
	store      *queue.Store
	hub        *display.Hub
	imager     *fakeImager
	encoder    *fakeEncoder
	dispatcher *pipeline.Dispatcher
}

func newEnv(t *testing.T, opts ...testsupport.ConfigOption) *env {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	hub := display.NewHub(nil)
	t.Cleanup(hub.Close)

	imager := &fakeImager{}
	encoder := &fakeEncoder{}
	dispatcher, err := pipeline.New(cfg, store, hub, imager, staticScanner(), encoder, nil)
	if err != nil {
		t.Fatalf("pipeline.New failed: %v", err)
	}
	return &env{cfg: cfg, store: store, hub: hub, imager: imager, encoder: encoder, dispatcher: dispatcher}
}

func (e *env) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	if err := e.dispatcher.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		e.dispatcher.Stop()
		cancel()
	})
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		item, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if item != nil && item.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	item, _ := store.GetByID(context.Background(), id)
	t.Fatalf("item %d never reached %s, last seen %#v", id, want, item)
}

func TestEnqueueIsIdempotentPerIdentity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	source := media.NewDriveSource("/dev/sr0", "MOVIE_X")
	item, err := e.dispatcher.Enqueue(ctx, source, "/out/x.mkv", 1, true)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if item == nil || item.Status != queue.StatusPendingRip {
		t.Fatalf("unexpected enqueued item: %#v", item)
	}

	dup, err := e.dispatcher.Enqueue(ctx, source, "/out/x-second.mkv", 2, true)
	if err != nil {
		t.Fatalf("duplicate Enqueue errored: %v", err)
	}
	if dup != nil {
		t.Fatalf("duplicate Enqueue returned an item: %#v", dup)
	}

	items, err := e.store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 || items[0].Status != queue.StatusPendingRip {
		t.Fatalf("expected one pending-rip item, got %#v", items)
	}
}

func TestEndToEndRipThenEncode(t *testing.T) {
	e := newEnv(t, testsupport.WithStartDisabled())
	ctx := context.Background()

	item, err := e.dispatcher.Enqueue(ctx, media.NewDriveSource("/dev/sr0", "MOVIE_X"), "/out/x.mkv", 1, true)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if item.Status != queue.StatusPendingRip {
		t.Fatalf("expected pending-rip, got %s", item.Status)
	}

	e.start(t)
	e.dispatcher.SetEnabled(true)

	waitForStatus(t, e.store, item.ID, queue.StatusFinished)

	incomplete, err := e.store.ItemsBelowStatus(ctx, queue.StatusFinished)
	if err != nil {
		t.Fatalf("ItemsBelowStatus failed: %v", err)
	}
	if len(incomplete) != 0 {
		t.Fatalf("expected no incomplete items, got %#v", incomplete)
	}

	finished, err := e.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if finished.Source.Type != media.SourceFile {
		t.Fatalf("rip handoff did not swap the source: %#v", finished.Source)
	}
	inputs := e.encoder.encodedInputs()
	if len(inputs) != 1 || inputs[0] != finished.Source.Path {
		t.Fatalf("encoder ran on %v, want the ripped image %q", inputs, finished.Source.Path)
	}
}

func TestRipFailureParksItemInError(t *testing.T) {
	e := newEnv(t)
	e.imager.fail = true
	ctx := context.Background()

	item, err := e.dispatcher.Enqueue(ctx, media.NewDriveSource("/dev/sr0", "BAD_DISC"), "/out/bad.mkv", 1, true)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	e.start(t)

	waitForStatus(t, e.store, item.ID, queue.StatusError)

	failed, err := e.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if failed.ErrorMessage == "" {
		t.Fatal("expected an error message on the failed item")
	}
	pendingEncode, err := e.store.ItemsByStatus(ctx, queue.StatusPendingEncode)
	if err != nil {
		t.Fatalf("ItemsByStatus failed: %v", err)
	}
	if len(pendingEncode) != 0 {
		t.Fatalf("failed rip leaked into the encode queue: %#v", pendingEncode)
	}
	if len(e.encoder.encodedInputs()) != 0 {
		t.Fatal("encoder ran on a failed rip")
	}
}

func TestRipClaimsInInsertionOrder(t *testing.T) {
	e := newEnv(t, testsupport.WithStartDisabled())
	ctx := context.Background()

	var ids []int64
	for _, volume := range []string{"DISC_A", "DISC_B", "DISC_C"} {
		item, err := e.dispatcher.Enqueue(ctx, media.NewDriveSource("/dev/sr0", volume), "/out/"+volume+".mkv", 1, true)
		if err != nil {
			t.Fatalf("Enqueue %s failed: %v", volume, err)
		}
		ids = append(ids, item.ID)
	}

	e.start(t)
	e.dispatcher.SetEnabled(true)

	for _, id := range ids {
		waitForStatus(t, e.store, id, queue.StatusFinished)
	}
	order := e.imager.callOrder()
	if len(order) != 3 || order[0] != "DISC_A" || order[1] != "DISC_B" || order[2] != "DISC_C" {
		t.Fatalf("rip claim order wrong: %v", order)
	}
}

func TestEnqueueWhileDisabledDoesNotDispatch(t *testing.T) {
	e := newEnv(t, testsupport.WithStartDisabled())
	ctx := context.Background()

	e.start(t)
	item, err := e.dispatcher.Enqueue(ctx, media.NewDriveSource("/dev/sr0", "PARKED"), "/out/parked.mkv", 1, true)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	parked, err := e.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if parked.Status != queue.StatusPendingRip {
		t.Fatalf("disabled dispatcher still processed the item: %s", parked.Status)
	}

	e.dispatcher.SetEnabled(true)
	waitForStatus(t, e.store, item.ID, queue.StatusFinished)
}

func TestRestartIncompleteJobsResetsActiveStatuses(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ripping := testsupport.NewDriveItem(t, e.store, "/dev/sr0", "INTERRUPTED_RIP", "/out/a.mkv")
	if err := e.store.SetStatus(ctx, ripping.ID, queue.StatusRipping); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	encoding := testsupport.NewFileItem(t, e.store, "/media/interrupted.iso", "/out/b.mkv")
	if err := e.store.SetStatus(ctx, encoding.ID, queue.StatusEncoding); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	parked := testsupport.NewFileItem(t, e.store, "/media/parked.iso", "/out/c.mkv")
	if err := e.store.SetError(ctx, parked.ID, "old failure"); err != nil {
		t.Fatalf("SetError failed: %v", err)
	}

	if err := e.dispatcher.RestartIncompleteJobs(ctx); err != nil {
		t.Fatalf("RestartIncompleteJobs failed: %v", err)
	}

	check := func(id int64, want queue.Status) {
		t.Helper()
		item, err := e.store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if item.Status != want {
			t.Fatalf("item %d has status %s, want %s", id, item.Status, want)
		}
	}
	check(ripping.ID, queue.StatusPendingRip)
	check(encoding.ID, queue.StatusPendingEncode)
	check(parked.ID, queue.StatusError)
}

func TestRestartThenStartResumesInterruptedWork(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	item := testsupport.NewDriveItem(t, e.store, "/dev/sr0", "RESUME_ME", "/out/resume.mkv")
	if err := e.store.SetStatus(ctx, item.ID, queue.StatusRipping); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	if err := e.dispatcher.RestartIncompleteJobs(ctx); err != nil {
		t.Fatalf("RestartIncompleteJobs failed: %v", err)
	}
	e.start(t)

	waitForStatus(t, e.store, item.ID, queue.StatusFinished)
}

func TestLenCountsPendingEncode(t *testing.T) {
	e := newEnv(t, testsupport.WithStartDisabled())
	ctx := context.Background()

	if _, err := e.dispatcher.Enqueue(ctx, media.NewFileSource("/media/a.iso"), "/out/a.mkv", 1, false); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := e.dispatcher.Enqueue(ctx, media.NewDriveSource("/dev/sr0", "DISC_B"), "/out/b.mkv", 1, true); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	length, err := e.dispatcher.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if length != 1 {
		t.Fatalf("expected queue length 1, got %d", length)
	}
}

type recordingHandle struct {
	mu       sync.Mutex
	percents []int
}

func (r *recordingHandle) SetStatus(status queue.Status) {}

func (r *recordingHandle) SetProgress(percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.percents = append(r.percents, percent)
}

func TestProgressTicksAreMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handle := &recordingHandle{}
	hub := display.NewHub(func(name string) display.Handle { return handle })
	t.Cleanup(hub.Close)

	imager := &fakeImager{ticks: []int{10, 5, 50, 50, 120}}
	encoder := &fakeEncoder{}
	dispatcher, err := pipeline.New(cfg, store, hub, imager, staticScanner(), encoder, nil)
	if err != nil {
		t.Fatalf("pipeline.New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := dispatcher.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer dispatcher.Stop()

	item, err := dispatcher.Enqueue(ctx, media.NewDriveSource("/dev/sr0", "TICKY"), "/out/ticky.mkv", 1, true)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	waitForStatus(t, store, item.ID, queue.StatusFinished)

	handle.mu.Lock()
	percents := append([]int(nil), handle.percents...)
	handle.mu.Unlock()
	last := -1
	for _, percent := range percents {
		if percent < last {
			t.Fatalf("progress regressed: %v", percents)
		}
		last = percent
	}
	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Fatalf("expected ticks ending at 100, got %v", percents)
	}
}
