package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"platter/internal/api"
	"platter/internal/display"
	"platter/internal/imaging"
	"platter/internal/media"
	"platter/internal/pipeline"
	"platter/internal/queue"
	"platter/internal/testsupport"
)

type nopImager struct{}

func (nopImager) SaveToFile(ctx context.Context, source media.Source, imagePath string, progress func(int)) error {
	return nil
}

type nopEncoder struct{}

func (nopEncoder) Encode(ctx context.Context, presetName string, descriptor *media.Descriptor, inputPath, outputPath string, titleIndex int, progress func(int)) error {
	return nil
}

var _ imaging.Imager = nopImager{}

func newTestServer(t *testing.T) (*api.Server, *pipeline.Dispatcher, *api.Broker) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	broker := api.NewBroker()
	hub := display.NewHub(func(name string) display.Handle {
		return api.NewHandle(name, broker)
	})
	t.Cleanup(hub.Close)

	scanner := media.NewScanner(func(ctx context.Context, sourcePath string) (*media.Descriptor, error) {
		return &media.Descriptor{Titles: map[int]media.Title{1: {Duration: time.Hour}}}, nil
	})
	dispatcher, err := pipeline.New(cfg, store, hub, nopImager{}, scanner, nopEncoder{}, nil)
	if err != nil {
		t.Fatalf("pipeline.New failed: %v", err)
	}
	return api.NewServer(dispatcher, broker, nil), dispatcher, broker
}

func TestStatusEndpointReportsQueueState(t *testing.T) {
	server, dispatcher, _ := newTestServer(t)
	ctx := context.Background()

	if _, err := dispatcher.Enqueue(ctx, media.NewFileSource("/media/a.iso"), "/out/a.mkv", 1, false); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Enabled bool           `json:"enabled"`
		Length  int            `json:"length"`
		Stats   map[string]int `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Enabled || payload.Length != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Stats[queue.StatusPendingEncode.String()] != 1 {
		t.Fatalf("unexpected stats: %+v", payload.Stats)
	}
}

func TestQueueEndpointsReturnItems(t *testing.T) {
	server, dispatcher, _ := newTestServer(t)
	ctx := context.Background()

	item, err := dispatcher.Enqueue(ctx, media.NewDriveSource("/dev/sr0", "MOVIE_X"), "/out/x.mkv", 1, true)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	router := server.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list failed: %d", rec.Code)
	}
	var items []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(items) != 1 || items[0]["media_key"] != "MOVIE_X" {
		t.Fatalf("unexpected list payload: %v", items)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue/"+strconv.FormatInt(item.ID, 10), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get item failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue/99999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing item, got %d", rec.Code)
	}
}

func TestEnqueueEndpointCreatesAndRejectsDuplicates(t *testing.T) {
	server, _, _ := newTestServer(t)
	router := server.Router()

	body := `{"path":"/media/in.iso","output_path":"/out/in.mkv","title_index":1}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/queue", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("enqueue failed: %d %s", rec.Code, rec.Body.String())
	}
	var view map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode enqueue response: %v", err)
	}
	if view["status"] != queue.StatusPendingEncode.String() {
		t.Fatalf("unexpected initial status: %v", view["status"])
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/queue", strings.NewReader(body)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected conflict for duplicate enqueue, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/queue", strings.NewReader(`{"path":"/media/x.iso"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request without output_path, got %d", rec.Code)
	}
}

func TestEnableDisableEndpoints(t *testing.T) {
	server, dispatcher, _ := newTestServer(t)
	router := server.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/disable", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("disable failed: %d", rec.Code)
	}
	if dispatcher.Enabled() {
		t.Fatal("dispatcher still enabled after disable")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/enable", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("enable failed: %d", rec.Code)
	}
	if !dispatcher.Enabled() {
		t.Fatal("dispatcher not enabled after enable")
	}
}

func TestEventStreamDeliversPublishedEvents(t *testing.T) {
	server, _, broker := newTestServer(t)

	srv := httptest.NewServer(server.Router())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}

	// The subscription happens inside the handler; give it a moment before
	// publishing so the event is not dropped.
	time.Sleep(50 * time.Millisecond)
	broker.Publish(api.Event{Type: api.EventProgress, Media: "MOVIE_X", Percent: 42})

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if !strings.HasPrefix(line, "data: ") {
		t.Fatalf("unexpected stream line: %q", line)
	}
	var event api.Event
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Type != api.EventProgress || event.Media != "MOVIE_X" || event.Percent != 42 {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestBrokerDropsEventsForSlowSubscribers(t *testing.T) {
	broker := api.NewBroker()
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	for i := 0; i < 200; i++ {
		broker.Publish(api.Event{Type: api.EventProgress, Media: "busy", Percent: i})
	}
	// The channel buffer bounds retained events; publishing never blocked.
	if len(ch) == 0 || len(ch) > 64 {
		t.Fatalf("unexpected buffered event count: %d", len(ch))
	}
}
