package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"platter/internal/logging"
	"platter/internal/media"
	"platter/internal/pipeline"
	"platter/internal/queue"
)

// Server serves the daemon's HTTP surface.
type Server struct {
	dispatcher *pipeline.Dispatcher
	broker     *Broker
	logger     *slog.Logger
}

// NewServer builds the HTTP surface over a running dispatcher.
func NewServer(dispatcher *pipeline.Dispatcher, broker *Broker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		dispatcher: dispatcher,
		broker:     broker,
		logger:     logging.NewComponentLogger(logger, "api"),
	}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/queue", s.handleQueueList)
	r.Post("/api/queue", s.handleEnqueue)
	r.Get("/api/queue/{id}", s.handleQueueItem)
	r.Get("/api/events", s.handleEvents)
	r.Post("/api/enable", s.handleSetEnabled(true))
	r.Post("/api/disable", s.handleSetEnabled(false))

	return r
}

type statusResponse struct {
	Enabled bool           `json:"enabled"`
	Length  int            `json:"length"`
	Stats   map[string]int `json:"stats"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	length, err := s.dispatcher.Len(r.Context())
	if err != nil {
		s.internalError(w, "queue length", err)
		return
	}
	stats, err := s.dispatcher.Store().Stats(r.Context())
	if err != nil {
		s.internalError(w, "queue stats", err)
		return
	}
	byName := make(map[string]int, len(stats))
	for status, count := range stats {
		byName[status.String()] = count
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		Enabled: s.dispatcher.Enabled(),
		Length:  length,
		Stats:   byName,
	})
}

type itemView struct {
	ID         int64  `json:"id"`
	MediaKey   string `json:"media_key"`
	MediaName  string `json:"media_name"`
	SourceType string `json:"source_type"`
	SourcePath string `json:"source_path"`
	OutputPath string `json:"output_path"`
	TitleIndex int    `json:"title_index"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	ChangedAt  string `json:"changed_at"`
}

func viewOf(item *queue.Item) itemView {
	return itemView{
		ID:         item.ID,
		MediaKey:   item.MediaKey,
		MediaName:  item.MediaName,
		SourceType: string(item.Source.Type),
		SourcePath: item.Source.Path,
		OutputPath: item.OutputPath,
		TitleIndex: item.TitleIndex,
		Status:     item.Status.String(),
		Error:      item.ErrorMessage,
		CreatedAt:  item.CreatedAt.UTC().Format(time.RFC3339),
		ChangedAt:  item.StatusChangedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleQueueList(w http.ResponseWriter, r *http.Request) {
	items, err := s.dispatcher.Store().List(r.Context())
	if err != nil {
		s.internalError(w, "list queue", err)
		return
	}
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, viewOf(item))
	}
	s.writeJSON(w, http.StatusOK, views)
}

type enqueueRequest struct {
	Path       string `json:"path"`
	Device     string `json:"device"`
	Volume     string `json:"volume"`
	OutputPath string `json:"output_path"`
	TitleIndex int    `json:"title_index"`
}

// handleEnqueue submits a new job. A request naming a device enqueues a rip
// from that drive; a request naming a path enqueues an encode of that file.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OutputPath == "" {
		http.Error(w, "output_path is required", http.StatusBadRequest)
		return
	}

	var source media.Source
	needsRip := false
	switch {
	case req.Device != "":
		source = media.NewDriveSource(req.Device, req.Volume)
		needsRip = true
	case req.Path != "":
		source = media.NewFileSource(req.Path)
	default:
		http.Error(w, "path or device is required", http.StatusBadRequest)
		return
	}

	item, err := s.dispatcher.Enqueue(r.Context(), source, req.OutputPath, req.TitleIndex, needsRip)
	if err != nil {
		s.internalError(w, "enqueue", err)
		return
	}
	if item == nil {
		http.Error(w, "item already queued", http.StatusConflict)
		return
	}
	s.writeJSON(w, http.StatusCreated, viewOf(item))
}

func (s *Server) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}
	item, err := s.dispatcher.Store().GetByID(r.Context(), id)
	if err != nil {
		s.internalError(w, "get item", err)
		return
	}
	if item == nil {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(item))
}

func (s *Server) handleSetEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dispatcher.SetEnabled(enabled)
		s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
	}
}

// handleEvents streams display events as server-sent events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.broker.Subscribe()
	defer s.broker.Unsubscribe(events)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response", logging.Error(err))
	}
}

func (s *Server) internalError(w http.ResponseWriter, operation string, err error) {
	s.logger.Error("request failed",
		logging.String("operation", operation),
		logging.Error(err),
	)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
