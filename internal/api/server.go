// Package api implements the control HTTP API and event/data streaming
// surface: pipeline listing and lifecycle, the ControlCommand
// dispatch endpoint, the SSE event stream, and the binary-frame WebSocket
// bridge websocket_sink pushes through. Grounded on gorilla/mux for routing
//, the same router the rest of the
// retrieval pack's HTTP services use.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/config"
	"github.com/elata-labs/eegpipe/internal/control"
	"github.com/elata-labs/eegpipe/internal/logging"
	"github.com/elata-labs/eegpipe/internal/stages"
)

// Server wires a control.ControlPlane to its HTTP/SSE/WebSocket surface.
type Server struct {
	cp        *control.ControlPlane
	configDir string
	log       *logging.Logger
	hub       *connHub
	router    *mux.Router
}

// New builds a Server. metricsHandler is mounted at /metrics; when it is
// nil, promhttp.Handler() over the default Prometheus registry is mounted
// there instead (internal/telemetry.Registry satisfies prometheus.Gatherer via the
// registry it was built from; callers pass promhttp.HandlerFor(reg, ...)).
func New(cp *control.ControlPlane, configDir string, log *logging.Logger, metricsHandler http.Handler) *Server {
	s := &Server{
		cp:        cp,
		configDir: configDir,
		log:       log,
		hub:       newConnHub(log),
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/pipelines", s.handleListPipelines).Methods(http.MethodGet)
	r.HandleFunc("/api/pipelines/{id}/start", s.handleStartPipeline).Methods(http.MethodPost)
	r.HandleFunc("/api/pipelines/stop", s.handleStopPipeline).Methods(http.MethodPost)
	r.HandleFunc("/api/pipelines/{id}", s.handleUpdatePipeline).Methods(http.MethodPost)
	r.HandleFunc("/api/control", s.handleControl).Methods(http.MethodPost)
	r.HandleFunc("/api/state", s.handleGetState).Methods(http.MethodGet)
	r.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)
	r.Handle("/api/stream", s.hub)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}
	s.router = r

	return s
}

// Broadcaster returns the WebSocket hub websocket_sink stages should be
// wired to via stages.WebsocketSink.SetBroadcaster.
func (s *Server) Broadcaster() stages.Broadcaster { return s.hub }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusForError maps a structured eegpipe.Error's code to the HTTP status
// appropriate for the control-plane operation that produced it.
func statusForError(err error, notFound, conflict eegpipe.ErrCode) int {
	var e *eegpipe.Error
	if errors.As(err, &e) {
		switch e.Code {
		case notFound:
			return http.StatusNotFound
		case conflict:
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.configDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	summaries := make([]pipelineSummary, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if seen[id] {
			continue
		}
		seen[id] = true

		doc, err := config.LoadFile(filepath.Join(s.configDir, entry.Name()))
		if err != nil {
			s.log.WithError(err).Warn("skipping unreadable pipeline document", "id", id)
			continue
		}
		summaries = append(summaries, pipelineSummary{ID: id, Name: doc.Metadata.Name, Description: doc.Metadata.Description})
	}

	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleStartPipeline(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.cp.StartPipeline(id); err != nil {
		status := statusForError(err, eegpipe.ErrCodeStageNotFound, eegpipe.ErrCodePipelineConflict)
		writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStopPipeline(w http.ResponseWriter, r *http.Request) {
	if err := s.cp.StopPipeline(); err != nil {
		status := statusForError(err, eegpipe.ErrCodePipelineNotRunning, eegpipe.ErrCodeUnknown)
		writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUpdatePipeline(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Config == nil {
		writeError(w, http.StatusBadRequest, &eegpipe.Error{Op: "api.handleUpdatePipeline", Code: eegpipe.ErrCodeBadConfig})
		return
	}
	if err := config.Validate(body.Config); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := config.Save(s.configDir, id, body.Config); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var cmd control.ControlCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, &eegpipe.Error{Op: "api.handleControl", Code: eegpipe.ErrCodeBadConfig, Inner: err})
		return
	}
	if err := s.cp.Dispatch(cmd); err != nil {
		status := statusForError(err, eegpipe.ErrCodePipelineNotRunning, eegpipe.ErrCodeUnknown)
		writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	doc, running := s.cp.GetState()
	if !running {
		writeError(w, http.StatusNotFound, &eegpipe.Error{Op: "api.handleGetState", Code: eegpipe.ErrCodePipelineNotRunning})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleEvents streams the control plane's event bus as Server-Sent
// Events, replaying the current PipelineStarted and cached SourceReady
// before switching to live events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, &eegpipe.Error{Op: "api.handleEvents", Code: eegpipe.ErrCodeUnknown})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub, unsubscribe := s.cp.Events().Subscribe()
	defer unsubscribe()

	started, sourceReady := s.cp.Events().Replay()
	if started != nil {
		writeSSE(w, *started)
	}
	if sourceReady != nil {
		writeSSE(w, *sourceReady)
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev control.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	w.Write([]byte("data: "))
	w.Write(data)
	w.Write([]byte("\n\n"))
}
