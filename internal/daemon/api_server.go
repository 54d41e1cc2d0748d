package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"camwatch/internal/config"
	"camwatch/internal/logging"
	"camwatch/internal/services"
)

type apiServer struct {
	bind    string
	token   string
	logger  *slog.Logger
	daemon  *Daemon
	refresh time.Duration

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	// quit ends hijacked live connections, which Shutdown does not track.
	quit     chan struct{}
	quitOnce sync.Once
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:    bind,
		token:   strings.TrimSpace(cfg.Paths.APIToken),
		logger:  logging.NewComponentLogger(logger, "api-server"),
		daemon:  d,
		refresh: cfg.Display.Refresh(),
		quit:    make(chan struct{}),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	s.handle(mux, "GET /api/status", s.handleStatus)
	s.handle(mux, "GET /api/cameras/{name}", s.handleCamera)
	s.handle(mux, "GET /api/cameras/{name}/frame.jpg", s.handleFrame)
	s.handle(mux, "GET /api/cameras/{name}/live", s.handleLive)
	s.handle(mux, "POST /api/cameras/{name}/view", s.handleView)
	s.handle(mux, "POST /api/cameras/{name}/{action}", s.handleAction)
	s.handle(mux, "GET /api/captures", s.handleCaptures)
	s.handle(mux, "GET /api/events", s.handleEvents)
	mux.Handle("GET /metrics", s.daemon.metrics.Handler())
	return mux
}

// handle registers an authenticated, instrumented route.
func (s *apiServer) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, s.requireToken(s.instrument(pattern, h)))
}

func (s *apiServer) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		r = r.WithContext(services.WithRequestID(r.Context(), id))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.daemon.metrics.ObserveRequest(r.Method, route, rec.status, time.Since(start))
	}
}

// statusRecorder captures the response code for metrics. Unwrap keeps
// http.ResponseController and the websocket hijack working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.quitOnce.Do(func() { close(s.quit) })
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleCamera(w http.ResponseWriter, r *http.Request) {
	st, err := s.daemon.CameraStatus(r.PathValue("name"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *apiServer) handleFrame(w http.ResponseWriter, r *http.Request) {
	vw, vh := viewport(r)
	data, err := s.daemon.Frame(r.PathValue("name"), vw, vh)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *apiServer) handleView(w http.ResponseWriter, r *http.Request) {
	var change ViewChange
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&change); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	state, err := s.daemon.UpdateView(r.PathValue("name"), change)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *apiServer) handleAction(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ctx := r.Context()
	var (
		payload any
		err     error
	)
	switch r.PathValue("action") {
	case "start":
		err = s.daemon.StartCamera(ctx, name)
	case "stop":
		err = s.daemon.StopCamera(ctx, name)
	case "restart":
		err = s.daemon.RestartCamera(ctx, name, r.URL.Query().Get("reason"))
	case "toggle":
		var running bool
		running, err = s.daemon.ToggleCamera(ctx, name)
		payload = map[string]bool{"running": running}
	case "capture":
		var ok bool
		ok, err = s.daemon.Capture(name, r.URL.Query().Get("label"))
		if err == nil && !ok {
			err = services.Wrap(services.ErrNothingToSave, name, "capture", "no frame captured yet", nil)
		}
	case "save":
		payload, err = s.daemon.Save(ctx, name)
	default:
		s.writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if payload == nil {
		st, _ := s.daemon.CameraStatus(name)
		payload = st
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleCaptures(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	items, err := s.daemon.Captures(r.Context(), strings.TrimSpace(query.Get("camera")), limit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"captures": items})
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	items, err := s.daemon.Events(r.Context(), strings.TrimSpace(query.Get("camera")), limit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": items})
}

func viewport(r *http.Request) (int, int) {
	query := r.URL.Query()
	vw, _ := strconv.Atoi(query.Get("w"))
	vh, _ := strconv.Atoi(query.Get("h"))
	return max(vw, 0), max(vh, 0)
}

// writeErr maps the error taxonomy to HTTP status codes.
func (s *apiServer) writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, services.ErrNothingToSave):
		status = http.StatusConflict
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error(), "kind": services.ErrorKind(err)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
