package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/logging"
	"github.com/muurk/mdnshelper/internal/service"
	"github.com/muurk/mdnshelper/internal/shortcut"
)

// Handler returns the HTTP handler serving the API and the event stream.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/services", s.handleServices)
	mux.HandleFunc("POST /api/discovery/start", s.handleStart)
	mux.HandleFunc("POST /api/discovery/stop", s.handleStop)
	mux.HandleFunc("POST /api/resolve", s.handleResolve)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	if s.store != nil {
		mux.HandleFunc("GET /api/bookmarks", s.handleBookmarks)
		mux.HandleFunc("POST /api/bookmarks/toggle", s.handleToggleBookmark)
		mux.HandleFunc("GET /api/preferences", s.handlePreferences)
		mux.HandleFunc("PUT /api/preferences", s.handleUpdatePreferences)
		mux.HandleFunc("GET /api/shortcuts", s.handleShortcuts)
	}
	if s.launcher != nil {
		mux.HandleFunc("POST /api/shortcuts/launch", s.handleLaunch)
	}

	return logRequests(mux)
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the hijacker for WebSocket upgrades
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is required by the WebSocket upgrader
func (r *statusRecorder) Hijack() (c net.Conn, rw *bufio.ReadWriter, err error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newStateView(s.orch))
}

func (s *Server) handleServices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewServiceViews(s.orch.Services()))
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	s.orch.StartDiscovery(s.baseCtx)
	writeJSON(w, http.StatusAccepted, newStateView(s.orch))
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.orch.StopDiscovery()
	writeJSON(w, http.StatusAccepted, newStateView(s.orch))
}

// resolveRequest names a service to resolve. An empty name resolves every
// instance of the type.
type resolveRequest struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Domain string `json:"domain,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.identityFor(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.orch.ResolveService(s.baseCtx, id)
	writeJSON(w, http.StatusAccepted, map[string]string{"identity": id.String()})
}

// identityFor builds the identity a discovery with the preferred backend
// would have produced.
func (s *Server) identityFor(req resolveRequest) (service.Identity, error) {
	if strings.TrimSpace(req.Type) == "" {
		return service.Identity{}, errors.New("type is required")
	}
	discover := service.BackendBonjour
	if s.store != nil {
		discover = s.store.DiscoverBackend()
	}
	return service.IdentityFor(discover, req.Type, req.Name, req.Domain), nil
}

func (s *Server) handleBookmarks(w http.ResponseWriter, _ *http.Request) {
	missing := make(map[service.Key]bool)
	for _, b := range s.store.UnavailableBookmarks(s.orch.Services()) {
		missing[b.Key()] = true
	}
	marks := s.store.Bookmarks()
	out := make([]BookmarkView, len(marks))
	for i, b := range marks {
		out[i] = BookmarkView{Type: b.Type, Name: b.Name, Available: !missing[b.Key()]}
	}
	writeJSON(w, http.StatusOK, out)
}

type bookmarkRequest struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func (s *Server) handleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	var req bookmarkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Type == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "type and name are required")
		return
	}
	var on bool
	if err := s.store.Update(func(reg *config.Registry) error {
		on = reg.ToggleBookmark(req.Type, req.Name)
		return nil
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"bookmarked": on})
}

func (s *Server) handlePreferences(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newPreferencesView(s.store.Preferences()))
}

type preferencesRequest struct {
	DiscoverBackend service.Backend `json:"discover_backend,omitempty"`
	ResolveBackend  service.Backend `json:"resolve_backend,omitempty"`
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := s.store.Update(func(reg *config.Registry) error {
		discover := reg.Preferences.DiscoverBackend
		if req.DiscoverBackend != "" {
			discover = req.DiscoverBackend
		}
		// validate before touching the registry so a rejected pair changes nothing
		if req.ResolveBackend != "" && !service.ValidPair(discover, req.ResolveBackend) {
			return fmt.Errorf("%s cannot resolve services discovered by %s", req.ResolveBackend, discover)
		}
		reg.SetDiscoverBackend(discover)
		if req.ResolveBackend != "" {
			return reg.SetResolveBackend(req.ResolveBackend)
		}
		return nil
	})
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newPreferencesView(s.store.Preferences()))
}

func (s *Server) handleShortcuts(w http.ResponseWriter, _ *http.Request) {
	list := s.store.Shortcuts()
	out := make([]ShortcutView, len(list))
	for i, sc := range list {
		out[i] = newShortcutView(sc)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	res, err := s.launcher.Launch(r.Context(), id)
	switch {
	case errors.Is(err, shortcut.ErrInvalidShortcut):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, shortcut.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":      res.URL,
		"service":  newServiceView(res.Service),
		"shortcut": newShortcutView(res.Shortcut),
	})
}
