// Package server exposes an App over HTTP: a JSON API for the catalog,
// canvas and merges, and a WebSocket stream of every bus event.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roach88/infinicraft/internal/app"
	"github.com/roach88/infinicraft/internal/element"
	"github.com/roach88/infinicraft/internal/engine"
	"github.com/roach88/infinicraft/internal/events"
	"github.com/roach88/infinicraft/internal/opstate"
	"github.com/roach88/infinicraft/internal/placement"
)

// Server serves one App.
type Server struct {
	app    *app.App
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a Server and registers its routes.
func New(a *app.App, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{app: a, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)

	s.mux.HandleFunc("GET /api/elements", s.handleListElements)
	s.mux.HandleFunc("POST /api/elements/remove", s.handleRemoveElements)
	s.mux.HandleFunc("POST /api/elements/reset", s.handleResetElements)

	s.mux.HandleFunc("GET /api/recipes", s.handleListRecipes)

	s.mux.HandleFunc("GET /api/canvas", s.handleListCanvas)
	s.mux.HandleFunc("POST /api/canvas", s.handlePlace)
	s.mux.HandleFunc("PATCH /api/canvas/{id}", s.handleMove)
	s.mux.HandleFunc("DELETE /api/canvas/{id}", s.handleRemoveInstance)
	s.mux.HandleFunc("POST /api/canvas/clear", s.handleClearCanvas)

	s.mux.HandleFunc("POST /api/merge", s.handleMerge)

	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"state": s.app.Gate.State().String()})
}

func (s *Server) handleListElements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Catalog.GetAll())
}

// POST /api/elements/remove
// Body: { "ids": ["5", "6"] }
type removeElementsRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleRemoveElements(w http.ResponseWriter, r *http.Request) {
	var req removeElementsRequest
	if !decode(w, r, &req) {
		return
	}
	remaining, err := s.app.Engine.RemoveElements(r.Context(), req.IDs)
	s.writeRemoval(w, remaining, err)
}

func (s *Server) handleResetElements(w http.ResponseWriter, r *http.Request) {
	remaining, err := s.app.Engine.ResetCatalog(r.Context())
	s.writeRemoval(w, remaining, err)
}

func (s *Server) writeRemoval(w http.ResponseWriter, remaining []element.Element, err error) {
	if errors.Is(err, opstate.ErrBusy) {
		writeError(w, http.StatusConflict, string(engine.ErrCodeBusy), err.Error())
		return
	}
	if err != nil {
		s.logger.Error("catalog removal failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, remaining)
}

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	entries, err := s.app.RecipeEntries(r.Context())
	if err != nil {
		s.logger.Error("list recipes failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListCanvas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Ledger.List())
}

// POST /api/canvas
// Body: { "element_id": "3", "x": 10, "y": 20 }
// Without x and y the instance is placed at random.
type placeRequest struct {
	ElementID string   `json:"element_id"`
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if !decode(w, r, &req) {
		return
	}
	e, ok := s.app.Catalog.Get(req.ElementID)
	if !ok {
		writeError(w, http.StatusNotFound, string(engine.ErrCodeNotFound), "element not in catalog: "+req.ElementID)
		return
	}

	var id string
	if req.X != nil && req.Y != nil {
		id = s.app.Ledger.Place(e, *req.X, *req.Y)
	} else {
		id = s.app.Ledger.PlaceRandom(e, s.app.Config.Canvas.Width, s.app.Config.Canvas.Height)
	}
	inst, _ := s.app.Ledger.Get(id)
	writeJSON(w, http.StatusCreated, inst)
}

// PATCH /api/canvas/{id}
// Body: { "x": 10, "y": 20 }
type moveRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	if err := s.app.Ledger.Move(id, req.X, req.Y); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	inst, _ := s.app.Ledger.Get(id)
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleRemoveInstance(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ledger.Remove(r.PathValue("id")); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearCanvas(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ledger.Clear(); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, placement.ErrNotFound):
		writeError(w, http.StatusNotFound, string(engine.ErrCodeNotFound), err.Error())
	case errors.Is(err, opstate.ErrBusy):
		writeError(w, http.StatusConflict, string(engine.ErrCodeBusy), err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

// POST /api/merge
// Body: { "source_id": "...", "target_id": "..." }
type mergeRequest struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.app.Engine.MergeByID(r.Context(), req.SourceID, req.TargetID)
	if err != nil {
		writeError(w, mergeStatus(err), string(engine.CodeOf(err)), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// mergeStatus maps a merge error code to an HTTP status.
func mergeStatus(err error) int {
	switch engine.CodeOf(err) {
	case engine.ErrCodeBusy:
		return http.StatusConflict
	case engine.ErrCodeNotFound:
		return http.StatusNotFound
	case engine.ErrCodeInvalidPair:
		return http.StatusBadRequest
	case engine.ErrCodeGenerationExhausted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Code: code, Error: msg})
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json: "+err.Error())
		return false
	}
	return true
}

// Inbound WebSocket messages. Outbound traffic is the event stream.
const (
	msgDrop = "drop"
	msgMark = "mark"
)

type clientMessage struct {
	Type       string `json:"type"`
	SourceID   string `json:"source_id,omitempty"`
	TargetID   string `json:"target_id,omitempty"`
	InstanceID string `json:"instance_id,omitempty"`
	Marked     bool   `json:"marked,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.app.Broadcaster.Upgrade(w, r)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer s.app.Broadcaster.Unregister(conn)

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.logger.Debug("websocket client gone", "error", err)
			return
		}
		s.handleClientMessage(msg)
	}
}

func (s *Server) handleClientMessage(msg clientMessage) {
	switch msg.Type {
	case msgDrop:
		src, srcOK := s.app.Ledger.Get(msg.SourceID)
		tgt, tgtOK := s.app.Ledger.Get(msg.TargetID)
		if !srcOK || !tgtOK {
			s.logger.Info("drop ignored: instance not on canvas", "source", msg.SourceID, "target", msg.TargetID)
			return
		}
		s.app.Bus.Publish(events.ElementDroppedOn(src, tgt))
	case msgMark:
		if err := s.app.Ledger.MarkForMerge(msg.InstanceID, msg.Marked); err != nil {
			s.logger.Info("mark ignored", "instance", msg.InstanceID, "error", err)
		}
	default:
		s.logger.Info("unknown websocket message", "type", msg.Type)
	}
}
