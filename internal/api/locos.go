package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trainlink-org/shared-lib/internal/infrastructure/metrics"
	"github.com/trainlink-org/shared-lib/internal/loco"
	"github.com/trainlink-org/shared-lib/internal/throttle"
)

// updateLocoRequest is the PATCH body. Omitted fields keep their value.
type updateLocoRequest struct {
	Name    *string `json:"name"`
	Address *int    `json:"address"`
}

// locoID parses the {id} path segment. Digits select an address, anything
// else a name; "name:" forces a name.
func locoID(r *http.Request) loco.Identifier {
	raw := chi.URLParam(r, "id")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return loco.ParseIdentifier(raw)
}

// handleListLocos returns every loco, ordered by address.
func (s *Server) handleListLocos(w http.ResponseWriter, _ *http.Request) {
	records := s.registry.Records()
	writeJSON(w, http.StatusOK, map[string]any{"locos": records, "count": len(records)})
}

// handleDescribeLocos returns the human-readable registry dump.
func (s *Server) handleDescribeLocos(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	w.Write([]byte(s.registry.String()))
}

// handleCreateLoco adds a loco from a record body. A bare {name, address}
// is accepted; out-of-range values follow the loco's range rules.
func (s *Server) handleCreateLoco(w http.ResponseWriter, r *http.Request) {
	var rec loco.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	l, err := loco.FromRecord(rec)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	s.registry.Add(l)
	s.persist(r.Context())

	writeJSON(w, http.StatusCreated, l.Record())
}

// handleGetLoco returns one loco.
func (s *Server) handleGetLoco(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Get(locoID(r))
	if err != nil {
		s.writeLocoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l.Record())
}

// handleUpdateLoco renames and/or re-addresses a loco. Function flags are
// reset on the replacement.
func (s *Server) handleUpdateLoco(w http.ResponseWriter, r *http.Request) {
	var req updateLocoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == nil && req.Address == nil {
		writeBadRequest(w, "name or address is required")
		return
	}

	repl, ok := s.registry.Update(locoID(r), req.Name, req.Address)
	if !ok {
		writeNotFound(w, "loco not found")
		return
	}
	s.persist(r.Context())

	writeJSON(w, http.StatusOK, repl.Record())
}

// handleDeleteLoco removes a loco.
func (s *Server) handleDeleteLoco(w http.ResponseWriter, r *http.Request) {
	if !s.registry.Delete(locoID(r)) {
		writeNotFound(w, "loco not found")
		return
	}
	s.persist(r.Context())

	w.WriteHeader(http.StatusNoContent)
}

// handleGetThrottle returns the throttle view of a loco. Unknown addresses
// get a disabled throttle rather than a 404.
func (s *Server) handleGetThrottle(w http.ResponseWriter, r *http.Request) {
	id := locoID(r)
	t, ok := s.throttles.Throttle(id)
	if !ok && id.IsName() {
		writeNotFound(w, "loco not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleSetSpeed applies {"speed": n}.
func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Speed *int `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Speed == nil {
		writeBadRequest(w, "speed is required")
		return
	}
	s.applyCommand(w, r, throttle.Command{Speed: body.Speed})
}

// handleSetDirection applies {"direction": "forward|reverse|stopped"}.
func (s *Server) handleSetDirection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Direction *string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Direction == nil {
		writeBadRequest(w, "direction is required")
		return
	}
	s.applyCommand(w, r, throttle.Command{Direction: body.Direction})
}

// handleSetFunction applies {"state": bool} to function n.
func (s *Server) handleSetFunction(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		writeBadRequest(w, "function index must be an integer")
		return
	}
	var body struct {
		State *bool `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.State == nil {
		writeBadRequest(w, "state is required")
		return
	}
	s.applyCommand(w, r, throttle.Command{
		Function: &throttle.FunctionCommand{Index: n, State: *body.State},
	})
}

func (s *Server) applyCommand(w http.ResponseWriter, r *http.Request, cmd throttle.Command) {
	t, err := s.throttles.Apply(metrics.TransportHTTP, locoID(r), cmd)
	if err != nil {
		s.writeLocoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// writeLocoError maps loco and throttle errors to HTTP responses.
func (s *Server) writeLocoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, loco.ErrNotFound):
		writeNotFound(w, "loco not found")
	case errors.Is(err, loco.ErrInvalidRecord), errors.Is(err, throttle.ErrInvalidCommand):
		writeBadRequest(w, err.Error())
	default:
		s.logger.Error("loco request failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}
