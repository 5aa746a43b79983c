package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	repository "github.com/okian/ssr3bridge/internal/adapters/repository"
	"github.com/okian/ssr3bridge/internal/domain/derive"
)

// State is the JSON shape of a snapshot.
type State struct {
	Revision        uint64                  `json:"revision"`
	Connected       bool                    `json:"connected"`
	Active          bool                    `json:"active"`
	Subsystem       string                  `json:"subsystem,omitempty"`
	ProducerVersion string                  `json:"producerVersion,omitempty"`
	LastError       string                  `json:"lastError,omitempty"`
	LastChanged     []string                `json:"lastChanged"`
	LastChangedAt   *time.Time              `json:"lastChangedAt,omitempty"`
	LastReceivedAt  *time.Time              `json:"lastReceivedAt,omitempty"`
	Latch           string                  `json:"latch"`
	Values          []repository.NamedValue `json:"values"`
}

// NewState renders snap.
func NewState(snap *repository.Snapshot) State {
	st := State{
		Revision:        snap.Revision,
		Connected:       snap.Connected,
		Active:          snap.Active,
		Subsystem:       snap.Subsystem,
		ProducerVersion: snap.ProducerVersion,
		LastError:       snap.LastError,
		LastChanged:     append([]string{}, snap.LastChanged...),
		Latch:           snap.Latch.Phase().String(),
		Values:          snap.Values(),
	}
	if st.Values == nil {
		st.Values = []repository.NamedValue{}
	}
	if !snap.LastChangedAt.IsZero() {
		t := snap.LastChangedAt
		st.LastChangedAt = &t
	}
	if !snap.LastReceivedAt.IsZero() {
		t := snap.LastReceivedAt
		st.LastReceivedAt = &t
	}
	return st
}

type valueResponse struct {
	repository.NamedValue
	Number  *uint64 `json:"number,omitempty"`
	Changed bool    `json:"changed"`
}

// StateDependencies defines the read operations used by StateHandler.
type StateDependencies interface {
	Snapshot() *repository.Snapshot
	Derived(ctx context.Context) derive.View
}

// StateHandler serves snapshot reads.
type StateHandler struct {
	deps StateDependencies
}

// NewStateHandler creates a new state handler.
func NewStateHandler(deps StateDependencies) *StateHandler {
	return &StateHandler{deps: deps}
}

// HandleState handles GET /state requests.
func (h *StateHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, NewState(h.deps.Snapshot()))
}

// HandleValue handles GET /values/{key} requests.
func (h *StateHandler) HandleValue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/values/")
	if key == "" || strings.Contains(key, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	snap := h.deps.Snapshot()
	v, ok := snap.Value(key)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: %s", repository.ErrNotFound, key))
		return
	}
	resp := valueResponse{NamedValue: v, Changed: snap.Changed(key)}
	if n, ok := v.Number(); ok {
		resp.Number = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDerived handles GET /derived requests.
func (h *StateHandler) HandleDerived(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Derived(r.Context()))
}
