package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/ssr3bridge/internal/domain/protocol"
)

const maxCommandBody = 4 << 10

// CommandsDependencies defines the write operations used by CommandsHandler.
type CommandsDependencies interface {
	Send(ctx context.Context, cmd protocol.Command) bool
	Reset(ctx context.Context) uint64
}

// CommandsHandler forwards commands to the producer.
type CommandsHandler struct {
	deps CommandsDependencies
}

// NewCommandsHandler creates a new commands handler.
func NewCommandsHandler(deps CommandsDependencies) *CommandsHandler {
	return &CommandsHandler{deps: deps}
}

type commandResponse struct {
	Status string `json:"status"`
	Cmd    string `json:"cmd"`
}

type resetResponse struct {
	Revision uint64 `json:"revision"`
}

// HandlePostCommand handles POST /commands requests. The body is one wire
// command, e.g. {"cmd":"write","target":"ZENY","value":0}.
func (h *CommandsHandler) HandlePostCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	cmd, err := protocol.DecodeCommand(body)
	if err != nil {
		code := "bad_request"
		if errors.Is(err, protocol.ErrUnknownCommand) {
			code = "unknown_command"
		}
		writeError(w, http.StatusBadRequest, code, err)
		return
	}
	if !h.deps.Send(r.Context(), cmd) {
		writeError(w, http.StatusServiceUnavailable, "not_connected", ErrNotConnected)
		return
	}
	writeJSON(w, http.StatusAccepted, commandResponse{Status: "sent", Cmd: cmd.Name()})
}

// HandleReset handles POST /reset requests.
func (h *CommandsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Revision: h.deps.Reset(r.Context())})
}
