package api

import (
	"encoding/json"
	"net/http"

	"github.com/hearthview/hearthview-core/internal/mcp"
)

// Command actions accepted by POST /commands.
const (
	ActionTurnOn        = "turn_on"
	ActionTurnOff       = "turn_off"
	ActionBrightness    = "brightness"
	ActionTemperature   = "temperature"
	ActionFanSpeed      = "fan_speed"
	ActionVolume        = "volume"
	ActionMediaPause    = "media_pause"
	ActionMediaPlay     = "media_play"
	ActionMediaNext     = "media_next"
	ActionMediaPrevious = "media_previous"
)

// commandRequest is the request body for POST /commands.
//
// Value is interpreted per action: percent for brightness/fan_speed/volume,
// degrees for temperature, ignored otherwise.
type commandRequest struct {
	Action string  `json:"action"`
	Name   string  `json:"name"`
	Value  float64 `json:"value,omitempty"`
}

// handleCommand dispatches a device command to the controller.
//
// Commands are live calls; unlike reads they fail fast with 503 when the
// controller connection is down rather than acting on stale state.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	if !s.controller.IsConnected() {
		writeUnavailable(w, "controller not connected")
		return
	}

	ctx := r.Context()
	var outcome mcp.CommandOutcome

	switch req.Action {
	case ActionTurnOn:
		outcome = s.controller.TurnOn(ctx, req.Name)
	case ActionTurnOff:
		outcome = s.controller.TurnOff(ctx, req.Name)
	case ActionBrightness:
		outcome = s.controller.SetBrightness(ctx, req.Name, int(req.Value))
	case ActionTemperature:
		outcome = s.controller.SetTemperature(ctx, req.Name, req.Value)
	case ActionFanSpeed:
		outcome = s.controller.SetFanSpeed(ctx, req.Name, int(req.Value))
	case ActionVolume:
		outcome = s.controller.SetVolume(ctx, req.Name, int(req.Value))
	case ActionMediaPause:
		outcome = s.controller.MediaPause(ctx, req.Name)
	case ActionMediaPlay:
		outcome = s.controller.MediaPlay(ctx, req.Name)
	case ActionMediaNext:
		outcome = s.controller.MediaNext(ctx, req.Name)
	case ActionMediaPrevious:
		outcome = s.controller.MediaPrevious(ctx, req.Name)
	default:
		writeBadRequest(w, "unknown action: "+req.Action)
		return
	}

	s.logger.Info("device command",
		"action", req.Action,
		"name", req.Name,
		"success", outcome.Success,
		"request_id", ctx.Value(ctxKeyRequestID),
	)

	writeJSON(w, http.StatusOK, outcome)
}
