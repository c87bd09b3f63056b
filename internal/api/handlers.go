package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/trailobot-core/internal/commands"
	"github.com/nerrad567/trailobot-core/internal/infrastructure/config"
	"github.com/nerrad567/trailobot-core/internal/session"
	"github.com/nerrad567/trailobot-core/internal/telemetry"
)

// healthCheckTimeout bounds dependency checks in /health.
const healthCheckTimeout = 2 * time.Second

// handleHealth reports service health. A failing database makes the
// service unhealthy; a disconnected bridge does not.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	checks := map[string]string{"bridge": s.session.State().String()}

	if s.db != nil {
		checks["database"] = "ok"
		if err := s.db.HealthCheck(ctx); err != nil {
			checks["database"] = err.Error()
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}
	if s.influx != nil {
		checks["influxdb"] = "ok"
		if err := s.influx.HealthCheck(ctx); err != nil {
			checks["influxdb"] = err.Error()
			if status == "ok" {
				status = "degraded"
			}
		}
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}

// statusResponse is the bridge session summary.
type statusResponse struct {
	State            string `json:"state"`
	Connected        bool   `json:"connected"`
	Connection       uint64 `json:"connection"`
	Endpoint         string `json:"endpoint"`
	Host             string `json:"host"`
	ReconnectDelayMS int64  `json:"reconnect_delay_ms"`
}

func (s *Server) sessionStatus() statusResponse {
	c := s.session.Current()
	state := c.State()
	return statusResponse{
		State:            state.String(),
		Connected:        state == session.Connected,
		Connection:       c.ID(),
		Endpoint:         s.session.Endpoint(),
		Host:             s.session.Host(),
		ReconnectDelayMS: s.session.ReconnectDelay().Milliseconds(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionStatus())
}

// endpointRequest is the body of PUT /bridge/endpoint.
type endpointRequest struct {
	URL string `json:"url"`
}

// endpointSchemes lists the endpoint schemes each transport can dial.
var endpointSchemes = map[string][]string{
	config.TransportROSBridge: {"ws", "wss"},
	config.TransportMQTT:      {"tcp", "ssl", "mqtt", "mqtts"},
}

// handleSetEndpoint points the session at a new bridge endpoint.
func (s *Server) handleSetEndpoint(w http.ResponseWriter, r *http.Request) {
	var req endpointRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	u, err := url.Parse(req.URL)
	schemes := endpointSchemes[s.transport]
	if err != nil || u.Hostname() == "" || !slices.Contains(schemes, u.Scheme) {
		writeValidationError(w, fmt.Sprintf("url must be an absolute %s endpoint for the %s transport",
			strings.Join(schemes, ", "), s.transport))
		return
	}

	s.logger.Info("bridge endpoint changed via API", "endpoint", req.URL, "by", subjectFrom(r.Context()))
	s.session.Reconfigure(req.URL)
	writeJSON(w, http.StatusAccepted, s.sessionStatus())
}

func (s *Server) handleTelemetry(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.telemetry.Snapshot())
}

// replay seeds a new WebSocket subscriber with the latest value of channel.
func (s *Server) replay(channel string) (any, bool) {
	snap := s.telemetry.Snapshot()
	switch channel {
	case telemetry.ChannelWeight:
		return map[string]any{"weight": snap.Weight}, true
	case telemetry.ChannelPose:
		return snap.Pose, true
	case telemetry.ChannelNavStatus:
		return map[string]any{"status": snap.NavStatus}, true
	case telemetry.ChannelChatter:
		if len(snap.Chatter) == 0 {
			return nil, false
		}
		return snap.Chatter[len(snap.Chatter)-1], true
	case ChannelSessionState:
		c := s.session.Current()
		return stateEvent{
			Connection: c.ID(),
			To:         c.State().String(),
			Endpoint:   s.session.Endpoint(),
			At:         time.Now().UTC().Format(time.RFC3339),
		}, true
	default:
		return nil, false
	}
}

func (s *Server) handleGrid(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, commands.Grid())
}

func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, s.commands.Greet(r.Context()))
}

// goalRequest accepts either {"position":"A12"} or {"row":"A","column":12}.
type goalRequest struct {
	Position string `json:"position"`
	Row      string `json:"row"`
	Column   int    `json:"column"`
}

func (req goalRequest) parse() (commands.Position, error) {
	if req.Position != "" {
		return commands.ParsePosition(req.Position)
	}
	p := commands.Position{Row: req.Row, Column: req.Column}
	return p, p.Validate()
}

func (s *Server) handleSendGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	pos, err := req.parse()
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	res, err := s.commands.SendGoal(r.Context(), pos, subjectFrom(r.Context()))
	if errors.Is(err, commands.ErrInvalidPosition) {
		writeValidationError(w, err.Error())
		return
	}
	if err != nil {
		writeInternalError(w, "sending goal failed")
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := commands.Filter{Kind: q.Get("kind")}
	switch filter.Kind {
	case "", commands.KindGoal, commands.KindCancel:
	default:
		writeBadRequest(w, "kind must be goal or cancel")
		return
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	page, err := s.commands.History(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing goal events failed", "error", err)
		writeInternalError(w, "listing goal events failed")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	ev, err := s.commands.Event(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, commands.ErrEventNotFound) {
		writeNotFound(w, "goal event not found")
		return
	}
	if err != nil {
		s.logger.Error("loading goal event failed", "error", err)
		writeInternalError(w, "loading goal event failed")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, s.commands.Cancel(r.Context(), subjectFrom(r.Context())))
}

func (s *Server) handleGetTeleop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.teleop.Status())
}

// teleopRequest is the body of PUT /teleop.
type teleopRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleSetTeleop(w http.ResponseWriter, r *http.Request) {
	var req teleopRequest
	if err := decodeJSON(r, &req); err != nil || req.Enabled == nil {
		writeBadRequest(w, `body must be {"enabled": true|false}`)
		return
	}
	if *req.Enabled {
		s.teleop.Enable()
	} else {
		s.teleop.Disable()
	}
	writeJSON(w, http.StatusOK, s.teleop.Status())
}

// velocityRequest is the body of PUT /teleop/velocity.
type velocityRequest struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

func (s *Server) handleSetVelocity(w http.ResponseWriter, r *http.Request) {
	var req velocityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	s.teleop.SetVelocity(req.Linear, req.Angular)
	writeJSON(w, http.StatusOK, s.teleop.Status())
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
