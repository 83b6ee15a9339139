// Package httpadapter maps the HTTP surface onto the runtime: bearer
// authentication, verb dispatch, and the response envelope.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"mash/internal/app/action"
	"mash/internal/app/auth"
	"mash/internal/app/envelope"
	"mash/internal/app/ports"
	"mash/internal/app/tick"
	"mash/internal/domain/mud"
)

type Handler struct {
	AuthUC     auth.UseCase
	ActionUC   action.UseCase
	Envelope   envelope.Builder
	Tick       *tick.Engine
	WorldState ports.WorldStateRepository
	KPI        kpiSnapshotProvider
	StartedAt  time.Time
}

type kpiSnapshotProvider interface {
	SnapshotAny() any
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(corsMiddleware())
	s.GET("/health", h.health)
	s.POST("/auth/signup", h.signup)
	s.POST("/auth/login", h.login)
	s.POST("/poll", h.poll)
	s.POST("/wait", h.wait)
	s.POST("/action/:verb", h.action)
	s.GET("/ops/kpi", h.kpi)
}

func (h Handler) health(c context.Context, ctx *app.RequestContext) {
	state, err := h.WorldState.Get(c)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{
		"status":      "ok",
		"tick_number": state.TickNumber,
		"uptime":      time.Since(h.StartedAt).String(),
	})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h Handler) signup(c context.Context, ctx *app.RequestContext) {
	var body credentialsRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	resp, err := h.AuthUC.Signup(c, auth.SignupRequest{Username: body.Username, Password: body.Password})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusCreated, resp)
}

func (h Handler) login(c context.Context, ctx *app.RequestContext) {
	var body credentialsRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	resp, err := h.AuthUC.Login(c, body.Username, body.Password)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) poll(c context.Context, ctx *app.RequestContext) {
	agent, err := h.requireAgent(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	h.respondWithEnvelope(c, ctx, agent, map[string]any{})
}

func (h Handler) wait(c context.Context, ctx *app.RequestContext) {
	agent, err := h.requireAgent(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	h.Tick.Wait(c)
	h.respondWithEnvelope(c, ctx, agent, map[string]any{})
}

func (h Handler) action(c context.Context, ctx *app.RequestContext) {
	agent, err := h.requireAgent(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	verb := strings.TrimSpace(ctx.Param("verb"))
	var params map[string]any
	if err := decodeJSON(ctx, &params); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	result, err := h.ActionUC.Execute(c, action.Request{AgentID: agent.ID, Verb: verb, Params: params})
	if err != nil {
		writeError(ctx, err)
		return
	}
	h.respondWithEnvelope(c, ctx, agent, result)
}

func (h Handler) kpi(_ context.Context, ctx *app.RequestContext) {
	if h.KPI == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "kpi recorder not configured")
		return
	}
	ctx.JSON(consts.StatusOK, h.KPI.SnapshotAny())
}

func (h Handler) respondWithEnvelope(c context.Context, ctx *app.RequestContext, agent mud.Agent, result any) {
	resp, err := h.Envelope.Build(c, agent.ID, result)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) requireAgent(c context.Context, ctx *app.RequestContext) (mud.Agent, error) {
	header := strings.TrimSpace(string(ctx.GetHeader("Authorization")))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return mud.Agent{}, auth.ErrInvalidToken
	}
	return h.AuthUC.Resolve(c, strings.TrimSpace(token))
}

func decodeJSON(ctx *app.RequestContext, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func writeError(ctx *app.RequestContext, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		writeErrorBody(ctx, consts.StatusUnauthorized, "invalid_token", "missing or invalid bearer token")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeErrorBody(ctx, consts.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, auth.ErrUsernameTaken):
		writeErrorBody(ctx, consts.StatusConflict, "username_taken", err.Error())
	case errors.Is(err, auth.ErrInvalidRequest), errors.Is(err, action.ErrInvalidRequest):
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, action.ErrNoAP):
		writeErrorBody(ctx, consts.StatusTooManyRequests, "no_ap", "no AP remaining")
	case errors.Is(err, ports.ErrNotFound):
		writeErrorBody(ctx, consts.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ports.ErrConflict):
		writeErrorBody(ctx, consts.StatusConflict, "conflict", err.Error())
	default:
		slog.Error("request failed", "err", err)
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"code":  code,
		"error": message,
	})
}
