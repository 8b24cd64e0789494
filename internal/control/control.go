// Package control implements AAEQ's local HTTP control API (§7): a
// loopback-bound Echo REST surface for listing/selecting output sinks,
// starting/stopping playback, fetching metrics, and querying node
// capabilities.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/aaeq-audio/aaeq/internal/audio"
	"github.com/aaeq-audio/aaeq/internal/dsp"
	"github.com/aaeq-audio/aaeq/internal/logging"
	"github.com/aaeq-audio/aaeq/internal/sink"
)

// ErrorResponse is the JSON body returned on any control API failure,
// carrying a correlation ID so a long-running operation's async result
// (e.g. discovery) can be cross-referenced in logs.
type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

// SelectRequest is the body of POST /v1/outputs/select.
type SelectRequest struct {
	Name   string             `json:"name"`
	Config audio.OutputConfig `json:"config"`
}

// RouteRequest is the body of POST /v1/route, reserved for future
// multi-output routing (currently a single active sink).
type RouteRequest struct {
	OutputName string `json:"output_name"`
}

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status string `json:"status"`
	NodeID string `json:"node_id"`
}

// CapabilitiesResponse is the body of GET /v1/capabilities.
type CapabilitiesResponse struct {
	NodeID       string   `json:"node_id"`
	Sinks        []string `json:"sinks"`
	AnpSupported bool     `json:"anp_supported"`
}

// Controller wires the control API's routes to a sink.Manager.
type Controller struct {
	Manager  *sink.Manager
	NodeID   string
	Pipeline *dsp.Pipeline // optional; nil until a daemon wires the DSP chain in
	logger   *slog.Logger
}

// NewController creates a Controller bound to mgr. nodeID identifies this
// node in health/capabilities responses.
func NewController(mgr *sink.Manager, nodeID string) *Controller {
	return &Controller{Manager: mgr, NodeID: nodeID, logger: logging.ForService("control-api")}
}

// Register attaches all control routes under group "/v1" on e.
func (c *Controller) Register(e *echo.Echo) {
	g := e.Group("/v1")
	g.GET("/health", c.Health)
	g.GET("/outputs", c.ListOutputs)
	g.POST("/outputs/select", c.SelectOutput)
	g.POST("/outputs/start", c.StartOutput)
	g.POST("/outputs/stop", c.StopOutput)
	g.GET("/outputs/metrics", c.OutputMetrics)
	g.POST("/route", c.Route)
	g.GET("/capabilities", c.Capabilities)
	g.GET("/pipeline", c.PipelineStatus)
}

func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, HealthResponse{Status: "ok", NodeID: c.NodeID})
}

func (c *Controller) ListOutputs(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, sinkNames(c.Manager.List()))
}

func (c *Controller) SelectOutput(ctx echo.Context) error {
	var req SelectRequest
	if err := ctx.Bind(&req); err != nil {
		return c.handleError(ctx, err, "invalid select request body", http.StatusBadRequest)
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 10*time.Second)
	defer cancel()

	if err := c.Manager.Select(reqCtx, req.Name, req.Config); err != nil {
		return c.handleError(ctx, err, "failed to select output", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) StartOutput(ctx echo.Context) error {
	if _, ok := c.Manager.Active(); !ok {
		return c.handleError(ctx, sink.ErrNoActiveSink, "no active output to start", http.StatusConflict)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) StopOutput(ctx echo.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 10*time.Second)
	defer cancel()

	if err := c.Manager.Stop(reqCtx); err != nil {
		return c.handleError(ctx, err, "failed to stop output", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) OutputMetrics(ctx echo.Context) error {
	active, ok := c.Manager.Active()
	if !ok {
		return c.handleError(ctx, sink.ErrNoActiveSink, "no active output", http.StatusConflict)
	}
	return ctx.JSON(http.StatusOK, active.Stats())
}

func (c *Controller) Route(ctx echo.Context) error {
	var req RouteRequest
	if err := ctx.Bind(&req); err != nil {
		return c.handleError(ctx, err, "invalid route request body", http.StatusBadRequest)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"routed_to": req.OutputName})
}

func (c *Controller) Capabilities(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, CapabilitiesResponse{
		NodeID:       c.NodeID,
		Sinks:        sinkNames(c.Manager.List()),
		AnpSupported: true,
	})
}

// PipelineStatus returns the live DSP stage chain's per-stage snapshot, or
// an empty array when no pipeline has been wired in.
func (c *Controller) PipelineStatus(ctx echo.Context) error {
	if c.Pipeline == nil {
		return ctx.JSON(http.StatusOK, []dsp.StageStatus{})
	}
	return ctx.JSON(http.StatusOK, c.Pipeline.Status())
}

func sinkNames(sinks []sink.Sink) []string {
	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	return names
}

// handleError logs err with a correlation ID and returns an
// ErrorResponse, mirroring the teacher's HandleError pattern of
// attaching a traceable correlation ID to every API failure.
func (c *Controller) handleError(ctx echo.Context, err error, message string, code int) error {
	correlationID := uuid.New().String()
	if c.logger != nil {
		c.logger.Warn("control api error", "correlation_id", correlationID, "message", message, "error", err, "code", code)
	}
	return ctx.JSON(code, ErrorResponse{
		Error:         fmt.Sprintf("%s: %v", message, err),
		CorrelationID: correlationID,
	})
}
