// Package server exposes the agent over HTTP: a chat endpoint, the
// action approval endpoints, and read-only views of the schedule.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daybridge/daybridge/agent"
	"github.com/daybridge/daybridge/fetch"
	"github.com/daybridge/daybridge/internal/profile"
	"github.com/daybridge/daybridge/store"
)

type Server struct {
	echoServer *echo.Echo
	profile    *profile.Profile
	agent      *agent.Agent
}

func NewServer(profile *profile.Profile, scheduleAgent *agent.Agent) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request", "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	s := &Server{
		echoServer: e,
		profile:    profile,
		agent:      scheduleAgent,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echoServer

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	api.POST("/chat", s.handleChat)
	api.GET("/conversations/:uid/messages", s.handleListMessages)
	api.DELETE("/conversations/:uid/memory", s.handleResetMemory)
	api.POST("/actions/:id/approve", s.handleApprove)
	api.POST("/actions/:id/reject", s.handleReject)
	api.GET("/recommendations", s.handleRecommendations)
	api.GET("/events", s.handleEvents)
	api.GET("/items", s.handleItems)
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	slog.Info("server started", "address", address, "version", s.profile.Version)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down server", "error", err)
		}
	}()

	if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type chatRequest struct {
	ConversationUID string `json:"conversationUid"`
	Text            string `json:"text"`
}

type replyResponse struct {
	Message         *store.ConversationMessage `json:"message"`
	Action          *agent.ScheduleAction      `json:"action,omitempty"`
	Recommendations any                        `json:"recommendations,omitempty"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	if req.ConversationUID == "" {
		req.ConversationUID = "default"
	}

	reply, err := s.agent.HandleMessage(c.Request().Context(), req.ConversationUID, req.Text)
	if err != nil {
		return mapAgentError(err)
	}
	chatMessagesTotal.Inc()
	if reply.Action != nil {
		proposalsTotal.WithLabelValues(string(reply.Action.Type)).Inc()
	}
	return c.JSON(http.StatusOK, toReplyResponse(reply))
}

func (s *Server) handleListMessages(c echo.Context) error {
	messages, err := s.agent.Messages(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return mapAgentError(err)
	}
	return c.JSON(http.StatusOK, messages)
}

type actionRequest struct {
	ConversationUID string `json:"conversationUid"`
}

func (s *Server) handleApprove(c echo.Context) error {
	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.ConversationUID == "" {
		req.ConversationUID = "default"
	}

	reply, err := s.agent.Approve(c.Request().Context(), req.ConversationUID, c.Param("id"))
	if err != nil {
		actionsTotal.WithLabelValues("error").Inc()
		return mapAgentError(err)
	}
	actionsTotal.WithLabelValues(string(reply.Action.Status)).Inc()
	return c.JSON(http.StatusOK, toReplyResponse(reply))
}

func (s *Server) handleReject(c echo.Context) error {
	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.ConversationUID == "" {
		req.ConversationUID = "default"
	}

	reply, err := s.agent.Reject(c.Request().Context(), req.ConversationUID, c.Param("id"))
	if err != nil {
		actionsTotal.WithLabelValues("error").Inc()
		return mapAgentError(err)
	}
	actionsTotal.WithLabelValues(string(reply.Action.Status)).Inc()
	return c.JSON(http.StatusOK, toReplyResponse(reply))
}

func (s *Server) handleRecommendations(c echo.Context) error {
	recommendations, err := s.agent.Recommendations(c.Request().Context())
	if err != nil {
		return mapAgentError(err)
	}
	return c.JSON(http.StatusOK, recommendations)
}

func (s *Server) handleEvents(c echo.Context) error {
	events, err := s.agent.Events(c.Request().Context())
	if err != nil {
		return mapAgentError(err)
	}
	return c.JSON(http.StatusOK, events)
}

func (s *Server) handleResetMemory(c echo.Context) error {
	if err := s.agent.ResetMemory(c.Request().Context(), c.Param("uid")); err != nil {
		return mapAgentError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleItems(c echo.Context) error {
	var from *time.Time
	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be YYYY-MM")
		}
		from = &parsed
	}
	items, err := s.agent.CourseItems(c.Request().Context(), from)
	if err != nil {
		return mapAgentError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func toReplyResponse(reply *agent.Reply) replyResponse {
	resp := replyResponse{Message: reply.Message, Action: reply.Action}
	if len(reply.Recommendations) > 0 {
		resp.Recommendations = reply.Recommendations
	}
	return resp
}

// mapAgentError translates domain errors into HTTP statuses.
func mapAgentError(err error) error {
	var illegal *agent.ErrIllegalTransition
	if errors.As(err, &illegal) {
		return echo.NewHTTPError(http.StatusConflict, illegal.Error())
	}
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	var notConnected *fetch.ErrNotConnected
	if errors.As(err, &notConnected) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, notConnected.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
