package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybridge/daybridge/agent"
	"github.com/daybridge/daybridge/fetch"
	"github.com/daybridge/daybridge/internal/profile"
	"github.com/daybridge/daybridge/store"
)

func TestMapAgentError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			"illegal transition conflicts",
			&agent.ErrIllegalTransition{ActionID: "a", From: agent.ActionStatusRejected, To: agent.ActionStatusApproved},
			http.StatusConflict,
		},
		{
			"missing record",
			store.ErrNotFound,
			http.StatusNotFound,
		},
		{
			"provider unreachable",
			&fetch.ErrNotConnected{ResourceKey: "calendar", Err: errors.New("dial tcp: refused")},
			http.StatusServiceUnavailable,
		},
		{
			"anything else is internal",
			errors.New("boom"),
			http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var httpErr *echo.HTTPError
			require.ErrorAs(t, mapAgentError(tt.err), &httpErr)
			assert.Equal(t, tt.wantStatus, httpErr.Code)
		})
	}
}

func TestChatRequestValidation(t *testing.T) {
	server := NewServer(&profile.Profile{Addr: "127.0.0.1", Port: 0}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"text": ""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	server.echoServer.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`not json`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	server.echoServer.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	server := NewServer(&profile.Profile{Addr: "127.0.0.1", Port: 0}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	server.echoServer.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
