package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nvandessel/foresight/internal/simulate"
	"github.com/nvandessel/foresight/internal/store"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// FuturesResponse wraps catalog listings.
type FuturesResponse struct {
	Futures []store.ScenarioRecord `json:"futures"`
	Status  string                 `json:"status"`
}

// FutureResponse wraps a single catalog entry.
type FutureResponse struct {
	Future *store.ScenarioRecord `json:"future"`
	Status string                `json:"status"`
}

// ToggleRequest is the body of PATCH /api/futures/:id.
type ToggleRequest struct {
	IsActive *bool `json:"is_active"`
}

func abortError(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, ErrorResponse{Error: msg, Status: "error"})
}

// statusFor maps service and store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, simulate.ErrEmptyArgument),
		errors.Is(err, simulate.ErrInvalidFutures),
		errors.Is(err, store.ErrInvalidScenario):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateName),
		errors.Is(err, store.ErrDefaultScenario):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "route", c.FullPath(), "error", err)
	}
	abortError(c, code, err.Error())
}

// bindOptional decodes a JSON body, treating an empty body as {}.
func bindOptional(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "online", Service: ServiceName, Version: s.version})
}

func (s *Server) handleField(c *gin.Context) {
	fc, err := s.svc.Field(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fc)
}

func (s *Server) handleSimulate(c *gin.Context) {
	var req simulate.Request
	if err := bindOptional(c, &req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := s.svc.Simulate(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleStep(c *gin.Context) {
	var req simulate.StepRequest
	if err := bindOptional(c, &req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := s.svc.Step(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleBattle(c *gin.Context) {
	var req simulate.BattleRequest
	if err := bindOptional(c, &req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := s.svc.Battle(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleListFutures(c *gin.Context) {
	if s.store == nil {
		abortError(c, http.StatusServiceUnavailable, "scenario catalog not configured")
		return
	}
	records, err := s.store.List(c.Request.Context(), store.ListOptions{ActiveOnly: c.Query("active") == "true"})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, FuturesResponse{Futures: records, Status: "ok"})
}

func (s *Server) handleCreateFuture(c *gin.Context) {
	if s.store == nil {
		abortError(c, http.StatusServiceUnavailable, "scenario catalog not configured")
		return
	}
	var in store.ScenarioInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	rec, err := s.store.Create(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, FutureResponse{Future: rec, Status: "ok"})
}

func (s *Server) handleToggleFuture(c *gin.Context) {
	if s.store == nil {
		abortError(c, http.StatusServiceUnavailable, "scenario catalog not configured")
		return
	}
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		abortError(c, http.StatusBadRequest, "is_active is required")
		return
	}
	rec, err := s.store.SetActive(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, FutureResponse{Future: rec, Status: "ok"})
}

func (s *Server) handleDeleteFuture(c *gin.Context) {
	if s.store == nil {
		abortError(c, http.StatusServiceUnavailable, "scenario catalog not configured")
		return
	}
	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
