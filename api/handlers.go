package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rony4d/go-opera-forksim/inter"
	"github.com/rony4d/go-opera-forksim/rules"
	"github.com/rony4d/go-opera-forksim/sim"
)

const simKey = "simulation"

// ErrBlockCount is returned for a mining request above the configured bound.
var ErrBlockCount = errors.New("invalid block count")

// Error codes of ErrorResponse.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeNotFound        = "NOT_FOUND"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
	CodeInternal        = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an error.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Timestamp string `json:"timestamp"`
}

func abortWithError(c *gin.Context, status int, code string, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   err.Error(),
		RequestID: GetRequestID(c),
		Timestamp: inter.Now().String(),
	}})
}

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	ID    string    `json:"id"`
	State sim.State `json:"state"`
}

type commandRequest struct {
	Miner string `json:"miner"`
	Count int    `json:"count"`
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) createSession(c *gin.Context) {
	id, sm, err := s.sessions.Create()
	if errors.Is(err, ErrTooManySessions) {
		abortWithError(c, http.StatusServiceUnavailable, CodeUnavailable, err)
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, CodeInternal, err)
		return
	}
	if s.metrics != nil {
		s.metrics.sessions.Set(float64(s.sessions.Len()))
	}
	s.log.WithField("session", id).Info("Session created")
	c.JSON(http.StatusCreated, SessionResponse{ID: id, State: sm.Snapshot()})
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := s.sessions.Delete(id); err != nil {
		abortWithError(c, http.StatusNotFound, CodeNotFound, err)
		return
	}
	if s.metrics != nil {
		s.metrics.sessions.Set(float64(s.sessions.Len()))
	}
	s.log.WithField("session", id).Info("Session deleted")
	c.Status(http.StatusNoContent)
}

func (s *Server) loadSession(c *gin.Context) {
	sm, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusNotFound, CodeNotFound, err)
		return
	}
	c.Set(simKey, sm)
	c.Next()
}

func simulation(c *gin.Context) *sim.Simulation {
	return c.MustGet(simKey).(*sim.Simulation)
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, simulation(c).Snapshot())
}

// command adapts a simulation command to a handler. The body is optional.
// Failed commands are still answered with 200: the outcome carries the result.
func (s *Server) command(run func(*sim.Simulation, commandRequest) sim.Outcome) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req commandRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			abortWithError(c, http.StatusBadRequest, CodeInvalidArgument, err)
			return
		}
		if req.Count < 0 || req.Count > s.cfg.MaxBlocks {
			abortWithError(c, http.StatusBadRequest, CodeInvalidArgument,
				fmt.Errorf("%w: count %d outside [0, %d]", ErrBlockCount, req.Count, s.cfg.MaxBlocks))
			return
		}
		c.JSON(http.StatusOK, run(simulation(c), req))
	}
}

func mineHonest(sm *sim.Simulation, req commandRequest) sim.Outcome {
	if req.Count > 1 {
		return sm.MineHonestBlocks(req.Count)
	}
	return sm.MineHonestBlock(req.Miner)
}

func mineAttack(sm *sim.Simulation, req commandRequest) sim.Outcome {
	if req.Count > 1 {
		return sm.MineAttackBlocks(req.Count)
	}
	return sm.MineAttackBlock()
}

func (s *Server) broadcast(c *gin.Context) {
	sm := simulation(c)
	mode := sm.Mode()
	out := sm.Broadcast()
	if s.metrics != nil && out.Verdict != nil {
		s.metrics.ObserveVerdict(mode, *out.Verdict)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) defenseMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeInvalidArgument, err)
		return
	}
	mode, err := rules.ParseDefenseMode(req.Mode)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, CodeInvalidArgument, err)
		return
	}
	out, err := simulation(c).SetDefenseMode(mode)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, CodeInvalidArgument, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
