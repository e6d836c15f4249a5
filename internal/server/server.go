// Package server exposes a running simulation to polling front ends.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/citygrid/trafficsim/internal/geo"
	"github.com/citygrid/trafficsim/internal/sim"
	"github.com/citygrid/trafficsim/pkg/core"
	"github.com/gin-gonic/gin"
)

// Dependencies holds all dependencies for the HTTP server
type Dependencies struct {
	Sim    *sim.Simulation
	Logger *slog.Logger
}

// Server serves the simulation state over HTTP. Only /positions steps the
// simulation; every other route is read-only.
type Server struct {
	deps    Dependencies
	engine  *gin.Engine
	http    *http.Server
	started time.Time
}

// CellResponse is the tag of a single cell.
type CellResponse struct {
	X   int      `json:"x"`
	Y   int      `json:"y"`
	Tag core.Tag `json:"tag"`
}

// New builds the router for s.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		deps:    deps,
		engine:  gin.New(),
		started: time.Now(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	s.engine.GET("/healthcheck", s.handleHealthcheck)
	s.engine.GET("/positions", s.handlePositions)
	s.engine.POST("/positions", s.handlePositions)
	s.engine.GET("/vehicles", s.handleVehicles)
	s.engine.GET("/cells", s.handleCells)
	s.engine.GET("/cells/:coord", s.handleCell)
	s.engine.GET("/semaphores", s.handleSemaphores)
	s.engine.GET("/status", s.handleStatus)
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.deps.Logger.Info("HTTP server listening", "address", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.deps.Logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealthcheck(c *gin.Context) {
	c.Status(http.StatusOK)
}

// handlePositions plays one tick while the run is live, then reports every
// vehicle coordinate in vehicle id order.
func (s *Server) handlePositions(c *gin.Context) {
	if s.deps.Sim.Running() {
		s.deps.Sim.Step()
	}
	c.JSON(http.StatusOK, s.deps.Sim.Positions())
}

func (s *Server) handleVehicles(c *gin.Context) {
	snap := s.deps.Sim.Snapshot()
	c.JSON(http.StatusOK, snap.Vehicles)
}

func (s *Server) handleCells(c *gin.Context) {
	snap := s.deps.Sim.Snapshot()
	c.JSON(http.StatusOK, snap.Cells)
}

func (s *Server) handleCell(c *gin.Context) {
	coord, err := geo.ParseCoord(c.Param("coord"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	size := s.deps.Sim.Info().GridSize
	if !coord.InBounds(size) {
		c.JSON(http.StatusNotFound, gin.H{"error": "cell outside the grid"})
		return
	}
	c.JSON(http.StatusOK, CellResponse{X: coord.X, Y: coord.Y, Tag: s.deps.Sim.CellTag(coord)})
}

func (s *Server) handleSemaphores(c *gin.Context) {
	snap := s.deps.Sim.Snapshot()
	c.JSON(http.StatusOK, snap.Semaphores)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Sim.Summary(time.Since(s.started)))
}
