// Package server exposes the query pipeline over HTTP.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"archie/internal/config"
	archerrors "archie/internal/errors"
	"archie/internal/envelope"
	"archie/internal/logging"
	"archie/internal/service"
)

// Server hosts the query API.
type Server struct {
	cfg      config.ServerConfig
	engine   *gin.Engine
	pipeline *service.Pipeline
	breaker  *archerrors.CircuitBreaker
	logger   logging.Logger
}

// New creates the HTTP server. breaker may be nil; it only feeds /healthz.
func New(cfg config.ServerConfig, pipeline *service.Pipeline, breaker *archerrors.CircuitBreaker) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		pipeline: pipeline,
		breaker:  breaker,
		logger:   logging.NewComponentLogger("server"),
	}

	engine.POST("/v1/query", s.handleQuery)
	engine.POST("/v1/query/stream", s.handleQueryStream)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return s
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	s.logger.Info("listening on %s", s.cfg.Addr)
	return s.engine.Run(s.cfg.Addr)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

type queryRequest struct {
	Query          string `json:"query" binding:"required"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	// The request context carries the client's cancellation; a disconnect
	// stops in-flight backend work.
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	resp := s.pipeline.Handle(ctx, service.Request{
		RequestID:      newRequestID(),
		ConversationID: req.ConversationID,
		Query:          req.Query,
	})
	c.JSON(http.StatusOK, resp.Envelope)
}

// handleQueryStream runs the pipeline in the background and streams heartbeat
// lines until the result is ready. The result channel is polled non-blockingly
// so a slow backend never stalls heartbeat delivery.
func (s *Server) handleQueryStream(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	resultCh := make(chan service.Response, 1)
	go func() {
		resultCh <- s.pipeline.Handle(ctx, service.Request{
			RequestID:      newRequestID(),
			ConversationID: req.ConversationID,
			Query:          req.Query,
		})
	}()

	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case resp := <-resultCh:
			raw, err := resp.Envelope.Marshal()
			if err != nil {
				raw = []byte(`{"answer":"","schema_version":1}`)
			}
			fmt.Fprintln(c.Writer, envelope.WrapStream(raw))
			c.Writer.Flush()
			return
		case <-heartbeat.C:
			fmt.Fprintln(c.Writer, `{"heartbeat":true}`)
			c.Writer.Flush()
		case <-ctx.Done():
			fmt.Fprintln(c.Writer, `{"heartbeat":false,"cancelled":true}`)
			c.Writer.Flush()
			return
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{"status": "ok"}
	if s.breaker != nil {
		health["embedding_breaker"] = s.breaker.State().String()
	}
	c.JSON(http.StatusOK, health)
}

func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
