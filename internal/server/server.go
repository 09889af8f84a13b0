package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atikulmunna/lognorm/internal/aggregator"
	"github.com/atikulmunna/lognorm/internal/hub"
	"github.com/atikulmunna/lognorm/internal/logger"
	"github.com/atikulmunna/lognorm/internal/model"
	"github.com/atikulmunna/lognorm/internal/parser"
	"github.com/atikulmunna/lognorm/internal/reader"
)

const maxBodyBytes = 10 << 20

// Server exposes the normalizer over HTTP and WebSocket.
type Server struct {
	engine     *gin.Engine
	parser     parser.Parser
	aggregator *aggregator.Aggregator
	feed       *hub.Hub
	gatherer   prometheus.Gatherer
	http       *http.Server
}

// New creates the HTTP server. feed receives every entry the server
// normalizes and backs /ws/stream; gatherer backs /metrics. Both may be nil.
func New(p parser.Parser, agg *aggregator.Aggregator, feed *hub.Hub, gatherer prometheus.Gatherer, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	// Disable automatic redirects that cause 301 issues.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine:     engine,
		parser:     p,
		aggregator: agg,
		feed:       feed,
		gatherer:   gatherer,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		stats := s.aggregator.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"uptime":       stats.Uptime,
			"total_events": stats.TotalEvents,
			"eps":          stats.EPS,
		})
	})

	s.engine.GET("/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.aggregator.Snapshot())
	})

	s.engine.POST("/api/parse", s.handleParse)
	s.engine.GET("/ws", s.handleWebSocket)
	if s.feed != nil {
		s.engine.GET("/ws/stream", s.handleStream)
	}

	if s.gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	// pprof profiling endpoints.
	s.engine.GET("/debug/pprof/", gin.WrapF(pprof.Index))
	s.engine.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
	s.engine.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	s.engine.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
	s.engine.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	s.engine.GET("/debug/pprof/allocs", gin.WrapH(pprof.Handler("allocs")))
	s.engine.GET("/debug/pprof/heap", gin.WrapH(pprof.Handler("heap")))
	s.engine.GET("/debug/pprof/goroutine", gin.WrapH(pprof.Handler("goroutine")))
}

type parseRequest struct {
	Source string   `json:"source"`
	Lines  []string `json:"lines" binding:"required"`
}

type parseResponse struct {
	Entries []model.LogEntry `json:"entries"`
}

// handleParse normalizes either a JSON list of logical lines or a plain-text
// body. Plain text is reassembled the same way the CLI reads files.
func (s *Server) handleParse(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var (
		source string
		lines  []string
	)

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req parseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		source, lines = req.Source, req.Lines
	} else {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		source = c.Query("source")
		lines = assemble(string(body))
	}

	resp := parseResponse{Entries: make([]model.LogEntry, 0, len(lines))}
	for _, line := range lines {
		entry := s.record(c.Request.Context(), model.RawLine{Text: line, Source: source})
		resp.Entries = append(resp.Entries, entry)
	}
	c.JSON(http.StatusOK, resp)
}

// record normalizes one logical line, counts it and forwards it to the
// live feed.
func (s *Server) record(ctx context.Context, line model.RawLine) model.LogEntry {
	entry := s.parser.Normalize(line)
	s.aggregator.Record(entry)
	if s.feed != nil {
		s.feed.Publish(ctx, entry)
	}
	return entry
}

// assemble splits a text body into logical records.
func assemble(body string) []string {
	asm := reader.NewAssembler(true)
	var out []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if rec, ok := asm.Push(line); ok {
			out = append(out, rec)
		}
	}
	if rec, ok := asm.Flush(); ok {
		out = append(out, rec)
	}
	return out
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Start runs the server. Blocks until the server is stopped.
func (s *Server) Start() error {
	logger.Info("server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
