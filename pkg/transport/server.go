// Package transport carries round messages between nodes: an HTTP surface
// and sender for one-node-per-process deployments, and an in-process bus
// for simulations.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meta-node-blockchain/benor/pkg/benor"
	"github.com/meta-node-blockchain/benor/pkg/codec"
	"github.com/meta-node-blockchain/benor/pkg/journal"
	"github.com/meta-node-blockchain/benor/pkg/logger"
)

const (
	RouteStatus   = "/status"
	RouteGetState = "/getState"
	RouteMessage  = "/message"
	RouteStart    = "/start"
	RouteStop     = "/stop"
	RouteMetrics  = "/metrics"
	RouteHistory  = "/history"

	shutdownTimeout = 5 * time.Second
)

var ErrAlreadyListening = errors.New("server is already listening")

// HistorySource supplies the /history route.
type HistorySource interface {
	History() ([]journal.Record, error)
}

type ServerOptions struct {
	// Address is what Start listens on.
	Address    string
	RateLimits map[string]int
	History    HistorySource
}

// Server exposes one node over HTTP.
type Server struct {
	node    *benor.Node
	address string
	router  *gin.Engine
	history HistorySource
	limiter *RateLimiter

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server

	onListening []func(addr string)
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func NewServer(node *benor.Node, opts ServerOptions) *Server {
	s := &Server{
		node:    node,
		address: opts.Address,
		router:  gin.New(),
		history: opts.History,
		limiter: NewRateLimiter(opts.RateLimits),
	}
	s.router.Use(gin.Recovery(), requestLogger(node.ID()), s.limiter.Middleware())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET(RouteStatus, s.handleStatus)
	s.router.GET(RouteGetState, s.handleGetState)
	s.router.POST(RouteMessage, s.handleMessage)
	s.router.GET(RouteStart, s.handleStart)
	s.router.GET(RouteStop, s.handleStop)
	s.router.GET(RouteMetrics, gin.WrapH(s.node.Metrics().Handler()))
	s.router.GET(RouteHistory, s.handleHistory)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// AddOnListeningCallBack registers a function called once the listener is bound.
func (s *Server) AddOnListeningCallBack(callBack func(addr string)) {
	if callBack == nil {
		return
	}
	s.onListening = append(s.onListening, callBack)
}

func (s *Server) handleStatus(c *gin.Context) {
	status := s.node.Status()
	if status == benor.StatusFaulty {
		c.String(http.StatusInternalServerError, string(status))
		return
	}
	c.String(http.StatusOK, string(status))
}

func (s *Server) handleGetState(c *gin.Context) {
	c.JSON(http.StatusOK, s.node.ReportState())
}

func (s *Server) handleMessage(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := codec.ForContentType(c.ContentType()).Unmarshal(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.node.Ingest(msg)
	c.String(http.StatusOK, "success")
}

func (s *Server) handleStart(c *gin.Context) {
	if err := s.node.Start(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.String(http.StatusOK, "success")
}

func (s *Server) handleStop(c *gin.Context) {
	s.node.Stop()
	c.String(http.StatusOK, "killed")
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	records, err := s.history.History()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []journal.Record{}
	}
	c.JSON(http.StatusOK, records)
}

// Listen binds address and serves in the background. It returns once the
// listener accepts connections.
func (s *Server) Listen(address string) error {
	addr, err := s.bind(address)
	if err != nil {
		return err
	}
	logger.Debug("Node %d listening on %s", s.node.ID(), addr)
	for _, callBack := range s.onListening {
		callBack(addr)
	}
	return nil
}

func (s *Server) bind(address string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return "", fmt.Errorf("%w on %s", ErrAlreadyListening, s.listener.Addr())
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", address, err)
	}
	s.listener = listener
	s.http = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}

	go func(srv *http.Server, l net.Listener) {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Node %d: HTTP server on %s stopped: %v", s.node.ID(), l.Addr(), err)
		}
	}(s.http, listener)
	return listener.Addr().String(), nil
}

// Addr is the bound address, empty before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// ends, then closes whatever connections remain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.http = nil
	s.listener = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		if ctx.Err() == nil {
			return err
		}
		logger.Warn("Node %d: graceful shutdown timed out, closing remaining connections", s.node.ID())
		return srv.Close()
	}
	return nil
}

// Start implements core.Module by listening on the configured address.
func (s *Server) Start() error {
	return s.Listen(s.address)
}

// Stop implements core.Module.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

func requestLogger(nodeID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Trace("Node %d: %s %s -> %d (%s)", nodeID, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
