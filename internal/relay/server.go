// Package relay is the rendezvous service peers meet through. A peer claims
// an identity over a websocket and the relay routes frames between
// identities. The relay is content-agnostic: it never inspects the session
// protocol riding on data frames.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/kapisz0n951/learnengpol/internal/errors"
	"github.com/kapisz0n951/learnengpol/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}
}

type Server struct {
	c        Config
	instance string

	registry Registry
	redis    redis.UniversalClient

	metrics  *telemetry.RelayMetrics
	upgrader websocket.Upgrader
	http     *http.Server

	mu    sync.Mutex
	peers map[string]*peer
	links map[string]map[string]struct{}
}

func Init(c Config) (*Server, error) {
	s := &Server{
		c:        c,
		instance: uuid.NewString(),
		peers:    make(map[string]*peer),
		links:    make(map[string]map[string]struct{}),
		upgrader: websocket.Upgrader{
			// Peers are CLI processes and classroom devices, not
			// browsers on our origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	if err := s.initRegistry(); err != nil {
		return nil, fmt.Errorf("relay: init registry: %w", err)
	}

	s.metrics = telemetry.NewRelayMetrics(prometheus.DefaultRegisterer)
	s.initHTTP()
	return s, nil
}

func (s *Server) initRegistry() error {
	if len(s.c.Redis.Addrs) == 0 {
		s.registry = NewMemoryRegistry()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(rc); err != nil {
		return err
	}
	if err := rc.Ping(ctx).Err(); err != nil {
		return err
	}

	s.redis = rc
	s.registry = NewRedisRegistry(rc, s.c.Redis.Prefix)
	return nil
}

func (s *Server) initHTTP() {
	e := gin.New()
	e.Use(gin.Recovery())
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")

	e.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	e.GET("/ws", s.handlePeer)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// Handler exposes the HTTP surface for tests that serve it themselves.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Start() {
	ctx := context.Background()

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("relay: listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "relay: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "relay: shutdown HTTP failed", "error", err)
	}

	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		p.ws.Close()
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.ErrorContext(ctx, "relay: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "relay: shutdown completed")
}

// peer is one connected websocket. Writes go through the send channel so a
// single goroutine owns the socket writer.
type peer struct {
	identity string
	ws       *websocket.Conn
	send     chan Frame

	mu     sync.Mutex
	closed bool
}

func (p *peer) enqueue(f Frame) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	select {
	case p.send <- f:
		return true
	default:
		return false
	}
}

func (p *peer) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.send)
	}
}

func (s *Server) handlePeer(c *gin.Context) {
	ctx := c.Request.Context()

	identity := c.Query("identity")
	if identity == "" {
		e := apperrors.New(apperrors.CodeInvalidArgument, apperrors.WithMessagef("missing identity"))
		c.JSON(e.HTTPStatusCode(), e)
		return
	}

	ok, err := s.registry.Claim(ctx, identity, s.instance)
	if err != nil {
		e := apperrors.Convert(err)
		c.JSON(e.HTTPStatusCode(), e)
		return
	}
	if !ok {
		e := apperrors.New(apperrors.CodeAlreadyExists, apperrors.WithMessagef("identity %q already claimed", identity))
		c.JSON(e.HTTPStatusCode(), e)
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		_ = s.registry.Release(ctx, identity)
		return
	}

	p := &peer{
		identity: identity,
		ws:       ws,
		send:     make(chan Frame, 64),
	}

	s.mu.Lock()
	s.peers[identity] = p
	s.mu.Unlock()
	s.metrics.ConnectedPeers.Inc()

	slog.InfoContext(ctx, "relay: peer connected", "identity", identity)

	go func() {
		for f := range p.send {
			if err := ws.WriteJSON(f); err != nil {
				return
			}
		}
	}()

	for {
		var f Frame
		if err := ws.ReadJSON(&f); err != nil {
			break
		}
		s.route(p, f)
	}

	s.teardown(p)
	slog.InfoContext(ctx, "relay: peer disconnected", "identity", identity)
}

func (s *Server) route(from *peer, f Frame) {
	switch f.Kind {
	case FrameOpen:
		target, ok := s.peer(f.To)
		if !ok {
			from.enqueue(Frame{Kind: FrameError, To: f.To, Error: "unknown identity"})
			s.metrics.FramesDropped.WithLabelValues("unknown_identity").Inc()
			return
		}

		s.link(from.identity, f.To)
		s.deliver(target, Frame{Kind: FrameOpen, From: from.identity})
		s.deliver(from, Frame{Kind: FrameOpened, From: f.To})

	case FrameData:
		target, ok := s.peer(f.To)
		if !ok {
			// The flow died under the sender; per protocol there is
			// nothing to report for data.
			s.metrics.FramesDropped.WithLabelValues("unknown_identity").Inc()
			return
		}
		s.deliver(target, Frame{Kind: FrameData, From: from.identity, Data: f.Data})

	case FrameClose:
		s.unlink(from.identity, f.To)
		if target, ok := s.peer(f.To); ok {
			s.deliver(target, Frame{Kind: FrameClose, From: from.identity})
		}

	default:
		s.metrics.FramesDropped.WithLabelValues("unknown_kind").Inc()
	}
}

func (s *Server) deliver(to *peer, f Frame) {
	if to.enqueue(f) {
		s.metrics.FramesRouted.WithLabelValues(string(f.Kind)).Inc()
	} else {
		s.metrics.FramesDropped.WithLabelValues("slow_peer").Inc()
	}
}

func (s *Server) peer(identity string) (*peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.peers[identity]
	return p, ok
}

func (s *Server) link(a, b string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.links[a] == nil {
		s.links[a] = make(map[string]struct{})
	}
	if s.links[b] == nil {
		s.links[b] = make(map[string]struct{})
	}
	s.links[a][b] = struct{}{}
	s.links[b][a] = struct{}{}
}

func (s *Server) unlink(a, b string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.links[a], b)
	delete(s.links[b], a)
}

// teardown removes a peer and notifies everything it had flows with.
func (s *Server) teardown(p *peer) {
	s.mu.Lock()
	delete(s.peers, p.identity)
	linked := s.links[p.identity]
	delete(s.links, p.identity)

	notify := make([]*peer, 0, len(linked))
	for id := range linked {
		delete(s.links[id], p.identity)
		if lp, ok := s.peers[id]; ok {
			notify = append(notify, lp)
		}
	}
	s.mu.Unlock()

	for _, lp := range notify {
		s.deliver(lp, Frame{Kind: FrameClose, From: p.identity})
	}

	p.shutdown()
	p.ws.Close()
	s.metrics.ConnectedPeers.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.registry.Release(ctx, p.identity); err != nil {
		slog.ErrorContext(ctx, "relay: release identity failed", "identity", p.identity, "error", err)
	}
}
