package rpcproxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"minder/internal/config"
	"minder/internal/logging"
	"minder/internal/settings"
)

// Config carries the proxy deployment parameters.
type Config struct {
	Listen             string
	Upstream           string
	TorProxy           string
	OnlyOnion          bool
	PeerTimeout        time.Duration
	MaxPeerAge         time.Duration
	MaxPeerConcurrency int
}

// FromSettings derives the proxy configuration. ok is false when the node
// keeps full chain data and no proxy should run.
func FromSettings(cfg *config.Config, doc *settings.Document, hostIP string) (Config, bool) {
	if !doc.Pruned() {
		return Config{}, false
	}
	return Config{
		Listen:             cfg.Proxy.Listen,
		Upstream:           cfg.Proxy.Upstream,
		TorProxy:           fmt.Sprintf("%s:%d", hostIP, cfg.Bitcoind.TorSocksPort),
		OnlyOnion:          doc.OnlyOnion(),
		PeerTimeout:        time.Duration(cfg.Proxy.PeerTimeout) * time.Second,
		MaxPeerAge:         time.Duration(cfg.Proxy.MaxPeerAge) * time.Second,
		MaxPeerConcurrency: cfg.Proxy.MaxPeerConcurrency,
	}, true
}

// Service forwards RPC requests to the upstream daemon endpoint.
type Service struct {
	cfg      Config
	logger   *slog.Logger
	client   *fasthttp.HostClient
	basePath string
	slots    chan struct{}
}

// NewService builds a forwarding service for cfg.
func NewService(cfg Config, logger *slog.Logger) (*Service, error) {
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil || upstream.Host == "" {
		return nil, fmt.Errorf("parse proxy upstream %q: %w", cfg.Upstream, err)
	}
	concurrency := cfg.MaxPeerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "rpcproxy"),
		client: &fasthttp.HostClient{
			Addr:  upstream.Host,
			IsTLS: upstream.Scheme == "https",
		},
		basePath: upstream.Path,
		slots:    make(chan struct{}, concurrency),
	}, nil
}

// Handler serves one proxied request.
func (s *Service) Handler(ctx *fasthttp.RequestCtx) {
	s.slots <- struct{}{}
	defer func() { <-s.slots }()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	ctx.Request.CopyTo(req)
	req.SetRequestURI(s.upstreamURI(string(ctx.Path())))
	req.Header.Set(fasthttp.HeaderHost, s.client.Addr)

	err := s.client.DoTimeout(req, resp, s.cfg.PeerTimeout)
	if err != nil {
		s.logger.Error("forward rpc request", logging.Error(err))
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
		ctx.SetBodyString("upstream rpc unavailable")
		return
	}
	resp.CopyTo(&ctx.Response)
}

func (s *Service) upstreamURI(path string) string {
	scheme := "http"
	if s.client.IsTLS {
		scheme = "https"
	}
	base := s.basePath
	if base == "" || base == "/" {
		base = ""
	}
	if path == "" {
		path = "/"
	}
	return scheme + "://" + s.client.Addr + base + path
}

// ListenAndServe runs the proxy until the context is cancelled. The
// supervisor starts it on its own goroutine and never waits on it; a serve
// failure is logged, not fatal.
func (s *Service) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the proxy on an existing listener until the context is
// cancelled.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	server := &fasthttp.Server{
		Handler:      s.Handler,
		ReadTimeout:  s.cfg.PeerTimeout,
		WriteTimeout: s.cfg.PeerTimeout,
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = server.Shutdown()
		case <-done:
		}
	}()
	defer close(done)

	s.logger.Info("rpc proxy listening",
		logging.String("listen", s.cfg.Listen),
		logging.String("upstream", s.cfg.Upstream),
		logging.Bool("only_onion", s.cfg.OnlyOnion))
	if err := server.Serve(ln); err != nil {
		return fmt.Errorf("serve rpc proxy: %w", err)
	}
	return nil
}
