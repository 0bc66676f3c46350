package rpcproxy_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"minder/internal/config"
	"minder/internal/logging"
	"minder/internal/rpcproxy"
	"minder/internal/settings"
)

func parseSettings(t *testing.T, raw string) *settings.Document {
	t.Helper()
	doc, err := settings.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse settings: %v", err)
	}
	return doc
}

func TestFromSettingsOnlyWhenPruned(t *testing.T) {
	cfg := config.Default()

	if _, ok := rpcproxy.FromSettings(&cfg, parseSettings(t, "{}"), "10.0.0.2"); ok {
		t.Fatal("no proxy without a pruning mode")
	}

	manual := "advanced:\n  pruning:\n    mode: manual\n"
	if _, ok := rpcproxy.FromSettings(&cfg, parseSettings(t, manual), "10.0.0.2"); ok {
		t.Fatal("no proxy for manual pruning")
	}

	automatic := "advanced:\n  pruning:\n    mode: automatic\n  peers:\n    onlyonion: true\n"
	proxyCfg, ok := rpcproxy.FromSettings(&cfg, parseSettings(t, automatic), "10.0.0.2")
	if !ok {
		t.Fatal("automatic pruning must start the proxy")
	}
	if proxyCfg.Listen != "0.0.0.0:48332" {
		t.Fatalf("unexpected listen address: %q", proxyCfg.Listen)
	}
	if proxyCfg.Upstream != "http://127.0.0.1:18332/" {
		t.Fatalf("unexpected upstream: %q", proxyCfg.Upstream)
	}
	if proxyCfg.TorProxy != "10.0.0.2:9050" {
		t.Fatalf("unexpected tor proxy: %q", proxyCfg.TorProxy)
	}
	if !proxyCfg.OnlyOnion {
		t.Fatal("only-onion flag must come from settings")
	}
	if proxyCfg.PeerTimeout != 30*time.Second || proxyCfg.MaxPeerAge != 300*time.Second || proxyCfg.MaxPeerConcurrency != 1 {
		t.Fatalf("unexpected peer limits: %+v", proxyCfg)
	}
}

func TestServiceForwardsToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(append([]byte("echo:"), body...))
	}))
	t.Cleanup(upstream.Close)

	svc, err := rpcproxy.NewService(rpcproxy.Config{
		Listen:             "127.0.0.1:0",
		Upstream:           upstream.URL + "/",
		PeerTimeout:        5 * time.Second,
		MaxPeerConcurrency: 1,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	ln := fasthttputil.NewInmemoryListener()
	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- svc.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-serveErr
	})

	client := &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://proxy/")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetBodyString(`{"method":"getblockcount"}`)
	if err := client.Do(req, resp); err != nil {
		t.Fatalf("proxy request failed: %v", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
	if got := string(resp.Body()); got != `echo:{"method":"getblockcount"}` {
		t.Fatalf("unexpected body: %q", got)
	}
}

func TestServiceReportsUpstreamFailure(t *testing.T) {
	svc, err := rpcproxy.NewService(rpcproxy.Config{
		Listen:             "127.0.0.1:0",
		Upstream:           "http://127.0.0.1:1/",
		PeerTimeout:        500 * time.Millisecond,
		MaxPeerConcurrency: 1,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	ln := fasthttputil.NewInmemoryListener()
	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- svc.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-serveErr
	})

	client := &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://proxy/")
	req.Header.SetMethod(fasthttp.MethodPost)
	if err := client.Do(req, resp); err != nil {
		t.Fatalf("proxy request failed: %v", err)
	}
	if resp.StatusCode() != fasthttp.StatusBadGateway {
		t.Fatalf("expected bad gateway, got %d", resp.StatusCode())
	}
}
