package settings_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"minder/internal/settings"
)

const sampleDoc = `
rpc:
  username: satoshi
  password: hunter2
advanced:
  peers:
    onlyonion: true
  pruning:
    mode: automatic
    size: 550
`

func TestParseAndLookup(t *testing.T) {
	doc, err := settings.Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	user, ok := doc.String("rpc", "username")
	if !ok || user != "satoshi" {
		t.Fatalf("unexpected username: %q ok=%v", user, ok)
	}
	if _, ok := doc.String("rpc", "missing"); ok {
		t.Fatal("expected missing key to report !ok")
	}
	if _, ok := doc.String("advanced", "pruning", "size"); ok {
		t.Fatal("expected non-string value to report !ok")
	}
	if !doc.Bool("advanced", "peers", "onlyonion") {
		t.Fatal("expected onlyonion true")
	}
	if doc.Bool("advanced", "peers", "nope") {
		t.Fatal("expected absent bool to default false")
	}
}

func TestRPCCredentialsRequireBoth(t *testing.T) {
	doc, err := settings.Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	user, pass, ok := doc.RPCCredentials()
	if !ok || user != "satoshi" || pass != "hunter2" {
		t.Fatalf("unexpected credentials: %q %q ok=%v", user, pass, ok)
	}

	doc, err = settings.Parse([]byte("rpc:\n  username: satoshi\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if _, _, ok := doc.RPCCredentials(); ok {
		t.Fatal("expected credentials to be unavailable without a password")
	}
}

func TestPruningMode(t *testing.T) {
	doc, err := settings.Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if doc.PruningMode() != "automatic" {
		t.Fatalf("unexpected pruning mode: %q", doc.PruningMode())
	}
	if !doc.Pruned() {
		t.Fatal("expected Pruned true for automatic mode")
	}

	doc, err = settings.Parse([]byte("advanced:\n  pruning:\n    mode: disabled\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if doc.Pruned() {
		t.Fatal("expected Pruned false for disabled mode")
	}
}

func TestVarRendersScalars(t *testing.T) {
	doc, err := settings.Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	cases := []struct {
		name string
		want string
	}{
		{"rpc.username", "satoshi"},
		{"advanced.peers.onlyonion", "true"},
		{"advanced.pruning.size", "550"},
	}
	for _, tc := range cases {
		got, ok := doc.Var(tc.name)
		if !ok || got != tc.want {
			t.Fatalf("Var(%q) = %q ok=%v, want %q", tc.name, got, ok, tc.want)
		}
	}

	if _, ok := doc.Var("rpc"); ok {
		t.Fatal("expected mapping value to not render")
	}
	if _, ok := doc.Var("nope.nope"); ok {
		t.Fatal("expected unknown variable to report !ok")
	}
}

func TestWaitReturnsOnceDocumentAppears(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(path, []byte(sampleDoc), 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc, err := settings.Wait(ctx, path, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if user, _ := doc.String("rpc", "username"); user != "satoshi" {
		t.Fatalf("unexpected username after wait: %q", user)
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := settings.Wait(ctx, filepath.Join(t.TempDir(), "absent.yaml"), 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
}
