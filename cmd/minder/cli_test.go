package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"minder/internal/statusdoc"
)

// writeTestConfig writes a minder config that redirects every path into a
// temp directory and returns the config path plus the directory.
func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	base := t.TempDir()
	configPath := filepath.Join(base, "minder.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
appliance_dir = %q
template_path = %q
`, base, filepath.Join(base, "minder"), filepath.Join(base, "bitcoin.conf.template"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(base, "minder"), 0o755); err != nil {
		t.Fatalf("mkdir appliance dir: %v", err)
	}
	return configPath, base
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestStatusCommandMasksSensitiveValues(t *testing.T) {
	configPath, base := writeTestConfig(t)

	doc := statusdoc.New()
	doc.Add("RPC Password", statusdoc.Stat{
		Type:     statusdoc.TypeString,
		Value:    "hunter2",
		Copyable: true,
		Masked:   true,
	})
	doc.Add("Block Height", statusdoc.Stat{Type: statusdoc.TypeString, Value: "500000"})
	if err := statusdoc.Publish(filepath.Join(base, "minder", "stats.yaml"), doc); err != nil {
		t.Fatalf("publish status document: %v", err)
	}

	out, err := runCLI(t, "--config", configPath, "status", "--plain")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "RPC Password: "+maskedValue)
	requireContains(t, out, "Block Height: 500000")
	if strings.Contains(out, "hunter2") {
		t.Fatal("masked value leaked without --reveal")
	}

	out, err = runCLI(t, "--config", configPath, "status", "--plain", "--reveal")
	if err != nil {
		t.Fatalf("status --reveal: %v", err)
	}
	requireContains(t, out, "RPC Password: hunter2")
}

func TestStatusCommandWithoutDocumentFails(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	if _, err := runCLI(t, "--config", configPath, "status"); err == nil {
		t.Fatal("expected an error before the first publish")
	}
}

func TestRenderCommandPreviewsConfigWithoutConsumingMarkers(t *testing.T) {
	configPath, base := writeTestConfig(t)

	settingsPath := filepath.Join(base, "minder", "config.yaml")
	if err := os.WriteFile(settingsPath, []byte("rpc:\n  username: satoshi\n"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	templatePath := filepath.Join(base, "bitcoin.conf.template")
	if err := os.WriteFile(templatePath, []byte("rpcuser={{rpc.username}}\n"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	marker := filepath.Join(base, "requires.reindex")
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	out, err := runCLI(t, "--config", configPath, "render")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	requireContains(t, out, "rpcuser=satoshi")

	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("render must not consume the reindex marker: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "bitcoin.conf")); !os.IsNotExist(err) {
		t.Fatal("render must not write the daemon config")
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error without --overwrite")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, out, "minder")
}
