// Package settings reads the appliance settings document.
//
// The document is an externally owned YAML tree holding the node's
// user-facing knobs (RPC credentials, peer policy, pruning mode). It is
// written by the appliance's configuration layer, read here once per process
// start, and never mutated by minder.
package settings

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is the parsed settings tree. Treat it as read-only; a changed
// document on disk takes effect only on process restart.
type Document struct {
	root map[string]any
}

// Load reads and parses the settings document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return Parse(data)
}

// Parse decodes a settings document from raw YAML.
func Parse(data []byte) (*Document, error) {
	root := map[string]any{}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return &Document{root: root}, nil
}

// Wait blocks until the settings document exists, polling at the given
// interval, then loads it. The appliance's configuration layer may come up
// after minder does, so absence is expected and retried indefinitely; only
// context cancellation or a document that exists but fails to parse ends the
// wait with an error.
func Wait(ctx context.Context, path string, interval time.Duration) (*Document, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Lookup walks nested mappings by key path and returns the raw value.
func (d *Document) Lookup(path ...string) (any, bool) {
	if d == nil || len(path) == 0 {
		return nil, false
	}
	var current any = d.root
	for _, key := range path {
		mapping, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = mapping[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// String returns the string value at the key path. ok is false when the key
// is absent or holds a non-string value.
func (d *Document) String(path ...string) (string, bool) {
	value, ok := d.Lookup(path...)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// Bool returns the boolean at the key path, defaulting to false when the key
// is absent or holds a non-boolean value.
func (d *Document) Bool(path ...string) bool {
	value, ok := d.Lookup(path...)
	if !ok {
		return false
	}
	b, _ := value.(bool)
	return b
}

// RPCCredentials returns the configured RPC username and password. ok is
// false unless both are present as strings.
func (d *Document) RPCCredentials() (username, password string, ok bool) {
	username, userOK := d.String("rpc", "username")
	password, passOK := d.String("rpc", "password")
	if !userOK || !passOK {
		return "", "", false
	}
	return username, password, true
}

// OnlyOnion reports whether the node should reach peers exclusively through
// onion routing.
func (d *Document) OnlyOnion() bool {
	return d.Bool("advanced", "peers", "onlyonion")
}

// PruningMode returns the configured pruning mode, or "" when unset.
func (d *Document) PruningMode() string {
	mode, _ := d.String("advanced", "pruning", "mode")
	return mode
}

// Pruned reports whether the node prunes chain data automatically, which is
// the condition for fronting RPC with the proxy.
func (d *Document) Pruned() bool {
	return d.PruningMode() == "automatic"
}

// Var resolves a dotted variable path to its scalar rendering for template
// substitution. Strings render verbatim; booleans and numbers render in
// canonical text form. Mappings, sequences, and null values do not render.
func (d *Document) Var(name string) (string, bool) {
	value, ok := d.Lookup(strings.Split(name, ".")...)
	if !ok {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}
