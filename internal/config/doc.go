// Package config loads, normalizes, and validates minder configuration data.
//
// It supplies appliance defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the supervisor, sidecar, and CLI need, from bitcoind binary names to
// telemetry intervals and the RPC proxy listen address.
//
// Always obtain settings through this package so downstream code receives
// sanitized absolute paths, canonical log formats, and clear validation
// errors.
package config
