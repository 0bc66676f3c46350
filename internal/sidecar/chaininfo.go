package sidecar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ChainInfo is the chain status snapshot decoded from getblockchaininfo.
// It is rebuilt on every poll cycle and never persisted as-is.
type ChainInfo struct {
	Blocks               int       `json:"blocks"`
	Headers              int       `json:"headers"`
	VerificationProgress float64   `json:"verificationprogress"`
	SizeOnDisk           uint64    `json:"size_on_disk"`
	PruneHeight          int       `json:"pruneheight"`
	SoftForks            SoftForks `json:"softforks"`
}

// NetworkInfo is the peer connection snapshot decoded from getnetworkinfo.
type NetworkInfo struct {
	Connections    int `json:"connections"`
	ConnectionsIn  int `json:"connections_in"`
	ConnectionsOut int `json:"connections_out"`
}

// SoftFork is the activation record for one consensus deployment. Exactly
// one concrete variant backs each value.
type SoftFork interface {
	isSoftFork()
}

// BuriedFork is a deployment activated long ago at a fixed height. Buried
// forks are never surfaced in telemetry.
type BuriedFork struct {
	Active bool `json:"active"`
	Height int  `json:"height"`
}

// Bip9Fork is a deployment progressing through BIP9 version-bit signaling.
type Bip9Fork struct {
	Active bool
	State  DeploymentState
}

func (BuriedFork) isSoftFork() {}
func (Bip9Fork) isSoftFork()   {}

// DeploymentState is the BIP9 state machine position for one deployment.
// The daemon owns all transitions; minder only reads and formats the
// current variant.
type DeploymentState interface {
	isDeploymentState()
}

// Window is the signaling window common to every deployment state.
type Window struct {
	StartTime int64 `json:"start_time"`
	Timeout   int64 `json:"timeout"`
	Since     int   `json:"since"`
}

// DeploymentStats carries live signaling statistics while a deployment is
// in the Started state.
type DeploymentStats struct {
	Period    int  `json:"period"`
	Threshold int  `json:"threshold"`
	Elapsed   int  `json:"elapsed"`
	Count     int  `json:"count"`
	Possible  bool `json:"possible"`
}

// Defined means the deployment is known but its signaling has not begun.
type Defined struct {
	Window
}

// Started means miners are actively signaling for the deployment.
type Started struct {
	Window
	Bit   int             `json:"bit"`
	Stats DeploymentStats `json:"statistics"`
}

// LockedIn means the signaling threshold was reached and activation is
// pending.
type LockedIn struct {
	Window
}

// Active means the deployment's rules are enforced.
type Active struct {
	Window
}

// Failed means the deployment timed out without reaching its threshold.
type Failed struct {
	Window
}

func (Defined) isDeploymentState()  {}
func (Started) isDeploymentState()  {}
func (LockedIn) isDeploymentState() {}
func (Active) isDeploymentState()   {}
func (Failed) isDeploymentState()   {}

// NamedFork pairs a deployment's raw key with its decoded record.
type NamedFork struct {
	Name string
	Fork SoftFork
}

// SoftForks preserves the daemon's reporting order.
type SoftForks []NamedFork

// UnmarshalJSON decodes the softforks object entry by entry so the order
// the daemon reports survives into the published document.
func (s *SoftForks) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("softforks: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("softforks: expected an object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("softforks: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return errors.New("softforks: expected a string key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("softfork %q: %w", name, err)
		}
		fork, err := decodeSoftFork(raw)
		if err != nil {
			return fmt.Errorf("softfork %q: %w", name, err)
		}
		*s = append(*s, NamedFork{Name: name, Fork: fork})
	}
	return nil
}

func decodeSoftFork(raw json.RawMessage) (SoftFork, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}
	switch tag.Type {
	case "buried":
		var fork BuriedFork
		if err := json.Unmarshal(raw, &fork); err != nil {
			return nil, err
		}
		return fork, nil
	case "bip9":
		var payload struct {
			Active bool            `json:"active"`
			Bip9   json.RawMessage `json:"bip9"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		if len(payload.Bip9) == 0 {
			return nil, errors.New("bip9 fork missing deployment state")
		}
		state, err := decodeDeploymentState(payload.Bip9)
		if err != nil {
			return nil, err
		}
		return Bip9Fork{Active: payload.Active, State: state}, nil
	case "":
		return nil, errors.New("softfork missing type tag")
	default:
		return nil, fmt.Errorf("unknown softfork type %q", tag.Type)
	}
}

func decodeDeploymentState(raw json.RawMessage) (DeploymentState, error) {
	var tag struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}
	switch tag.Status {
	case "defined":
		var state Defined
		return state, json.Unmarshal(raw, &state)
	case "started":
		var state Started
		return state, json.Unmarshal(raw, &state)
	case "locked_in":
		var state LockedIn
		return state, json.Unmarshal(raw, &state)
	case "active":
		var state Active
		return state, json.Unmarshal(raw, &state)
	case "failed":
		var state Failed
		return state, json.Unmarshal(raw, &state)
	case "":
		return nil, errors.New("deployment missing status tag")
	default:
		return nil, fmt.Errorf("unknown deployment status %q", tag.Status)
	}
}

// DecodeChainInfo parses a getblockchaininfo response.
func DecodeChainInfo(data []byte) (*ChainInfo, error) {
	var info ChainInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse chain info: %w", err)
	}
	return &info, nil
}

// DecodeNetworkInfo parses a getnetworkinfo response.
func DecodeNetworkInfo(data []byte) (*NetworkInfo, error) {
	var info NetworkInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse network info: %w", err)
	}
	return &info, nil
}
