// Package config is the JSON-on-disk configuration surface for a
// wgcore driver: this host's identity, the listen port a driver binds
// to, and each configured peer. The core itself never reads a file —
// a driver loads a Config and uses it to build a wgcore.Sessions.
//
// Grounded on the teacher's settings package: JSON-tagged structs with
// an EnsureDefaults/Validate pair, rather than panicking deep inside
// constructors on a bad value.
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// PeerConfig is one configured remote peer, keys given as the
// standard WireGuard base64 encoding of a 32-byte X25519 key.
type PeerConfig struct {
	PublicKey           string `json:"publicKey"`
	PresharedKey        string `json:"presharedKey,omitempty"`
	Endpoint            string `json:"endpoint,omitempty"`
	PersistentKeepalive int    `json:"persistentKeepaliveSeconds,omitempty"`
}

// Config is the top-level, on-disk configuration document.
type Config struct {
	PrivateKey string       `json:"privateKey"`
	ListenPort int          `json:"listenPort"`
	Peers      []PeerConfig `json:"peers"`
}

// EnsureDefaults fills in values a zero-value Config leaves unset.
func (c *Config) EnsureDefaults() {
	if c.ListenPort == 0 {
		c.ListenPort = 51820
	}
}

// Validate reports the first structural problem found, or nil.
func (c *Config) Validate() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("config: privateKey is required")
	}
	if _, err := DecodeKey(c.PrivateKey); err != nil {
		return fmt.Errorf("config: privateKey: %w", err)
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("config: listenPort out of range: %d", c.ListenPort)
	}
	seen := make(map[string]bool, len(c.Peers))
	for i, p := range c.Peers {
		if _, err := DecodeKey(p.PublicKey); err != nil {
			return fmt.Errorf("config: peers[%d].publicKey: %w", i, err)
		}
		if p.PresharedKey != "" {
			if _, err := DecodeKey(p.PresharedKey); err != nil {
				return fmt.Errorf("config: peers[%d].presharedKey: %w", i, err)
			}
		}
		if seen[p.PublicKey] {
			return fmt.Errorf("config: peers[%d].publicKey: duplicate", i)
		}
		seen[p.PublicKey] = true
		if p.PersistentKeepalive < 0 {
			return fmt.Errorf("config: peers[%d].persistentKeepaliveSeconds: negative", i)
		}
	}
	return nil
}

// Keepalive returns the peer's configured persistent keepalive interval, or 0.
func (p *PeerConfig) Keepalive() time.Duration {
	return time.Duration(p.PersistentKeepalive) * time.Second
}

// DecodeKey decodes a standard WireGuard base64 32-byte key.
func DecodeKey(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("invalid base64: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("key must decode to 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// Load reads and parses a Config from path, applying defaults and
// validating it before returning.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.EnsureDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
