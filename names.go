package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Identity is a cosmetic name and avatar reference
type Identity struct {
	Name   string `json:"name" yaml:"name"`
	Avatar string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
}

// defaultIdentities are used until (or instead of) an external source loads
var defaultIdentities = []Identity{
	{Name: "blinky"}, {Name: "pinky"}, {Name: "inky"}, {Name: "clyde"},
	{Name: "pebble"}, {Name: "crumb"}, {Name: "speck"}, {Name: "morsel"},
	{Name: "nibble"}, {Name: "biscuit"}, {Name: "dot"}, {Name: "bean"},
}

// NamePool hands out identities in rotation. Safe for concurrent use; the
// entries can be swapped at any time.
type NamePool struct {
	mu      sync.Mutex
	entries []Identity
	next    int
}

// NewNamePool creates a pool; an empty list falls back to the built-in set
func NewNamePool(entries []Identity) *NamePool {
	p := &NamePool{}
	p.Replace(entries)
	return p
}

// Next returns the next identity in rotation
func (p *NamePool) Next() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.entries[p.next%len(p.entries)]
	p.next++
	return id
}

// Replace swaps the entries. Blank names are dropped; an empty result keeps the defaults.
func (p *NamePool) Replace(entries []Identity) {
	clean := make([]Identity, 0, len(entries))
	for _, e := range entries {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name != "" {
			clean = append(clean, e)
		}
	}
	if len(clean) == 0 {
		clean = append(clean, defaultIdentities...)
	}
	p.mu.Lock()
	p.entries = clean
	p.next = 0
	p.mu.Unlock()
}

// Len returns the number of entries
func (p *NamePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

var errNoIdentities = errors.New("names: source has no entries")

// LoadIdentities reads identities from a YAML/JSON file or an http(s) URL.
// URLs may return either a plain list or a randomuser.me style document.
func LoadIdentities(ctx context.Context, source string) ([]Identity, error) {
	var raw []byte
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		raw, err = fetch(ctx, source)
	} else {
		raw, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("names: load %s: %w", source, err)
	}
	ids, err := parseIdentities(raw)
	if err != nil {
		return nil, fmt.Errorf("names: parse %s: %w", source, err)
	}
	if len(ids) == 0 {
		return nil, errNoIdentities
	}
	return ids, nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// randomUserDoc is the subset of the randomuser.me response we read
type randomUserDoc struct {
	Results []struct {
		Login struct {
			Username string `json:"username" yaml:"username"`
		} `json:"login" yaml:"login"`
		Name struct {
			First string `json:"first" yaml:"first"`
		} `json:"name" yaml:"name"`
		Picture struct {
			Thumbnail string `json:"thumbnail" yaml:"thumbnail"`
		} `json:"picture" yaml:"picture"`
	} `json:"results" yaml:"results"`
}

// parseIdentities accepts a list of identities or a randomuser.me document.
// YAML is a superset of JSON, so one decoder covers both file formats.
func parseIdentities(raw []byte) ([]Identity, error) {
	var list []Identity
	if err := yaml.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var doc randomUserDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	ids := make([]Identity, 0, len(doc.Results))
	for _, r := range doc.Results {
		name := r.Login.Username
		if name == "" {
			name = r.Name.First
		}
		ids = append(ids, Identity{Name: name, Avatar: r.Picture.Thumbnail})
	}
	return ids, nil
}

// LoadNamesAsync fills the pool from source in the background. Failures keep the current entries.
func LoadNamesAsync(ctx context.Context, pool *NamePool, cfg NamesConfig, done func(error)) {
	if cfg.Source == "" {
		return
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	go func() {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ids, err := LoadIdentities(ctx, cfg.Source)
		if err == nil {
			pool.Replace(ids)
		}
		if done != nil {
			done(err)
		}
	}()
}
