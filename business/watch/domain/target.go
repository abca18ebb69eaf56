// Package domain contains the core domain types for the watch context.
package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fd1az/token-price-engine/internal/asset"
)

// Target is a token the watcher prices every cycle.
type Target struct {
	TokenID    string
	Chain      asset.Chain
	Identifier string
	// Decimals is negative when unknown.
	Decimals int
}

// ParseTarget parses "chain:identifier" or "chain:identifier:decimals".
func ParseTarget(s string) (Target, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Target{}, fmt.Errorf("target %q: want chain:identifier[:decimals]", s)
	}

	chain, err := asset.ParseChain(parts[0])
	if err != nil {
		return Target{}, fmt.Errorf("target %q: %w", s, err)
	}
	id, err := asset.NewAssetID(chain, parts[1])
	if err != nil {
		return Target{}, fmt.Errorf("target %q: %w", s, err)
	}

	t := Target{
		TokenID:    id.String(),
		Chain:      id.Chain(),
		Identifier: id.Identifier(),
		Decimals:   -1,
	}
	if len(parts) == 3 {
		d, err := strconv.Atoi(parts[2])
		if err != nil || d < 0 || d > 255 {
			return Target{}, fmt.Errorf("target %q: bad decimals %q", s, parts[2])
		}
		t.Decimals = d
	}
	return t, nil
}

// ParseTargets parses every entry and rejects duplicates.
func ParseTargets(entries []string) ([]Target, error) {
	seen := make(map[string]bool, len(entries))
	out := make([]Target, 0, len(entries))
	for _, e := range entries {
		t, err := ParseTarget(e)
		if err != nil {
			return nil, err
		}
		if seen[t.TokenID] {
			return nil, fmt.Errorf("target %q listed twice", e)
		}
		seen[t.TokenID] = true
		out = append(out, t)
	}
	return out, nil
}

// Label returns a short display name such as "ethereum 0x1f98…f984".
func (t Target) Label() string {
	id := t.Identifier
	if len(id) > 12 {
		id = id[:6] + "…" + id[len(id)-4:]
	}
	return string(t.Chain) + " " + id
}
