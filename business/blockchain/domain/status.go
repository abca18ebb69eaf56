package domain

import (
	"time"

	"github.com/fd1az/token-price-engine/internal/asset"
)

// ConnectionState represents the state of a chain endpoint.
type ConnectionState string

const (
	StateUnknown   ConnectionState = "unknown"
	StateConnected ConnectionState = "connected"
	StateDegraded  ConnectionState = "degraded"
)

// ChainStatus is the result of probing one chain endpoint.
type ChainStatus struct {
	Chain     asset.Chain
	State     ConnectionState
	Height    uint64 // block number or slot
	Latency   time.Duration
	CheckedAt time.Time
	Err       error
}
