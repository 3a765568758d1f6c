package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolHealth is the connection report shown alongside migration status.
type PoolHealth struct {
	Reachable     bool          `json:"reachable" yaml:"reachable"`
	Latency       time.Duration `json:"-" yaml:"-"`
	LatencyMS     float64       `json:"latency_ms" yaml:"latency_ms"`
	MaxConns      int32         `json:"max_conns" yaml:"max_conns"`
	TotalConns    int32         `json:"total_conns" yaml:"total_conns"`
	IdleConns     int32         `json:"idle_conns" yaml:"idle_conns"`
	AcquiredConns int32         `json:"acquired_conns" yaml:"acquired_conns"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// String renders the report as a single status line.
func (h PoolHealth) String() string {
	if !h.Reachable {
		return fmt.Sprintf("unreachable (%s)", h.Error)
	}
	return fmt.Sprintf("reachable, ping %s, %d/%d connections in use (%d idle)",
		h.Latency.Round(time.Microsecond), h.AcquiredConns, h.MaxConns, h.IdleConns)
}

// poolStats is the part of *pgxpool.Stat the report reads.
type poolStats interface {
	MaxConns() int32
	TotalConns() int32
	IdleConns() int32
	AcquiredConns() int32
}

// CheckPool pings the database and reports pool statistics. A failed ping
// is reported in the result rather than returned.
func CheckPool(ctx context.Context, pool *pgxpool.Pool) PoolHealth {
	if pool == nil {
		return PoolHealth{Error: "pool is nil"}
	}
	return checkPool(ctx, pool.Ping, func() poolStats { return pool.Stat() })
}

func checkPool(ctx context.Context, ping func(context.Context) error, stat func() poolStats) PoolHealth {
	var h PoolHealth

	start := time.Now()
	err := ping(ctx)
	h.Latency = time.Since(start)
	h.LatencyMS = float64(h.Latency.Microseconds()) / 1000

	if err != nil {
		h.Error = fmt.Sprintf("ping failed: %v", err)
		return h
	}

	s := stat()
	h.Reachable = true
	h.MaxConns = s.MaxConns()
	h.TotalConns = s.TotalConns()
	h.IdleConns = s.IdleConns()
	h.AcquiredConns = s.AcquiredConns()
	return h
}
