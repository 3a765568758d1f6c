package db

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeStats struct{ max, total, idle, acquired int32 }

func (f fakeStats) MaxConns() int32      { return f.max }
func (f fakeStats) TotalConns() int32    { return f.total }
func (f fakeStats) IdleConns() int32     { return f.idle }
func (f fakeStats) AcquiredConns() int32 { return f.acquired }

func TestCheckPool_NilPool(t *testing.T) {
	h := CheckPool(context.Background(), nil)

	if h.Reachable {
		t.Error("expected unreachable status for nil pool")
	}
	if h.Error == "" {
		t.Error("expected error for nil pool")
	}
}

func TestCheckPool_Reachable(t *testing.T) {
	ping := func(context.Context) error { return nil }
	stat := func() poolStats { return fakeStats{max: 4, total: 2, idle: 1, acquired: 1} }

	h := checkPool(context.Background(), ping, stat)

	if !h.Reachable || h.Error != "" {
		t.Fatalf("expected reachable, got %+v", h)
	}
	if h.MaxConns != 4 || h.TotalConns != 2 || h.IdleConns != 1 || h.AcquiredConns != 1 {
		t.Errorf("pool stats = %+v", h)
	}
	if got := h.String(); !strings.Contains(got, "1/4 connections in use (1 idle)") {
		t.Errorf("String() = %q", got)
	}
}

func TestCheckPool_PingFailure(t *testing.T) {
	ping := func(context.Context) error { return errors.New("connection refused") }
	stat := func() poolStats {
		t.Fatal("stats read after failed ping")
		return nil
	}

	h := checkPool(context.Background(), ping, stat)

	if h.Reachable {
		t.Error("expected unreachable status")
	}
	if h.Error != "ping failed: connection refused" {
		t.Errorf("Error = %q", h.Error)
	}
	if got := h.String(); got != "unreachable (ping failed: connection refused)" {
		t.Errorf("String() = %q", got)
	}
}
