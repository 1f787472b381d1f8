package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"monad/internal/config"
	"monad/internal/daemonctl"
	"monad/internal/statusapi"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestStatusLines(t *testing.T) {
	tests := []struct {
		name string
		snap daemonctl.Snapshot
		want string
	}{
		{
			name: "loop mode",
			snap: daemonctl.Snapshot{Mode: config.ModeLoop},
			want: "Not used in loop mode",
		},
		{
			name: "http offline",
			snap: daemonctl.Snapshot{Mode: config.ModeHTTP, StatusBind: "127.0.0.1:3030"},
			want: "[INFO] Offline (127.0.0.1:3030)",
		},
		{
			name: "http active",
			snap: daemonctl.Snapshot{Running: true, PID: 7, Mode: config.ModeHTTP, StatusBind: "127.0.0.1:3030",
				Status: &daemonctl.Probe{Reachable: true, Code: 200, Body: statusapi.StatusBody}},
			want: "[OK] monad active (127.0.0.1:3030)",
		},
		{
			name: "http unreachable",
			snap: daemonctl.Snapshot{Running: true, PID: 7, Mode: config.ModeHTTP,
				Status: &daemonctl.Probe{Err: errors.New("connection refused")}},
			want: "[ERROR] connection refused",
		},
		{
			name: "http unexpected body",
			snap: daemonctl.Snapshot{Running: true, PID: 7, Mode: config.ModeHTTP,
				Status: &daemonctl.Probe{Reachable: true, Code: 404, Body: "nope"}},
			want: "[WARN] unexpected response 404",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := strings.Join(statusLines(&tt.snap, false), "\n")
			requireContains(t, lines, tt.want)
		})
	}
}

func TestStatusLinesMetrics(t *testing.T) {
	lines := strings.Join(statusLines(&daemonctl.Snapshot{Mode: config.ModeLoop, MetricsBind: "127.0.0.1:9090"}, false), "\n")
	requireContains(t, lines, "http://127.0.0.1:9090/metrics")
}

func TestRenderTablePadsRows(t *testing.T) {
	out := renderTable([]string{"File", "Path"}, [][]string{{"PID file"}, {"Lock", "/tmp/lock", "extra"}}, nil)
	requireContains(t, out, "PID file")
	requireContains(t, out, "/tmp/lock")
	if strings.Contains(out, "extra") {
		t.Fatalf("expected extra cells dropped, got %q", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty table for no headers")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
