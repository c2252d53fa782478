package record

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"petcare-console/internal/config"
	"petcare-console/internal/telemetry"
)

func sampleRows() []telemetry.StatusRow {
	ts := time.Unix(1700000000, 0).UTC()
	return []telemetry.StatusRow{
		{SessionID: "s1", Source: "remote", Online: true, Battery: 45, Mode: "manual", X: 10, Y: 20, Timestamp: ts},
		{SessionID: "s1", Source: "local", Online: true, Battery: 44, Mode: "manual", X: 10, Y: 18.5, Timestamp: ts.Add(time.Second)},
	}
}

type collectWriter struct {
	rows []telemetry.StatusRow
	err  error
}

func (c *collectWriter) WriteStatus(r telemetry.StatusRow) error {
	if c.err != nil {
		return c.err
	}
	c.rows = append(c.rows, r)
	return nil
}

type mockGreptimeClient struct {
	table *table.Table
	err   error
}

func (m *mockGreptimeClient) Write(_ context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	if len(tables) > 0 {
		m.table = tables[0]
	}
	return &gpb.GreptimeResponse{}, m.err
}

func TestGreptimeWriterStatusRows(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, table: "robot_status", log: quietLog()}

	if err := w.WriteStatuses(sampleRows()); err != nil {
		t.Fatalf("WriteStatuses: %v", err)
	}
	if m.table == nil {
		t.Fatalf("expected table to be captured")
	}
	rows := m.table.GetRows()
	if len(rows.Schema) != 11 {
		t.Fatalf("unexpected schema length: %d", len(rows.Schema))
	}
	if rows.Schema[0].SemanticType != gpb.SemanticType_TAG || rows.Schema[10].SemanticType != gpb.SemanticType_TIMESTAMP {
		t.Fatalf("unexpected semantic types: %v / %v", rows.Schema[0].SemanticType, rows.Schema[10].SemanticType)
	}
	if len(rows.Rows) != 2 {
		t.Fatalf("rows = %d", len(rows.Rows))
	}
	if got := rows.Rows[0].Values[0].GetStringValue(); got != "s1" {
		t.Fatalf("session_id = %s", got)
	}
	if got := rows.Rows[1].Values[3].GetF64Value(); got != 44 {
		t.Fatalf("battery = %v", got)
	}

	if err := w.WriteStatuses(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	m.err = errors.New("unavailable")
	if err := w.WriteStatus(sampleRows()[0]); err == nil {
		t.Fatalf("expected client error to surface")
	}
}

func TestSplitEndpoint(t *testing.T) {
	cases := map[string]struct {
		host string
		port int
	}{
		"greptime":            {"greptime", DefaultGreptimePort},
		"127.0.0.1:4101":      {"127.0.0.1", 4101},
		"db.example.com:4001": {"db.example.com", 4001},
	}
	for in, want := range cases {
		host, port, err := splitEndpoint(in)
		if err != nil || host != want.host || port != want.port {
			t.Errorf("splitEndpoint(%q) = %q, %d, %v", in, host, port, err)
		}
	}
	if _, _, err := splitEndpoint("host:notaport"); err == nil {
		t.Errorf("expected bad port to fail")
	}
}

func TestFileWriterAppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "status.jsonl")
	fw, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	rows := sampleRows()
	if err := fw.WriteStatus(rows[0]); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatal(err)
	}

	fw, err = NewFileWriter(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := fw.WriteStatuses(rows[1:]); err != nil {
		t.Fatalf("WriteStatuses: %v", err)
	}
	fw.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var got []telemetry.StatusRow
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r telemetry.StatusRow
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		got = append(got, r)
	}
	if len(got) != 2 || got[1].Source != "local" || got[1].Y != 18.5 {
		t.Fatalf("unexpected rows %+v", got)
	}
}

func TestStdoutWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &StdoutWriter{out: buf}
	if err := w.WriteStatus(sampleRows()[0]); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}

	buf.Reset()
	w.colorize = true
	row := sampleRows()[0]
	row.Mode = "emergency"
	row.Charging = true
	if err := w.WriteStatus(row); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{colorRed + "mode=emergency", "batt=45.0", "pos=(10.0,20.0)", "charging"} {
		if !strings.Contains(out, want) {
			t.Errorf("colorized output missing %q: %q", want, out)
		}
	}
}

func TestMultiWriterJoinsErrors(t *testing.T) {
	good := &collectWriter{}
	bad := &collectWriter{err: errors.New("disk full")}
	mw := NewMultiWriter(bad, nil, good)
	if mw.Len() != 2 {
		t.Fatalf("nil writer should be skipped, len=%d", mw.Len())
	}
	err := mw.WriteStatuses(sampleRows())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(good.rows) != 2 {
		t.Fatalf("healthy writer starved: %d rows", len(good.rows))
	}
}

func TestMultiWriterAdd(t *testing.T) {
	first, late := &collectWriter{}, &collectWriter{}
	mw := NewMultiWriter(first)
	mw.Add(nil)
	mw.Add(late)
	if mw.Len() != 2 {
		t.Fatalf("len = %d", mw.Len())
	}
	if err := mw.WriteStatus(sampleRows()[0]); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(first.rows) != 1 || len(late.rows) != 1 {
		t.Fatalf("row not fanned out to late writer")
	}
}

func TestReplay(t *testing.T) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range sampleRows() {
		if err := enc.Encode(r); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	cw := &collectWriter{}
	n, err := Replay(context.Background(), bytes.NewReader(buf.Bytes()), cw, 0)
	if err != nil || n != 2 {
		t.Fatalf("Replay = %d, %v", n, err)
	}
	if cw.rows[1].Battery != 44 {
		t.Fatalf("row mismatch: %+v", cw.rows[1])
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Replay(ctx, bytes.NewReader(buf.Bytes()), &collectWriter{}, 0.001); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, err := Replay(context.Background(), strings.NewReader("{bad"), cw, 0); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.jsonl")
	mw, err := FromConfig(config.RecordConfig{File: path, Stdout: true}, false, quietLog())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	defer mw.Close()
	if mw.Len() != 2 {
		t.Fatalf("expected stdout and file sinks, got %d", mw.Len())
	}
	empty, err := FromConfig(config.RecordConfig{}, false, quietLog())
	if err != nil || empty.Len() != 0 {
		t.Fatalf("empty config = %d, %v", empty.Len(), err)
	}
}

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
