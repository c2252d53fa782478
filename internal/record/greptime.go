package record

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"petcare-console/internal/telemetry"
)

// DefaultGreptimePort is the GreptimeDB gRPC port.
const DefaultGreptimePort = 4001

const writeTimeout = 5 * time.Second

// greptimeClient is the part of the ingester client the writer uses.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes status rows to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client greptimeClient
	table  string
	log    *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port"). The
// table is created by the first write.
func NewGreptimeDBWriter(endpoint, database string, log *slog.Logger) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &GreptimeDBWriter{
		client: client,
		table:  telemetry.StatusRow{}.TableName(),
		log:    log.With("component", "greptime"),
	}, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		// No port given.
		return endpoint, DefaultGreptimePort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// WriteStatus inserts a single row.
func (w *GreptimeDBWriter) WriteStatus(row telemetry.StatusRow) error {
	return w.WriteStatuses([]telemetry.StatusRow{row})
}

// WriteStatuses inserts multiple rows in one request.
func (w *GreptimeDBWriter) WriteStatuses(rows []telemetry.StatusRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := statusTable(w.table, rows)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		w.log.Warn("write failed", "rows", len(rows), "err", err)
		return err
	}
	w.log.Debug("wrote rows", "rows", len(rows))
	return nil
}

func statusTable(name string, rows []telemetry.StatusRow) (*table.Table, error) {
	tbl, err := table.New(name)
	if err != nil {
		return nil, err
	}
	err = errors.Join(
		tbl.AddTagColumn("session_id", types.STRING),
		tbl.AddTagColumn("source", types.STRING),
		tbl.AddFieldColumn("online", types.BOOLEAN),
		tbl.AddFieldColumn("battery", types.FLOAT64),
		tbl.AddFieldColumn("mode", types.STRING),
		tbl.AddFieldColumn("x", types.FLOAT64),
		tbl.AddFieldColumn("y", types.FLOAT64),
		tbl.AddFieldColumn("speed", types.FLOAT64),
		tbl.AddFieldColumn("temperature", types.FLOAT64),
		tbl.AddFieldColumn("charging", types.BOOLEAN),
		tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND),
	)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := tbl.AddRow(
			r.SessionID, r.Source, r.Online, r.Battery, r.Mode,
			r.X, r.Y, r.Speed, r.Temperature, r.Charging, r.Timestamp,
		); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}
