// Package dashboard renders the Grafana dashboard for recorded robot status.
package dashboard

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"petcare-console/internal/telemetry"
)

//go:embed templates/*.tmpl
var templates embed.FS

// DatasourceEnv names the variable holding the Grafana GreptimeDB datasource uid.
const DatasourceEnv = "GREPTIMEDB_DATASOURCE_UID"

type panel struct {
	Type  string
	Title string
	X, Y  int
	SQL   string
}

type data struct {
	DatasourceUID string
	Panels        []panel
}

func panels(table string) []panel {
	series := func(col string) string {
		return fmt.Sprintf("SELECT ts AS time, session_id, %s FROM %s WHERE $__timeFilter(ts) ORDER BY ts", col, table)
	}
	return []panel{
		{Type: "timeseries", Title: "Battery (%)", X: 0, Y: 0, SQL: series("battery")},
		{Type: "timeseries", Title: "Speed", X: 12, Y: 0, SQL: series("speed")},
		{Type: "timeseries", Title: "Temperature (°C)", X: 0, Y: 8, SQL: series("temperature")},
		{Type: "xychart", Title: "Position", X: 12, Y: 8, SQL: series("x, y")},
		{Type: "table", Title: "Mode changes", X: 0, Y: 16, SQL: fmt.Sprintf(
			"SELECT ts AS time, session_id, source, mode, online FROM %s WHERE $__timeFilter(ts) AND source = 'local' ORDER BY ts DESC LIMIT 100", table)},
		{Type: "stat", Title: "Online", X: 12, Y: 16, SQL: series("online")},
	}
}

// Render writes every embedded dashboard to outDir with the datasource uid
// taken from the environment.
func Render(outDir string) error {
	funcMap := template.FuncMap{
		"add": func(a, b int) int { return a + b },
	}
	uid := os.Getenv(DatasourceEnv)
	if uid == "" {
		return fmt.Errorf("environment variable %s not set", DatasourceEnv)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	names, err := templates.ReadDir("templates")
	if err != nil {
		return err
	}
	d := data{DatasourceUID: uid, Panels: panels(telemetry.StatusTableName)}
	for _, entry := range names {
		t, err := template.New(entry.Name()).Funcs(funcMap).ParseFS(templates, "templates/"+entry.Name())
		if err != nil {
			return err
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(entry.Name(), ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := t.Execute(f, d); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
