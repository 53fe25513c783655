package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
environment: development
server:
  port: 8080
  read_timeout: 10s
  write_timeout: 10s
  shutdown_timeout: 5s
tradingview:
  timeout: 20s
storage:
  backend: file
  dir: ./data
collector:
  add_metadata: true
  runs:
    - dataset: stocks
      market: america
      columns: [close, volume]
      sort_by: volume
      limit: 100
      interval: 1m
      max_iterations: -1
      on_error: continue
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "development" || cfg.Server.Port != 8080 {
		t.Fatalf("env=%s port=%d", cfg.Environment, cfg.Server.Port)
	}
	if cfg.Storage.Backend != "file" || cfg.Storage.Dir != "./data" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Collector.Runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(cfg.Collector.Runs))
	}
	run := cfg.Collector.Runs[0]
	if run.Dataset != "stocks" || run.Interval != time.Minute || run.MaxIterations != -1 {
		t.Fatalf("run = %+v", run)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			"missing environment",
			"storage:\n  backend: file\n  dir: ./data\n",
			"environment",
		},
		{
			"missing backend",
			"environment: dev\n",
			"storage.backend",
		},
		{
			"unknown backend",
			"environment: dev\nstorage:\n  backend: s3\n",
			"storage.backend",
		},
		{
			"file backend without dir",
			"environment: dev\nstorage:\n  backend: file\n",
			"storage.dir",
		},
		{
			"sqlite backend without path",
			"environment: dev\nstorage:\n  backend: sqlite\n",
			"sqlite_path",
		},
		{
			"run without columns",
			"environment: dev\nstorage:\n  backend: file\n  dir: ./d\ncollector:\n  runs:\n    - dataset: stocks\n      interval: 1m\n",
			"columns",
		},
		{
			"run with bad policy",
			"environment: dev\nstorage:\n  backend: file\n  dir: ./d\ncollector:\n  runs:\n    - dataset: stocks\n      columns: [close]\n      interval: 1m\n      on_error: retry\n",
			"on_error",
		},
		{
			"kafka enabled without brokers",
			"environment: dev\nstorage:\n  backend: file\n  dir: ./d\nkafka:\n  enabled: true\n",
			"kafka.brokers",
		},
		{
			"queue without redis",
			"environment: dev\nstorage:\n  backend: file\n  dir: ./d\nqueue:\n  enabled: true\n",
			"redis",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("TRADINGVIEW_COOKIE", "sessionid=xyz")
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	// The env override switches to sqlite, so the document needs a path.
	yaml := strings.Replace(validYAML, "  dir: ./data", "  dir: ./data\n  sqlite_path: ./screener.db", 1)

	cfg, err := LoadWithEnv(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TradingView.Cookie != "sessionid=xyz" {
		t.Fatalf("cookie = %q", cfg.TradingView.Cookie)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Fatalf("backend = %q", cfg.Storage.Backend)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
}
