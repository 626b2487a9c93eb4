package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGetDataDirWithExplicitEnv(t *testing.T) {
	tmpDir := t.TempDir()
	customDir := filepath.Join(tmpDir, "custom")

	t.Setenv("WDRC_DIR", customDir)
	t.Setenv("XDG_DATA_HOME", "")

	got := GetDataDir()
	if got != customDir {
		t.Fatalf("expected %q, got %q", customDir, got)
	}
}

func TestGetDataDirFallsBackToXDG(t *testing.T) {
	tmpDir := t.TempDir()
	xdgDir := filepath.Join(tmpDir, "xdg")

	t.Setenv("WDRC_DIR", "")
	t.Setenv("XDG_DATA_HOME", xdgDir)

	got := GetDataDir()
	want := filepath.Join(xdgDir, "wdrc")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got, want := GetDefaultDBPath(), filepath.Join(xdgDir, "wdrc", "wdrc.db"); got != want {
		t.Fatalf("GetDefaultDBPath expected %q, got %q", want, got)
	}
}

func TestResolvePathSearchesXDGConfig(t *testing.T) {
	workDir := t.TempDir()
	configHome := t.TempDir()
	t.Chdir(workDir)
	t.Setenv("XDG_CONFIG_HOME", configHome)

	if got := ResolvePath(""); got != DefaultConfigFile {
		t.Fatalf("expected fallback to %q, got %q", DefaultConfigFile, got)
	}

	xdgFile := filepath.Join(configHome, "wdrc", DefaultConfigFile)
	if err := os.MkdirAll(filepath.Dir(xdgFile), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(xdgFile, []byte(`{}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := ResolvePath(""); got != xdgFile {
		t.Fatalf("expected %q, got %q", xdgFile, got)
	}

	if err := os.WriteFile(filepath.Join(workDir, DefaultConfigFile), []byte(`{}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := ResolvePath(""); got != DefaultConfigFile {
		t.Fatalf("expected working directory file to win, got %q", got)
	}

	if got := ResolvePath("/etc/wdrc.json"); got != "/etc/wdrc.json" {
		t.Fatalf("explicit path must be kept, got %q", got)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"wikidata": {"host": "replica.local", "user": "u", "password": "p", "database": "wikidatawiki_p"},
		"wdrc": {"database": "/tmp/wdrc.db"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Path != path {
		t.Fatalf("expected path %q, got %q", path, cfg.Path)
	}
	if cfg.Wikidata.Driver != DriverMySQL || cfg.Store.Driver != DriverSQLite {
		t.Fatalf("unexpected drivers %q/%q", cfg.Wikidata.Driver, cfg.Store.Driver)
	}
	if cfg.MaxRecentChanges != 500 || cfg.MaxConcurrent != 50 || cfg.BatchSize != 500 {
		t.Fatalf("unexpected numeric defaults: %+v", cfg)
	}
	if !cfg.Logging {
		t.Fatalf("expected logging to default to true")
	}
	if cfg.FetchTimeout != 30*time.Second || cfg.BackoffInitial != time.Second || cfg.BackoffMax != time.Minute {
		t.Fatalf("unexpected duration defaults: %+v", cfg)
	}
}

func TestLoadReadsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"wikidata": {"driver": "postgres", "dsn": "postgres://replica/wikidata"},
		"wdrc": {"driver": "postgres", "host": "db", "port": 6543, "user": "bot", "database": "wdrc"},
		"max_recent_changes": 100,
		"logging": false,
		"fetch_timeout": "5s",
		"cycle_interval": "2m"
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.MaxRecentChanges != 100 || cfg.Logging {
		t.Fatalf("unexpected values: %+v", cfg)
	}
	if cfg.FetchTimeout != 5*time.Second || cfg.CycleInterval != 2*time.Minute {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	dsn, err := cfg.Store.DataSourceName()
	if err != nil {
		t.Fatalf("DataSourceName: %v", err)
	}
	if dsn != "postgres://bot@db:6543/wdrc" {
		t.Fatalf("unexpected postgres dsn %q", dsn)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WDRC_MAX_RECENT_CHANGES", "42")

	cfg, err := Parse("inline", []byte(`{"wikidata": {}, "wdrc": {}}`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.MaxRecentChanges != 42 {
		t.Fatalf("expected env override 42, got %d", cfg.MaxRecentChanges)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing stores", content: `{"max_recent_changes": 10}`},
		{name: "missing wdrc", content: `{"wikidata": {}}`},
		{name: "wrong type", content: `{"wikidata": {}, "wdrc": {}, "max_recent_changes": "many"}`},
		{name: "unknown driver", content: `{"wikidata": {"driver": "oracle"}, "wdrc": {}}`},
		{name: "bad duration", content: `{"wikidata": {}, "wdrc": {}, "fetch_timeout": "soon"}`},
		{name: "mysql change store", content: `{"wikidata": {}, "wdrc": {"driver": "mysql"}}`},
		{name: "backoff inverted", content: `{"wikidata": {}, "wdrc": {}, "backoff_initial": "2m", "backoff_max": "1m"}`},
		{name: "not json", content: `wikidata: {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("inline", []byte(tt.content))
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestDataSourceName(t *testing.T) {
	t.Setenv("WDRC_DIR", "/data/wdrc")

	tests := []struct {
		name  string
		store StoreConfig
		want  string
	}{
		{
			name:  "explicit dsn",
			store: StoreConfig{Driver: DriverMySQL, DSN: "u:p@tcp(h:1)/db", Host: "ignored"},
			want:  "u:p@tcp(h:1)/db",
		},
		{
			name:  "mysql fields",
			store: StoreConfig{Driver: DriverMySQL, Host: "replica", User: "u", Password: "p", Database: "wikidatawiki_p"},
			want:  "u:p@tcp(replica:3306)/wikidatawiki_p",
		},
		{
			name:  "postgres fields",
			store: StoreConfig{Driver: DriverPostgres, Host: "pg", User: "u", Password: "p", Database: "wdrc"},
			want:  "postgres://u:p@pg:5432/wdrc",
		},
		{
			name:  "sqlite path",
			store: StoreConfig{Driver: DriverSQLite, Database: "/tmp/x.db"},
			want:  "/tmp/x.db",
		},
		{
			name:  "sqlite default",
			store: StoreConfig{Driver: DriverSQLite},
			want:  filepath.Join("/data/wdrc", "wdrc.db"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.store.DataSourceName()
			if err != nil {
				t.Fatalf("DataSourceName returned error: %v", err)
			}
			if !strings.HasPrefix(got, tt.want) {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if _, err := (StoreConfig{Driver: "oracle"}).DataSourceName(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for unknown driver, got %v", err)
	}
}
