package core

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dcrodman/squirrelay/pkg/protocol"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0644); err != nil {
		t.Fatalf("error writing config file: %v", err)
	}
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "hostname: 127.0.0.1\n"))
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}

	if cfg.Hostname != "127.0.0.1" {
		t.Errorf("Hostname = %s, want 127.0.0.1", cfg.Hostname)
	}
	if cfg.Net.TickInterval != 15*time.Millisecond {
		t.Errorf("TickInterval = %v, want 15ms", cfg.Net.TickInterval)
	}
	if cfg.Net.PingInterval != time.Second || cfg.Net.DisconnectTimeout != 5*time.Second {
		t.Errorf("unexpected ping/disconnect defaults: %v/%v", cfg.Net.PingInterval, cfg.Net.DisconnectTimeout)
	}
	if cfg.Net.MaxClients != 32 {
		t.Errorf("MaxClients = %d, want 32", cfg.Net.MaxClients)
	}

	wantRoom := protocol.RoomConfig{
		InvisibleEnabled:               true,
		RoomMessageEnabled:             true,
		PasswordEnabled:                true,
		DisposeSecondsWhenNoMember:     15,
		UpdatingDisposeIntervalSeconds: 5,
		NumberOfPlayersRange:           protocol.Range{Min: 2, Max: 8},
		GeneratedRoomIDRange:           protocol.Range{Min: 1000, Max: 9999},
	}
	if diff := cmp.Diff(wantRoom, cfg.Room); diff != "" {
		t.Errorf("unexpected room defaults; diff:\n%s", diff)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := writeConfig(t, `
net:
  tick_interval: 30ms
  connection_key: hunter2
room:
  tick_message_enabled: true
  number_of_players_range:
    min: 3
    max: 4
database:
  engine: postgres
`)
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}

	if cfg.Net.TickInterval != 30*time.Millisecond {
		t.Errorf("TickInterval = %v, want 30ms", cfg.Net.TickInterval)
	}
	if cfg.Net.ConnectionKey != "hunter2" {
		t.Errorf("ConnectionKey = %q, want hunter2", cfg.Net.ConnectionKey)
	}
	if !cfg.Room.TickMessageEnabled {
		t.Errorf("expected tick messages to be enabled")
	}
	if diff := cmp.Diff(protocol.Range{Min: 3, Max: 4}, cfg.Room.NumberOfPlayersRange); diff != "" {
		t.Errorf("unexpected player range; diff:\n%s", diff)
	}
	if cfg.Database.Engine != "postgres" || cfg.Database.Port != 5432 {
		t.Errorf("unexpected database config: %+v", cfg.Database)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SQUIRRELAY_NET_MAX_CLIENTS", "4")
	t.Setenv("SQUIRRELAY_ROOM_NUMBER_OF_PLAYERS_RANGE_MAX", "6")
	t.Setenv("SQUIRRELAY_LOGGING_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(writeConfig(t, "net:\n  max_clients: 10\n"))
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}

	if cfg.Net.MaxClients != 4 {
		t.Errorf("MaxClients = %d, want 4", cfg.Net.MaxClients)
	}
	if cfg.Room.NumberOfPlayersRange.Max != 6 {
		t.Errorf("NumberOfPlayersRange.Max = %d, want 6", cfg.Room.NumberOfPlayersRange.Max)
	}
	if cfg.Logging.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.Logging.LogLevel)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{
			name:     "inverted player range",
			contents: "room:\n  number_of_players_range:\n    min: 5\n    max: 3\n",
		},
		{
			name:     "zero minimum players",
			contents: "room:\n  number_of_players_range:\n    min: 0\n",
		},
		{
			name:     "inverted id range",
			contents: "room:\n  generated_room_id_range:\n    min: 10\n    max: 1\n",
		},
		{
			name:     "zero tick interval",
			contents: "net:\n  tick_interval: 0s\n",
		},
		{
			name:     "unknown database engine",
			contents: "database:\n  engine: mongo\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.contents)); err == nil {
				t.Errorf("expected LoadConfig() to fail")
			}
		})
	}
}

func TestConfig_ValidateRoomIDRange(t *testing.T) {
	tests := []struct {
		name    string
		ids     protocol.Range
		wantErr bool
	}{
		{"single id", protocol.Range{Min: 7, Max: 7}, false},
		{"negative ids", protocol.Range{Min: -10, Max: -1}, false},
		{"largest span", protocol.Range{Min: 1, Max: math.MaxInt}, false},
		{"span overflows", protocol.Range{Min: 0, Max: math.MaxInt}, true},
		{"full int range", protocol.Range{Min: math.MinInt, Max: math.MaxInt}, true},
		{"inverted", protocol.Range{Min: 2, Max: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Net.TickInterval = 15 * time.Millisecond
			cfg.Net.MaxClients = 1
			cfg.Database.Engine = "sqlite"
			cfg.Room.NumberOfPlayersRange = protocol.Range{Min: 2, Max: 4}
			cfg.Room.GeneratedRoomIDRange = tt.ids

			err := cfg.Validate()
			if gotErr := err != nil; gotErr != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Errorf("expected an error for a directory without config.yaml")
	}
}

func TestConfig_DatabaseURL(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.Name = "testdb"
	cfg.Database.Username = "testuser"
	cfg.Database.Password = "testpassword"
	cfg.Database.SSLMode = "disable"

	url := cfg.DatabaseURL()
	expected := "host=localhost port=5432 dbname=testdb user=testuser password=testpassword sslmode=disable"
	if url != expected {
		t.Errorf("DatabaseURL() want = %s, got = %s", expected, url)
	}

	if got := cfg.DataSource(); got != "" {
		t.Errorf("DataSource() for the default engine = %q, want the (empty) filename", got)
	}
	cfg.Database.Engine = "postgres"
	if got := cfg.DataSource(); got != expected {
		t.Errorf("DataSource() for postgres = %s, want %s", got, expected)
	}
}

func TestConfig_Addresses(t *testing.T) {
	cfg := &Config{Hostname: "127.0.0.1"}
	cfg.Net.Port = 11000
	cfg.Web.HTTPPort = 11001

	if got := cfg.ListenAddress(); got != "127.0.0.1:11000" {
		t.Errorf("ListenAddress() = %s", got)
	}
	if got := cfg.WebAddress(); got != "127.0.0.1:11001" {
		t.Errorf("WebAddress() = %s", got)
	}
}
