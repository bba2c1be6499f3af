package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dcrodman/squirrelay/pkg/protocol"
)

// Config contains every configuration option available to the relay server
// and its supporting services.
type Config struct {
	// Hostname or IP address on which the servers will listen for connections.
	Hostname string `mapstructure:"hostname"`

	Net struct {
		// Port on which the websocket frontend listens.
		Port int `mapstructure:"port"`
		// Shared key a client must present to connect. Blank disables the check.
		ConnectionKey string `mapstructure:"connection_key"`
		// Maximum number of concurrent connections the server will allow.
		MaxClients int `mapstructure:"max_clients"`
		// Period of the relay loop.
		TickInterval time.Duration `mapstructure:"tick_interval"`
		// How often connected peers are pinged to measure latency.
		PingInterval time.Duration `mapstructure:"ping_interval"`
		// Peers that stay silent this long are disconnected.
		DisconnectTimeout time.Duration `mapstructure:"disconnect_timeout"`
		// Time a new connection has to send Hello.
		HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
		// Datagrams buffered per peer before it is considered too slow.
		SendQueueSize int `mapstructure:"send_queue_size"`
	} `mapstructure:"net"`

	// Filled from the room section by LoadConfig.
	Room protocol.RoomConfig `mapstructure:"-"`

	Logging struct {
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
		// Per-component switches.
		ServerLogging   bool `mapstructure:"server_logging"`
		RoomListLogging bool `mapstructure:"room_list_logging"`
		RoomLogging     bool `mapstructure:"room_logging"`
		// Dump every decoded client message at debug level.
		MessageLogging bool `mapstructure:"message_logging"`
	} `mapstructure:"logging"`

	Web struct {
		// HTTP port serving /metrics and /healthz.
		HTTPPort int `mapstructure:"http_port"`
	} `mapstructure:"web"`

	Database struct {
		// Either "sqlite" or "postgres".
		Engine string `mapstructure:"engine"`
		// SQLite database file.
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on db_host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database in Postgres.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to ${db_name}.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	History struct {
		// Record every finished game to the database.
		Enabled bool `mapstructure:"enabled"`
		// Finished games queued for the recorder before new ones are dropped.
		BufferSize int `mapstructure:"buffer_size"`
	} `mapstructure:"history"`

	Debugging struct {
		// Start a pprof server on localhost.
		PprofEnabled bool `mapstructure:"pprof_enabled"`
		// Port on which the pprof server will be started.
		PprofPort int `mapstructure:"pprof_port"`
	} `mapstructure:"debugging"`
}

// roomConfig is the room section of config.yaml.
type roomConfig struct {
	InvisibleEnabled               bool        `mapstructure:"invisible_enabled"`
	RoomMessageEnabled             bool        `mapstructure:"room_message_enabled"`
	PasswordEnabled                bool        `mapstructure:"password_enabled"`
	EnterWhilePlayingAllowed       bool        `mapstructure:"enter_while_playing_allowed"`
	TickMessageEnabled             bool        `mapstructure:"tick_message_enabled"`
	DisposeSecondsWhenNoMember     float32     `mapstructure:"dispose_seconds_when_no_member"`
	UpdatingDisposeIntervalSeconds float32     `mapstructure:"updating_dispose_interval_seconds"`
	NumberOfPlayersRange           rangeConfig `mapstructure:"number_of_players_range"`
	GeneratedRoomIDRange           rangeConfig `mapstructure:"generated_room_id_range"`
}

type rangeConfig struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

func (r roomConfig) toProtocol() protocol.RoomConfig {
	return protocol.RoomConfig{
		InvisibleEnabled:               r.InvisibleEnabled,
		RoomMessageEnabled:             r.RoomMessageEnabled,
		PasswordEnabled:                r.PasswordEnabled,
		EnterWhilePlayingAllowed:       r.EnterWhilePlayingAllowed,
		TickMessageEnabled:             r.TickMessageEnabled,
		DisposeSecondsWhenNoMember:     r.DisposeSecondsWhenNoMember,
		UpdatingDisposeIntervalSeconds: r.UpdatingDisposeIntervalSeconds,
		NumberOfPlayersRange:           protocol.Range(r.NumberOfPlayersRange),
		GeneratedRoomIDRange:           protocol.Range(r.GeneratedRoomIDRange),
	}
}

const envVarPrefix = "SQUIRRELAY"

var defaults = map[string]interface{}{
	"hostname":                               "0.0.0.0",
	"net.port":                               11000,
	"net.connection_key":                     "",
	"net.max_clients":                        32,
	"net.tick_interval":                      "15ms",
	"net.ping_interval":                      "1s",
	"net.disconnect_timeout":                 "5s",
	"net.handshake_timeout":                  "5s",
	"net.send_queue_size":                    256,
	"room.invisible_enabled":                 true,
	"room.room_message_enabled":              true,
	"room.password_enabled":                  true,
	"room.enter_while_playing_allowed":       false,
	"room.tick_message_enabled":              false,
	"room.dispose_seconds_when_no_member":    15,
	"room.updating_dispose_interval_seconds": 5,
	"room.number_of_players_range.min":       2,
	"room.number_of_players_range.max":       8,
	"room.generated_room_id_range.min":       1000,
	"room.generated_room_id_range.max":       9999,
	"logging.log_level":                      "info",
	"logging.log_file_path":                  "",
	"logging.server_logging":                 true,
	"logging.room_list_logging":              true,
	"logging.room_logging":                   true,
	"logging.message_logging":                false,
	"web.http_port":                          11001,
	"database.engine":                        "sqlite",
	"database.filename":                      "squirrelay.db",
	"database.host":                          "localhost",
	"database.port":                          5432,
	"database.name":                          "squirrelay",
	"database.username":                      "",
	"database.password":                      "",
	"database.sslmode":                       "disable",
	"history.enabled":                        false,
	"history.buffer_size":                    64,
	"debugging.pprof_enabled":                false,
	"debugging.pprof_port":                   6060,
}

// LoadConfig reads config.yaml from configPath, applies defaults and
// SQUIRRELAY_* environment overrides, and validates the result.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("no config file in path %s", configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range v.AllKeys() {
		envVar := envVarPrefix + "_" + strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVar); err != nil {
			return nil, fmt.Errorf("binding %s to %s: %w", k, envVar, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unmarshaling config object: %w", err)
	}
	var sections struct {
		Room roomConfig `mapstructure:"room"`
	}
	if err := v.Unmarshal(&sections); err != nil {
		return nil, fmt.Errorf("unmarshaling room config: %w", err)
	}
	config.Room = sections.Room.toProtocol()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects configurations the relay can't run with.
func (c *Config) Validate() error {
	players := c.Room.NumberOfPlayersRange
	if players.Min < 1 || players.Min > players.Max {
		return fmt.Errorf("invalid room.number_of_players_range %d..%d", players.Min, players.Max)
	}
	// The number of ids in the range has to fit in an int.
	ids := c.Room.GeneratedRoomIDRange
	if span := ids.Max - ids.Min + 1; ids.Min > ids.Max || span <= 0 {
		return fmt.Errorf("invalid room.generated_room_id_range %d..%d", ids.Min, ids.Max)
	}
	if c.Net.TickInterval <= 0 {
		return fmt.Errorf("net.tick_interval must be positive, got %v", c.Net.TickInterval)
	}
	if c.Net.MaxClients < 1 {
		return fmt.Errorf("net.max_clients must be at least 1, got %d", c.Net.MaxClients)
	}
	switch c.Database.Engine {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database.engine %q", c.Database.Engine)
	}
	return nil
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a Postgres connection string generated from the provided config values.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// DataSource is what data.Open expects for the configured engine: the
// Postgres connection string or the SQLite filename.
func (c *Config) DataSource() string {
	if c.Database.Engine == "postgres" {
		return c.DatabaseURL()
	}
	return c.Database.Filename
}

// ListenAddress is where the websocket frontend listens.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Net.Port)
}

// WebAddress is where /metrics and /healthz are served.
func (c *Config) WebAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Web.HTTPPort)
}
