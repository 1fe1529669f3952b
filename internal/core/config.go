package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to the session
// manager, its online backends and the command line tools.
type Config struct {
	// Full path to file to which logs will be written. Blank will write to stdout.
	LogFilePath string `mapstructure:"log_file_path"`
	// Minimum level of a log required to be written. Options: debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`

	Online struct {
		// Name of the registered online subsystem to use (NULL for LAN play).
		Subsystem string `mapstructure:"subsystem"`
		// When set, logins use the credentials supplied by the environment
		// instead of the fallback flow.
		AuthType string `mapstructure:"auth_type"`
		// Credential type used when no auth type is supplied.
		FallbackAuthType string `mapstructure:"fallback_auth_type"`
		// Account used by auto-login and the account portal flow.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Index of the local user sessions are scoped to.
		LocalUser int `mapstructure:"local_user"`
	} `mapstructure:"online"`

	Sessions struct {
		// Connection limit used when a caller doesn't request one.
		DefaultPublicConnections int `mapstructure:"default_public_connections"`
		// Result cap used by the browse command when none is given.
		DefaultMaxResults int `mapstructure:"default_max_results"`
	} `mapstructure:"sessions"`

	Database struct {
		// Either sqlite or postgres.
		Engine string `mapstructure:"engine"`
		// Name of the sqlite database file, relative to the config directory.
		Filename string `mapstructure:"filename"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Name     string `mapstructure:"name"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Directory struct {
		// Address advertised to players joining a hosted session.
		ConnectHost string `mapstructure:"connect_host"`
		ConnectPort int    `mapstructure:"connect_port"`
		// How long a login stays valid without session activity.
		PresenceTTL time.Duration `mapstructure:"presence_ttl"`
	} `mapstructure:"directory"`

	Debugging struct {
		// Enable extra info-providing mechanisms (pprof, state dumps).
		Enabled bool `mapstructure:"enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`

	configDir string
}

const envVarPrefix = "MPSESSIONS"

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_file_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("online.subsystem", "NULL")
	v.SetDefault("online.auth_type", "")
	v.SetDefault("online.fallback_auth_type", "accountportal")
	v.SetDefault("online.username", "")
	v.SetDefault("online.password", "")
	v.SetDefault("online.local_user", 0)
	v.SetDefault("sessions.default_public_connections", 4)
	v.SetDefault("sessions.default_max_results", 1000)
	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.filename", "mpsessions.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "mpsessions")
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("directory.connect_host", "127.0.0.1")
	v.SetDefault("directory.connect_port", 7777)
	v.SetDefault("directory.presence_ttl", "30m")
	v.SetDefault("debugging.enabled", false)
	v.SetDefault("debugging.pprof_port", 6060)
	v.SetDefault("debugging.database_logging_enabled", false)
}

// LoadConfig reads the file named config.yaml under configPath, if there is one,
// on top of the defaults. Every option can be overridden by an environment
// variable, e.g. database.host through MPSESSIONS_DATABASE_HOST.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range v.AllKeys() {
		envVar := envVarPrefix + "_" + strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", k, envVar, err)
		}
	}

	config := &Config{configDir: configPath}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config object: %w", err)
	}
	return config, nil
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a database URL generated from the provided config values.
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

// QualifiedPath resolves a path relative to the directory the config was loaded
// from. Absolute paths are returned unchanged.
func (c *Config) QualifiedPath(path string) string {
	if filepath.IsAbs(path) || c.configDir == "" {
		return path
	}
	return filepath.Join(c.configDir, path)
}

// ConnectAddress is the address players use to reach a session hosted here.
func (c *Config) ConnectAddress() string {
	return fmt.Sprintf("%s:%d", c.Directory.ConnectHost, c.Directory.ConnectPort)
}
