package core

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to the proxy.
type Config struct {
	// Hostname or IP address on which the proxy will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Port on which the proxy will listen for connections.
	Port int `mapstructure:"port"`
	// Maximum number of concurrent connections the proxy will allow.
	MaxConnections int `mapstructure:"max_connections"`
	// Protocol version clients must report in their handshake to log in.
	ProtocolVersion int32 `mapstructure:"protocol_version"`

	ProxiedServer struct {
		// Hostname or IP address of the server the proxy fronts.
		Host string `mapstructure:"host"`
		// Port of the server the proxy fronts.
		Port int `mapstructure:"port"`
	} `mapstructure:"proxied_server"`

	Status struct {
		// Version name advertised in the server list (e.g. "1.20.4").
		VersionName string `mapstructure:"version_name"`
		// Message of the day shown in the server list.
		MOTD string `mapstructure:"motd"`
		// Player capacity advertised in the server list.
		MaxPlayers int `mapstructure:"max_players"`
		// Full path to a 64x64 PNG served as the server list icon. Blank omits it.
		FaviconPath string `mapstructure:"favicon_path"`
	} `mapstructure:"status"`

	Database struct {
		// Engine selects the backing database. Options: sqlite, postgres.
		Engine string `mapstructure:"engine"`
		// Path to the database file (sqlite only).
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on db_host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database in Postgres for the proxy.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to ${db_name}.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Logging struct {
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"logging"`

	Metrics struct {
		// Enable the Prometheus metrics endpoint.
		Enabled bool `mapstructure:"enabled"`
		// Port on which /metrics will be served.
		Port int `mapstructure:"port"`
	} `mapstructure:"metrics"`

	Debugging struct {
		// Enable the pprof HTTP server.
		PprofEnabled bool `mapstructure:"pprof_enabled"`
		// Port on which the pprof server will be started.
		PprofPort int `mapstructure:"pprof_port"`
		// Dump decoded packets to the debug log.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "PORTCULLIS"

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) *Config {
	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, viper.ConfigFileNotFoundError{}) {
			fmt.Printf("error reading config file: no config file in path %s", configPath)
		} else {
			fmt.Printf("error reading config file: %v", err)
		}
		os.Exit(1)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			fmt.Printf("error binding %s to %s", k, envVarPrefix+"_"+envVar)
			os.Exit(1)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		fmt.Printf("error unmarshaling config object: %v", err)
		os.Exit(1)
	}
	return config
}

// ListenAddress returns the host:port pair the proxy listener binds to.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

// ProxiedAddress returns the host:port pair of the server behind the proxy.
func (c *Config) ProxiedAddress() string {
	return net.JoinHostPort(c.ProxiedServer.Host, strconv.Itoa(c.ProxiedServer.Port))
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

// DataSource returns the engine-appropriate connection string for the
// configured database.
func (c *Config) DataSource() string {
	if c.Database.Engine == "sqlite" {
		return c.Database.Filename
	}
	return c.DatabaseURL()
}
