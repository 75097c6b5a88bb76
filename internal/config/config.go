package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	envPrefix      = "HOTDROP"

	DefaultPort          = 8080
	DefaultServerHotkey  = "ctrl+shift+r"
	DefaultClientHotkey  = "ctrl+shift+s"
	DefaultServerHost    = "localhost"
	DefaultQueueCapacity = 10
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultMaxNameBytes  = 4096
	DefaultMaxPayload    = 1 << 30
	DefaultResponseBytes = 1024
)

var (
	ErrInvalidPort           = errors.New("port must be between 1 and 65535")
	ErrInvalidQueueCapacity  = errors.New("transfer.queue_capacity must be greater than 0")
	ErrInvalidPollInterval   = errors.New("transfer.poll_interval must be greater than 0")
	ErrInvalidResponseBuffer = errors.New("transfer.response_buffer must be greater than 0")
	ErrInvalidTimeout        = errors.New("timeouts cannot be negative")
	ErrMissingHotkey         = errors.New("server.hotkey and client.hotkey must be set")
)

// Config captures runtime settings for hotdrop.
type Config struct {
	Port     int            `mapstructure:"port"`
	Verbose  bool           `mapstructure:"verbose"`
	BaseDir  string         `mapstructure:"base_dir"`
	LogDir   string         `mapstructure:"log_dir"`
	Server   ServerConfig   `mapstructure:"server"`
	Client   ClientConfig   `mapstructure:"client"`
	Hotkey   HotkeyConfig   `mapstructure:"hotkey"`
	Transfer TransferConfig `mapstructure:"transfer"`
}

// ServerConfig holds receiver-only settings.
type ServerConfig struct {
	Hotkey   string `mapstructure:"hotkey"`
	Announce bool   `mapstructure:"announce"`
}

// ClientConfig holds sender-only settings.
type ClientConfig struct {
	Hotkey          string        `mapstructure:"hotkey"`
	Server          string        `mapstructure:"server"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	DiscoverTimeout time.Duration `mapstructure:"discover_timeout"`
}

// HotkeyConfig controls where triggers come from.
type HotkeyConfig struct {
	Global bool `mapstructure:"global"`
}

// TransferConfig bounds the wire protocol and the coordinator loop.
type TransferConfig struct {
	QueueCapacity   int           `mapstructure:"queue_capacity"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxNameBytes    uint32        `mapstructure:"max_name_bytes"`
	MaxPayloadBytes uint32        `mapstructure:"max_payload_bytes"`
	IOTimeout       time.Duration `mapstructure:"io_timeout"`
	ResponseBuffer  int           `mapstructure:"response_buffer"`
}

// SetDefaults registers every key with its default so env overrides resolve.
func SetDefaults(v *viper.Viper) {
	base, err := defaultBaseDir()
	if err != nil {
		base = ".hotdrop"
	}
	v.SetDefault("port", DefaultPort)
	v.SetDefault("verbose", false)
	v.SetDefault("base_dir", base)
	v.SetDefault("log_dir", filepath.Join(base, "logs"))
	v.SetDefault("server.hotkey", DefaultServerHotkey)
	v.SetDefault("server.announce", true)
	v.SetDefault("client.hotkey", DefaultClientHotkey)
	v.SetDefault("client.server", DefaultServerHost)
	v.SetDefault("client.dial_timeout", 5*time.Second)
	v.SetDefault("client.discover_timeout", 3*time.Second)
	v.SetDefault("hotkey.global", true)
	v.SetDefault("transfer.queue_capacity", DefaultQueueCapacity)
	v.SetDefault("transfer.poll_interval", DefaultPollInterval)
	v.SetDefault("transfer.max_name_bytes", DefaultMaxNameBytes)
	v.SetDefault("transfer.max_payload_bytes", DefaultMaxPayload)
	v.SetDefault("transfer.io_timeout", time.Duration(0))
	v.SetDefault("transfer.response_buffer", DefaultResponseBytes)
}

// Init prepares v to read HOTDROP_* variables and an optional config file.
// An explicit cfgFile must exist; the default $HOTDROP_HOME/config.yaml may be absent.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}
	base, err := defaultBaseDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(base)
	v.SetConfigName(configFileName)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.populateDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default assembles a usable configuration with sensible defaults.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	cfg.populateDerived()
	return cfg
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.Transfer.QueueCapacity <= 0 {
		return ErrInvalidQueueCapacity
	}
	if c.Transfer.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.Transfer.ResponseBuffer <= 0 {
		return ErrInvalidResponseBuffer
	}
	if c.Transfer.IOTimeout < 0 || c.Client.DialTimeout < 0 || c.Client.DiscoverTimeout < 0 {
		return ErrInvalidTimeout
	}
	if strings.TrimSpace(c.Server.Hotkey) == "" || strings.TrimSpace(c.Client.Hotkey) == "" {
		return ErrMissingHotkey
	}
	return nil
}

// EnsureDirectories prepares the filesystem layout required by hotdrop.
func (c *Config) EnsureDirectories() error {
	c.populateDerived()
	for _, dir := range []string{c.BaseDir, c.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// ServerAddress joins host with the transfer port. A host that already
// carries a port is returned unchanged.
func (c *Config) ServerAddress(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultServerHost
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), fmt.Sprintf("%d", c.Port))
}

func (c *Config) populateDerived() {
	if c.BaseDir == "" {
		base, _ := defaultBaseDir()
		c.BaseDir = base
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.BaseDir, "logs")
	}
	if strings.TrimSpace(c.Client.Server) == "" {
		c.Client.Server = DefaultServerHost
	}
}

func defaultBaseDir() (string, error) {
	if dir := os.Getenv("HOTDROP_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".hotdrop"), nil
}

// GetLocalIP tries to resolve a LAN-reachable IPv4 address.
func GetLocalIP() (string, error) {
	conn, err := net.Dial("udp", "198.51.100.1:80")
	if err != nil {
		return fallbackIP(), nil
	}
	defer conn.Close()
	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

func fallbackIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}
