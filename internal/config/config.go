package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode      string          `mapstructure:"mode"`
	Port      int             `mapstructure:"port"`
	Secret    string          `mapstructure:"secret"`
	LogLevel  string          `mapstructure:"log_level"`
	Signaling SignalingConfig `mapstructure:"signaling"`
	Client    ClientConfig    `mapstructure:"client"`
}

type SignalingConfig struct {
	// StrictSender rejects messages whose from differs from the session's joined user.
	StrictSender bool          `mapstructure:"strict_sender"`
	SendRate     float64       `mapstructure:"send_rate"`
	SendBurst    int           `mapstructure:"send_burst"`
	PushInterval time.Duration `mapstructure:"push_interval"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
}

type ClientConfig struct {
	ServerURL         string        `mapstructure:"server_url"`
	Transport         string        `mapstructure:"transport"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ICEServers        []string      `mapstructure:"ice_servers"`
	SpeakingInterval  time.Duration `mapstructure:"speaking_interval"`
	SpeakingThreshold float64       `mapstructure:"speaking_threshold"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

const (
	TransportPoll = "poll"
	TransportPush = "push"
)

func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "chorus-dev-secret")
	v.SetDefault("log_level", "info")

	v.SetDefault("signaling.strict_sender", false)
	v.SetDefault("signaling.send_rate", 50)
	v.SetDefault("signaling.send_burst", 100)
	v.SetDefault("signaling.push_interval", "1s")
	v.SetDefault("signaling.read_limit", 32768)
	v.SetDefault("signaling.ping_period", "54s")

	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("client.transport", TransportPoll)
	v.SetDefault("client.poll_interval", "1s")
	v.SetDefault("client.ice_servers", []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"})
	v.SetDefault("client.speaking_interval", "100ms")
	v.SetDefault("client.speaking_threshold", 30)
	v.SetDefault("client.request_timeout", "5s")
}

func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith reads config/config.<CONFIG_ENV>.yaml into v (flags already bound
// to v take precedence) and decodes the result.
func LoadWith(v *viper.Viper) (*Config, error) {
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("CHORUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Fprintf(os.Stderr, "loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Client.Transport {
	case TransportPoll, TransportPush:
	default:
		return fmt.Errorf("client.transport must be %q or %q, got %q", TransportPoll, TransportPush, c.Client.Transport)
	}
	if c.Client.PollInterval <= 0 {
		return fmt.Errorf("client.poll_interval must be positive, got %s", c.Client.PollInterval)
	}
	if c.Signaling.SendRate <= 0 || c.Signaling.SendBurst <= 0 {
		return fmt.Errorf("signaling.send_rate and signaling.send_burst must be positive")
	}
	return nil
}
