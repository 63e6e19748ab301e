package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string        `mapstructure:"mode" validate:"oneof=debug release test"`
	Port     int           `mapstructure:"port" validate:"min=1,max=65535"`
	Host     string        `mapstructure:"host"`
	LogLevel string        `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	NodeID   string        `mapstructure:"node_id" validate:"required"`
	Cluster  ClusterConfig `mapstructure:"cluster"`
	Notify   NotifyConfig  `mapstructure:"notify"`
	WebRTC   WebRTCConfig  `mapstructure:"webrtc"`
	HLS      HLSConfig     `mapstructure:"hls"`
}

type ClusterConfig struct {
	Transport       string        `mapstructure:"transport" validate:"oneof=local redis"`
	RedisAddr       string        `mapstructure:"redis_addr" validate:"required_if=Transport redis"`
	ResourceTimeout time.Duration `mapstructure:"resource_timeout" validate:"gt=0"`
	CallTimeout     time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
	Heartbeat       time.Duration `mapstructure:"heartbeat" validate:"gt=0"`
	MemberTTL       time.Duration `mapstructure:"member_ttl" validate:"gtfield=Heartbeat"`
}

type NotifyConfig struct {
	RedisAddr string `mapstructure:"redis_addr"`
}

type WebRTCConfig struct {
	STUNServers    []string `mapstructure:"stun_servers"`
	TURNURLs       []string `mapstructure:"turn_urls"`
	TURNUsername   string   `mapstructure:"turn_username"`
	TURNCredential string   `mapstructure:"turn_credential"`
	PortMin        uint16   `mapstructure:"port_min"`
	PortMax        uint16   `mapstructure:"port_max" validate:"omitempty,gtefield=PortMin"`
	DTLSCertFile   string   `mapstructure:"dtls_cert_file" validate:"required_with=DTLSKeyFile"`
	DTLSKeyFile    string   `mapstructure:"dtls_key_file" validate:"required_with=DTLSCertFile"`
}

type HLSConfig struct {
	OutputDir string `mapstructure:"output_dir" validate:"required"`
}

// Load reads config/config.<env>.yaml; env falls back to CONFIG_ENV, then "dev".
// A missing file is not an error, defaults and CONDUCTOR_* variables still apply.
func Load(env string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if env == "" {
		env = os.Getenv("CONFIG_ENV")
	}
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.SetEnvPrefix("CONDUCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "conductor"
	}

	v.SetDefault("mode", "release")
	v.SetDefault("port", 5002)
	v.SetDefault("host", "localhost:5002")
	v.SetDefault("log_level", "info")
	v.SetDefault("node_id", hostname)
	v.SetDefault("cluster.transport", "local")
	v.SetDefault("cluster.redis_addr", "")
	v.SetDefault("cluster.resource_timeout", "1s")
	v.SetDefault("cluster.call_timeout", "5s")
	v.SetDefault("cluster.heartbeat", "2s")
	v.SetDefault("cluster.member_ttl", "6s")
	v.SetDefault("notify.redis_addr", "")
	v.SetDefault("webrtc.stun_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("webrtc.turn_urls", []string{})
	v.SetDefault("webrtc.turn_username", "")
	v.SetDefault("webrtc.turn_credential", "")
	v.SetDefault("webrtc.port_min", 0)
	v.SetDefault("webrtc.port_max", 0)
	v.SetDefault("webrtc.dtls_cert_file", "")
	v.SetDefault("webrtc.dtls_key_file", "")
	v.SetDefault("hls.output_dir", "./hls_output")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("node_id", cfg.NodeID).
		Str("cluster", cfg.Cluster.Transport).
		Msg("config ready")
	return &cfg, nil
}
