// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Program configuration: defaults, environment and file sources through
// viper, validation through go-playground/validator.

package control

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/momentics/hioload-sock/internal/sockaddr"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. HIOLOAD_SOCK_PORT.
const EnvPrefix = "HIOLOAD_SOCK"

// Config is the settings shared by the example programs and servers.
type Config struct {
	Address     string `mapstructure:"address" validate:"required,ipv4addr"`
	Port        int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	BufferSize  int    `mapstructure:"buffer_size" validate:"gte=1,lte=65536"`
	Message     string `mapstructure:"message"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	MetricsAddr string `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
	// ShutdownTimeout bounds how long servers wait for handlers on exit.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	Backoff         BackoffConfig `mapstructure:"backoff"`
}

// BackoffConfig bounds the pause between failed accepts.
type BackoffConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Min     time.Duration `mapstructure:"min" validate:"gt=0"`
	Max     time.Duration `mapstructure:"max" validate:"gtefield=Min"`
	Factor  float64       `mapstructure:"factor" validate:"gte=1"`
	Jitter  bool          `mapstructure:"jitter"`
}

// Defaults used by the example programs: port 8080, 1 KiB buffers.
var Defaults = map[string]any{
	"address":          "127.0.0.1",
	"port":             8080,
	"buffer_size":      1024,
	"message":          "Hello from client!",
	"log_level":        "info",
	"metrics_addr":     "",
	"shutdown_timeout": 10 * time.Second,
	"backoff.enabled":  false,
	"backoff.min":      10 * time.Millisecond,
	"backoff.max":      time.Second,
	"backoff.factor":   2.0,
	"backoff.jitter":   true,
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	for k, val := range Defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file into v and decodes a validated Config.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}
	return Decode(v)
}

// Decode validates the current state of v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("ipv4addr", validateIPv4Addr)
	return v
}

// Accepts exactly what the transport accepts: dotted IPv4 or a wildcard.
func validateIPv4Addr(fl validator.FieldLevel) bool {
	_, err := sockaddr.Resolve("validate", fl.Field().String(), 0)
	return err == nil
}

// Validate checks field ranges and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}
