package worker

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/protocol"
	"github.com/srand/capataz/pkg/utils"
)

type Config struct {
	// Base URL of the coordinator routes.
	CoordinatorUri string `mapstructure:"coordinator_uri"`

	// Routes relative to the coordinator URI.
	TaskRoute   string `mapstructure:"task_route"`
	ConfigRoute string `mapstructure:"config_route"`

	// Basic authentication credentials, if the coordinator requires them.
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// Number of drudgers. The coordinator decides when zero.
	Workers int `mapstructure:"workers"`

	// Overrides the isolation policy of the coordinator when set.
	Isolation protocol.Isolation `mapstructure:"isolation"`

	// Timeout of a single HTTP request.
	Timeout time.Duration `mapstructure:"timeout"`

	// Retry policy used to fetch the coordinator configuration.
	MaxRetries int           `mapstructure:"max_retries"`
	MinDelay   time.Duration `mapstructure:"min_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`

	// Program executing isolated jobs. Defaults to the running binary.
	Executable string `mapstructure:"executable"`

	// Resource limits of isolated jobs. Zero means unlimited.
	CpuTime     time.Duration  `mapstructure:"cpu_time"`
	MemoryLimit utils.ByteSize `mapstructure:"memory_limit"`
}

func NewConfig() *Config {
	return &Config{
		CoordinatorUri: "http://localhost:8080/capataz",
		TaskRoute:      "task.json",
		ConfigRoute:    "config.json",
		Timeout:        time.Minute,
		MaxRetries:     50,
		MinDelay:       100 * time.Millisecond,
		MaxDelay:       2 * time.Minute,
	}
}

func SetDefaults(v *viper.Viper, prefix string) {
	defaults := NewConfig()
	v.SetDefault(prefix+"coordinator_uri", defaults.CoordinatorUri)
	v.SetDefault(prefix+"task_route", defaults.TaskRoute)
	v.SetDefault(prefix+"config_route", defaults.ConfigRoute)
	v.SetDefault(prefix+"timeout", defaults.Timeout)
	v.SetDefault(prefix+"max_retries", defaults.MaxRetries)
	v.SetDefault(prefix+"min_delay", defaults.MinDelay)
	v.SetDefault(prefix+"max_delay", defaults.MaxDelay)
}

// Checks if the drudger configuration is valid.
func (c *Config) Validate() error {
	if c.CoordinatorUri == "" {
		return errors.New("A coordinator URI is required")
	}

	u, err := url.Parse(c.CoordinatorUri)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("The coordinator URI is not a valid HTTP URI: %s", c.CoordinatorUri)
	}

	if c.Workers < 0 {
		return errors.New("The worker count must not be negative")
	}

	if c.Isolation != "" {
		if err := c.Isolation.Validate(); err != nil {
			return err
		}
	}

	if c.MaxRetries < 1 {
		return errors.New("The retry count must be greater than zero")
	}

	if c.MinDelay <= 0 || c.MaxDelay < c.MinDelay {
		return fmt.Errorf("Invalid retry delays: min %v, max %v", c.MinDelay, c.MaxDelay)
	}

	if c.CpuTime < 0 || c.MemoryLimit < 0 {
		return errors.New("Resource limits must not be negative")
	}

	return nil
}

func (c *Config) TaskUrl() (string, error) {
	return url.JoinPath(c.CoordinatorUri, c.TaskRoute)
}

func (c *Config) ConfigUrl() (string, error) {
	return url.JoinPath(c.CoordinatorUri, c.ConfigRoute)
}

func (c *Config) Log(logger *log.Logger) {
	logger.Info("Drudger configuration:")
	logger.Infof("  coordinator_uri = %s", c.CoordinatorUri)
	logger.Infof("  task_route = %s", c.TaskRoute)
	logger.Infof("  config_route = %s", c.ConfigRoute)
	logger.Infof("  workers = %d", c.Workers)
	logger.Infof("  isolation = %s", c.Isolation)
	logger.Infof("  timeout = %v", c.Timeout)
	logger.Infof("  cpu_time = %v", c.CpuTime)
	logger.Infof("  memory_limit = %v", c.MemoryLimit)
}
