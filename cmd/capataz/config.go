package main

import (
	"crypto/subtle"
	"fmt"

	"github.com/spf13/viper"
	"github.com/srand/capataz/pkg/coordinator"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/store"
)

type Config struct {
	// Addresses to listen on for HTTP.
	ListenHttp []string `mapstructure:"listen_http"`
	// File receiving a copy of all log output.
	LogFile string `mapstructure:"log_file"`
	// Basic authentication credentials, user to password.
	// Routes are open when empty.
	Users map[string]string `mapstructure:"users"`

	Coordinator coordinator.Config     `mapstructure:"coordinator"`
	Store       store.Config           `mapstructure:"store"`
	Http        coordinator.HttpConfig `mapstructure:"http"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen_http", []string{"tcp://:8080"})
	coordinator.SetDefaults(v, "coordinator.")
	coordinator.SetHttpDefaults(v, "http.")
	store.NewConfig().SetDefaults(v, "store.")
}

func (c *Config) Validate() error {
	if len(c.ListenHttp) == 0 {
		return fmt.Errorf("At least one HTTP listen address is required")
	}
	if err := c.Coordinator.Validate(); err != nil {
		return err
	}
	return c.Store.Validate()
}

// Checks basic authentication credentials against the configured users.
func (c *Config) Authenticate(route, user, password string) bool {
	expected, ok := c.Users[user]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(password)) == 1
}

func (c *Config) Log(logger *log.Logger) {
	logger.Info("Capataz configuration:")
	logger.Infof("  HTTP listen addresses: %v", c.ListenHttp)
	logger.Infof("  Log file: %s", c.LogFile)
	logger.Infof("  Users: %d", len(c.Users))
	c.Coordinator.Log(logger)
	c.Store.Log(logger)
	c.Http.Log(logger)
}
