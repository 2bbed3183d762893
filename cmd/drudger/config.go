package main

import (
	"github.com/spf13/viper"
	"github.com/srand/capataz/pkg/utils"
	"github.com/srand/capataz/pkg/worker"
)

type Config struct {
	worker.Config `mapstructure:",squash"`

	// File receiving a copy of all log output.
	LogFile string `mapstructure:"log_file"`
}

func LoadConfig(v *viper.Viper) (*Config, error) {
	worker.SetDefaults(v, "")

	config := &Config{}
	if err := utils.UnmarshalConfig(v, config); err != nil {
		return nil, err
	}

	return config, nil
}
