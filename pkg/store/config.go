package store

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/srand/capataz/pkg/log"
)

const (
	TypeMemory = "memory"
	TypeFile   = "file"
	TypeSQLite = "sqlite"

	DefaultMaxScheduled = 5000
	DefaultFilePath     = "./tmp"
	DefaultSQLitePath   = "capataz.db"
)

type Config struct {
	// The store variant: memory, file or sqlite.
	Type string `mapstructure:"type"`

	// Maximum number of pending jobs.
	MaxScheduled int `mapstructure:"max_scheduled"`

	// Memory store only: keep settled jobs.
	KeepResolved bool `mapstructure:"keep_resolved"`
	KeepRejected bool `mapstructure:"keep_rejected"`

	// Folder of the file store or database of the sqlite store.
	Path string `mapstructure:"path"`
}

func NewConfig() *Config {
	return &Config{
		Type:         TypeMemory,
		MaxScheduled: DefaultMaxScheduled,
	}
}

func (c *Config) SetDefaults(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+"type", TypeMemory)
	v.SetDefault(prefix+"max_scheduled", DefaultMaxScheduled)
	v.SetDefault(prefix+"keep_resolved", false)
	v.SetDefault(prefix+"keep_rejected", false)
}

func (c *Config) Validate() error {
	switch c.Type {
	case TypeMemory, TypeFile, TypeSQLite:
	default:
		return fmt.Errorf("invalid store type: %q", c.Type)
	}
	if c.MaxScheduled < 1 {
		return fmt.Errorf("store max_scheduled must be positive, got %d", c.MaxScheduled)
	}
	return nil
}

func (c *Config) Log(logger *log.Logger) {
	logger.Info("Store:")
	logger.Info("  Type:", c.Type)
	logger.Info("  Max scheduled:", c.MaxScheduled)
	switch c.Type {
	case TypeMemory:
		logger.Info("  Keep resolved:", c.KeepResolved)
		logger.Info("  Keep rejected:", c.KeepRejected)
	default:
		logger.Info("  Path:", c.Path)
	}
}

// Creates the configured store.
func New(config *Config, opts ...Option) (Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case TypeFile:
		s, err := NewFileStore(afero.NewOsFs(), config, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil

	case TypeSQLite:
		s, err := NewSQLiteStore(config, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	return NewMemoryStore(config, opts...), nil
}
