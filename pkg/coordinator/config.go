package coordinator

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/protocol"
)

// Coordinator parameters. The client side parameters are handed out
// to drudgers through the config endpoint.
type Config struct {
	// Number of drudgers per client.
	WorkerCount int `mapstructure:"worker_count"`
	// Clients use one drudger per CPU instead of WorkerCount.
	AdjustWorkerCount bool `mapstructure:"adjust_worker_count"`
	// Where drudgers execute jobs.
	Isolation protocol.Isolation `mapstructure:"isolation"`
	// Client transport retry policy.
	MaxRetries int           `mapstructure:"max_retries"`
	MinDelay   time.Duration `mapstructure:"min_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`

	// Time a drudger should spend on one task.
	DesiredEvaluationTime time.Duration `mapstructure:"desired_evaluation_time"`
	// Maximum number of jobs per task.
	MaxTaskSize int `mapstructure:"max_task_size"`
	// Decay of the job execution time estimate.
	EvaluationTimeGainFactor float64 `mapstructure:"evaluation_time_gain_factor"`
}

func NewConfig() *Config {
	return &Config{
		WorkerCount:              2,
		AdjustWorkerCount:        true,
		Isolation:                protocol.IsolationIsolated,
		MaxRetries:               100,
		MinDelay:                 100 * time.Millisecond,
		MaxDelay:                 15 * time.Minute,
		DesiredEvaluationTime:    10 * time.Second,
		MaxTaskSize:              50,
		EvaluationTimeGainFactor: 0.9,
	}
}

// Registers the defaults of all keys with viper.
func SetDefaults(v *viper.Viper, prefix string) {
	defaults := NewConfig()
	v.SetDefault(prefix+"worker_count", defaults.WorkerCount)
	v.SetDefault(prefix+"adjust_worker_count", defaults.AdjustWorkerCount)
	v.SetDefault(prefix+"isolation", string(defaults.Isolation))
	v.SetDefault(prefix+"max_retries", defaults.MaxRetries)
	v.SetDefault(prefix+"min_delay", defaults.MinDelay)
	v.SetDefault(prefix+"max_delay", defaults.MaxDelay)
	v.SetDefault(prefix+"desired_evaluation_time", defaults.DesiredEvaluationTime)
	v.SetDefault(prefix+"max_task_size", defaults.MaxTaskSize)
	v.SetDefault(prefix+"evaluation_time_gain_factor", defaults.EvaluationTimeGainFactor)
}

func (c *Config) Validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker_count must be positive, got %d", c.WorkerCount)
	}
	if err := c.Isolation.Validate(); err != nil {
		return err
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be positive, got %d", c.MaxRetries)
	}
	if c.MinDelay <= 0 || c.MaxDelay < c.MinDelay {
		return fmt.Errorf("invalid retry delays: min %v, max %v", c.MinDelay, c.MaxDelay)
	}
	if c.DesiredEvaluationTime <= 0 {
		return fmt.Errorf("desired_evaluation_time must be positive, got %v", c.DesiredEvaluationTime)
	}
	if c.MaxTaskSize < 1 {
		return fmt.Errorf("max_task_size must be positive, got %d", c.MaxTaskSize)
	}
	if c.EvaluationTimeGainFactor <= 0 || c.EvaluationTimeGainFactor > 1 {
		return fmt.Errorf("evaluation_time_gain_factor must be in (0, 1], got %v", c.EvaluationTimeGainFactor)
	}
	return nil
}

func (c *Config) Log(logger *log.Logger) {
	logger.Info("Coordinator configuration:")
	logger.Infof("  Worker count: %d (adjust: %v)", c.WorkerCount, c.AdjustWorkerCount)
	logger.Infof("  Isolation: %s", c.Isolation)
	logger.Infof("  Retries: %d (%v - %v)", c.MaxRetries, c.MinDelay, c.MaxDelay)
	logger.Infof("  Desired evaluation time: %v", c.DesiredEvaluationTime)
	logger.Infof("  Max task size: %d", c.MaxTaskSize)
	logger.Infof("  Evaluation time gain factor: %v", c.EvaluationTimeGainFactor)
}

// Returns the parameters handed out to drudgers.
func (c *Config) ClientConfig() *protocol.ClientConfig {
	return &protocol.ClientConfig{
		WorkerCount:       c.WorkerCount,
		AdjustWorkerCount: c.AdjustWorkerCount,
		Isolation:         c.Isolation,
		MaxRetries:        c.MaxRetries,
		MinDelay:          protocol.Duration(c.MinDelay),
		MaxDelay:          protocol.Duration(c.MaxDelay),
	}
}
