//go:build linux

package utils

import (
	"math"
	"time"

	"github.com/srand/capataz/pkg/log"
	"golang.org/x/sys/unix"
)

// Limits the CPU time and address space of the calling process.
// Zero values leave the corresponding limit unchanged.
func SetResourceLimits(cpuTime time.Duration, memory ByteSize) error {
	if cpuTime > 0 {
		seconds := uint64(math.Ceil(cpuTime.Seconds()))
		if err := unix.Setrlimit(unix.RLIMIT_CPU, &unix.Rlimit{Cur: seconds, Max: seconds}); err != nil {
			return err
		}
	}

	if memory > 0 {
		if err := unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: uint64(memory), Max: uint64(memory)}); err != nil {
			return err
		}
	}

	return nil
}

func DisableTHP(logger *log.Logger) {
	// Transparent huge pages inflate the resident size of long running drudgers
	logger.Debug("Disabling transparent huge pages")
	if err := unix.Prctl(unix.PR_SET_THP_DISABLE, 1, 0, 0, 0); err != nil {
		logger.Warn("Failed to disable transparent huge pages:", err)
	}
}
