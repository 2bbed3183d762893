//go:build !linux

package utils

import (
	"time"
)

func SetResourceLimits(cpuTime time.Duration, memory ByteSize) error {
	return nil
}
