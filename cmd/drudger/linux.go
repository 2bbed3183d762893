//go:build linux

package main

import (
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/utils"
)

func init() {
	log.Debug("Detected Linux")

	// Disable transparent huge pages to workaround memory leaks
	utils.DisableTHP(log.Default())
}
