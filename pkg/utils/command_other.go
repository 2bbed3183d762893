//go:build !linux

package utils

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}
