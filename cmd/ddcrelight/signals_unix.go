//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals are the signals that stop the daemon.
var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
