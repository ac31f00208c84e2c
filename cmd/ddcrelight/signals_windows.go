//go:build windows

package main

import "os"

// shutdownSignals are the signals that stop the daemon.
var shutdownSignals = []os.Signal{os.Interrupt}
