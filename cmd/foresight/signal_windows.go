//go:build windows

package main

import "os"

// shutdownSignals lists the signals that stop a running server.
// On Windows, only os.Interrupt (Ctrl+C) is supported; SIGTERM does not exist.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
