//go:build windows || plan9

package runner

import "os"

func signalName(*os.ProcessState) string { return "" }
