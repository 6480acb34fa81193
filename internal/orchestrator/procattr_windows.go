//go:build windows

package orchestrator

import (
	"os"
	"syscall"
)

const createNoWindow = 0x08000000

// sysProcAttr keeps subapps from opening a console window.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}

// Windows has no SIGTERM for console-less children; both phases kill.
func terminateProcess(p *os.Process) error {
	return p.Kill()
}

func killProcess(p *os.Process) error {
	return p.Kill()
}
