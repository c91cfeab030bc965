//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// detach starts the server in a new process group so console signals do not reach it
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
