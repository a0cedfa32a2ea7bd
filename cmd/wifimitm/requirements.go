package main

import (
	"fmt"
	"os"
	"os/exec"
)

// requiredTools are the external programs the attack shells out to.
var requiredTools = []string{"airodump-ng", "aireplay-ng", "aircrack-ng", "wpaclean"}

type argumentError struct {
	msg string
}

func (e *argumentError) Error() string {
	return e.msg
}

type requirementError struct {
	msg        string
	permission bool
}

func (e *requirementError) Error() string {
	return e.msg
}

// checkRequirements verifies the run can work at all: root privileges for
// raw frame injection and the aircrack-ng suite on PATH.
func checkRequirements() error {
	if os.Geteuid() != 0 {
		return &requirementError{msg: "root privileges are required", permission: true}
	}
	for _, tool := range requiredTools {
		if _, err := exec.LookPath(tool); err != nil {
			return &requirementError{msg: fmt.Sprintf("required tool %s not found in PATH", tool)}
		}
	}
	return nil
}
