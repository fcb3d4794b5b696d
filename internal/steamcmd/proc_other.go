//go:build !unix

package steamcmd

import "os/exec"

func killProcessGroup(*exec.Cmd) {}
