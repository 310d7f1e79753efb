// Copyright (C) 2026 Mr5niper
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later


// Package sandbox runs untrusted code in an isolated child process under
// POSIX resource caps (spec.md C10). This is a blast-radius reducer, not a
// security boundary against a motivated kernel-level adversary (spec.md
// §1's explicit Non-goal).
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/metrics"
)

// Limits are the POSIX resource caps applied before exec, in the order
// spec.md §4.10 lists them by importance.
type Limits struct {
	CPUSeconds       uint64
	AddressSpaceKB   uint64 // ulimit -v unit is KB
	OutputFileSizeKB uint64 // KB; sh's ulimit -f counts 512-byte blocks, so Run doubles it
	FileDescriptors  uint64
	WallClock        time.Duration
}

// DefaultLimits returns spec.md §4.10's defaults: 2 CPU seconds, 256 MiB
// address space, 10 MiB output file size, 64 file descriptors, 10s wall clock.
func DefaultLimits() Limits {
	return Limits{
		CPUSeconds:       2,
		AddressSpaceKB:   256 * 1024,
		OutputFileSizeKB: 10 * 1024,
		FileDescriptors:  64,
		WallClock:        10 * time.Second,
	}
}

// Result is the outcome of one sandboxed run.
type Result struct {
	Stdout     string
	Stderr     string
	ReturnCode int
}

// Run executes script as a Python3 child process in an isolated temp
// directory, an empty environment, and the resource caps in limits. The
// caps are applied by a ulimit preamble in the exec'd shell, since Go's
// os/exec has no pre-exec hook to call setrlimit in the child before it
// execs the interpreter.
//
// On wall-clock timeout it returns ("", "Execution timeout", -1); on spawn
// failure, ("", "Execution error: <msg>", -1).
func Run(ctx context.Context, script string, limits Limits) Result {
	workDir, err := os.MkdirTemp("", "aegis-sandbox-")
	if err != nil {
		metrics.SandboxExecutions.WithLabelValues("spawn_error").Inc()
		return Result{Stderr: fmt.Sprintf("Execution error: %v", err), ReturnCode: -1}
	}
	defer os.RemoveAll(workDir)

	runCtx, cancel := context.WithTimeout(ctx, limits.WallClock)
	defer cancel()

	shellScript := fmt.Sprintf(
		"unset PWD; ulimit -t %d; ulimit -v %d; ulimit -f %d; ulimit -n %d; exec python3 -I -c \"$1\"",
		limits.CPUSeconds, limits.AddressSpaceKB, limits.OutputFileSizeKB*2, limits.FileDescriptors,
	)

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", shellScript, "sandbox", script)
	cmd.Dir = workDir
	cmd.Env = []string{}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		metrics.SandboxExecutions.WithLabelValues("timeout").Inc()
		return Result{Stderr: "Execution timeout", ReturnCode: -1}
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			metrics.SandboxExecutions.WithLabelValues("ok").Inc()
			return Result{Stdout: stdout.String(), Stderr: stderr.String(), ReturnCode: exitErr.ExitCode()}
		}
		metrics.SandboxExecutions.WithLabelValues("spawn_error").Inc()
		return Result{Stderr: fmt.Sprintf("Execution error: %v", err), ReturnCode: -1}
	}

	metrics.SandboxExecutions.WithLabelValues("ok").Inc()
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), ReturnCode: 0}
}
