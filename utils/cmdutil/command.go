/*
 * Copyright (C) 2026 The "tunshare" Authors.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package cmdutil

import (
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Runner runs external programs. Components depend on it so tests can fake the host.
type Runner interface {
	// Output runs the program and returns its combined stdout and stderr.
	Output(args ...string) (string, error)
	// OutputWithInput runs the program with input piped to its stdin.
	OutputWithInput(input string, args ...string) (string, error)
}

// ExecRunner runs programs on the host.
type ExecRunner struct{}

// Output executes external command and logs output on the debug level.
func (ExecRunner) Output(args ...string) (string, error) {
	return ExecOutput(args...)
}

// OutputWithInput executes external command with stdin and logs output on the debug level.
func (ExecRunner) OutputWithInput(input string, args ...string) (string, error) {
	return ExecInput(input, args...)
}

// Duplicate logic in function bodies is intentional.
// This is to keep frame count the same (can't call one from the other), so that the caller may be logged.

// ExecOutput executes external command and logs output on the debug level.
// It returns a combined stderr and stdout output and exit code in case of an error.
func ExecOutput(args ...string) (string, error) {
	out, err := exec.Command(args[0], args[1:]...).CombinedOutput()
	logSkipFrame := log.With().CallerWithSkipFrameCount(3).Logger()
	(&logSkipFrame).Debug().Msgf("%q output:\n%s", strings.Join(args, " "), out)
	if err != nil {
		return string(out), errors.Errorf("%q: %v output: %s", strings.Join(args, " "), err, out)
	}
	return string(out), nil
}

// ExecInput executes external command feeding input to its stdin and logs output on the debug level.
// It returns a combined stderr and stdout output and exit code in case of an error.
func ExecInput(input string, args ...string) (string, error) {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(input)
	out, err := cmd.CombinedOutput()
	logSkipFrame := log.With().CallerWithSkipFrameCount(3).Logger()
	(&logSkipFrame).Debug().Msgf("%q input:\n%s\noutput:\n%s", strings.Join(args, " "), input, out)
	if err != nil {
		return string(out), errors.Errorf("%q: %v output: %s", strings.Join(args, " "), err, out)
	}
	return string(out), nil
}
