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

package dhcp

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// process wraps a long running executable, logs its output and tracks its exit.
type process struct {
	logPrefix string
	cmd       *exec.Cmd
	exited    chan struct{}
	exitErr   error
	stopOnce  sync.Once
	stopErr   error
}

func startProcess(logPrefix, executablePath string, arguments []string) (*process, error) {
	log.Info().Msgf("%sStarting cmd: %s with arguments: %v", logPrefix, executablePath, arguments)
	cmd := exec.Command(executablePath, arguments...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	p := &process{
		logPrefix: logPrefix,
		cmd:       cmd,
		exited:    make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "could not start %s", executablePath)
	}
	var streams sync.WaitGroup
	streams.Add(2)
	go p.outputToLog(&streams, stdout, "Stdout: ")
	go p.outputToLog(&streams, stderr, "Stderr: ")
	go p.waitForExit(&streams)

	return p, nil
}

// Exited is closed once the executable exits.
func (p *process) Exited() <-chan struct{} {
	return p.exited
}

// ExitErr returns the exit status after Exited is closed.
func (p *process) ExitErr() error {
	<-p.exited
	return p.exitErr
}

// Stop asks the executable to terminate and kills it when it does not exit within grace.
func (p *process) Stop(grace time.Duration) error {
	p.stopOnce.Do(func() {
		select {
		case <-p.exited:
			return
		default:
		}

		if err := p.cmd.Process.Signal(unix.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Warn().Err(err).Msgf("%sCould not terminate process", p.logPrefix)
		}

		select {
		case <-p.exited:
			return
		case <-time.After(grace):
		}

		log.Warn().Msgf("%sProcess did not exit in %s, killing it", p.logPrefix, grace)
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.stopErr = errors.Wrap(err, "could not kill process")
			return
		}
		<-p.exited
	})
	return p.stopErr
}

func (p *process) outputToLog(streams *sync.WaitGroup, output io.ReadCloser, streamPrefix string) {
	defer streams.Done()

	scanner := bufio.NewScanner(output)
	for scanner.Scan() {
		log.Debug().Msgf("%s%s%s", p.logPrefix, streamPrefix, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.Trace().Err(err).Msgf("%s%s(failed to read)", p.logPrefix, streamPrefix)
	}
}

func (p *process) waitForExit(streams *sync.WaitGroup) {
	streams.Wait()
	p.exitErr = p.cmd.Wait()
	log.Info().Msgf("%sProcess exited: %v", p.logPrefix, p.exitErr)
	close(p.exited)
}
