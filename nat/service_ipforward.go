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

package nat

import (
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type serviceIPForward struct {
	CommandEnable  []string
	CommandDisable []string
	CommandRead    []string
	CommandFactory CommandFactory

	mu sync.Mutex
	// prior is the flag value before the first Enable, nil when nothing is to be restored.
	prior *bool
}

// CommandFactory is responsible for creating new instances of command
type CommandFactory func(name string, arg ...string) Command

// Command allows us to run commands
type Command interface {
	CombinedOutput() ([]byte, error)
	Output() ([]byte, error)
}

func execCommand(name string, arg ...string) Command {
	return exec.Command(name, arg...)
}

func (service *serviceIPForward) Enable() error {
	service.mu.Lock()
	defer service.mu.Unlock()

	if service.prior != nil {
		log.Debug().Msg("IP forwarding already enabled by this session")
		return nil
	}

	enabled, err := service.read()
	if err != nil {
		return err
	}
	if enabled {
		service.prior = &enabled
		log.Info().Msg("IP forwarding already enabled")
		return nil
	}

	if output, err := service.CommandFactory(service.CommandEnable[0], service.CommandEnable[1:]...).CombinedOutput(); err != nil {
		log.Warn().Err(err).Msgf("Failed to enable IP forwarding: %v, output: %s", service.CommandEnable[1:], output)
		return errors.Wrap(err, "failed to enable IP forwarding")
	}

	service.prior = &enabled
	log.Info().Msg("IP forwarding enabled")
	return nil
}

func (service *serviceIPForward) Restore() error {
	service.mu.Lock()
	defer service.mu.Unlock()

	if service.prior == nil {
		return nil
	}
	if *service.prior {
		service.prior = nil
		log.Info().Msg("IP forwarding left enabled, it was on before sharing")
		return nil
	}

	if output, err := service.CommandFactory(service.CommandDisable[0], service.CommandDisable[1:]...).CombinedOutput(); err != nil {
		log.Warn().Err(err).Msgf("Failed to disable IP forwarding: %v, output: %s", service.CommandDisable[1:], output)
		return errors.Wrap(err, "failed to restore IP forwarding")
	}

	service.prior = nil
	log.Info().Msg("IP forwarding disabled")
	return nil
}

func (service *serviceIPForward) Enabled() (bool, error) {
	service.mu.Lock()
	defer service.mu.Unlock()

	return service.read()
}

func (service *serviceIPForward) read() (bool, error) {
	output, err := service.CommandFactory(service.CommandRead[0], service.CommandRead[1:]...).Output()
	if err != nil {
		log.Warn().Err(err).Msgf("Failed to check IP forwarding status: %v, output: %s", service.CommandRead[1:], output)
		return false, errors.Wrap(err, "failed to read IP forwarding status")
	}

	return strings.TrimSpace(string(output)) == "1", nil
}
