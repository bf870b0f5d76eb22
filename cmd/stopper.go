package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
)

// Killer reverses system changes and releases resources
type Killer func() error

// SoftKiller invokes killer and leaves exiting to the caller
func SoftKiller(kill Killer) func() {
	return newStopper(kill, doNothingAfterKill)
}

// HardKiller invokes provided kill method and forces process to exit
func HardKiller(kill Killer) func() {
	return newStopper(kill, os.Exit)
}

type exitter func(code int)

func doNothingAfterKill(_ int) {

}

func newStopper(kill Killer, exit exitter) func() {
	return func() {
		stop(kill, exit)
	}
}

func stop(kill Killer, exit exitter) {
	if err := kill(); err != nil {
		log.Error().Err(err).Msg("Some system changes could not be reversed")
		exit(1)
		return
	}

	log.Info().Msg("All system changes reversed")
	exit(0)
}
