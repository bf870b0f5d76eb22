package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// ApplicationStopper stops application and performs required cleanup tasks
type ApplicationStopper func()

// StopOnInterrupts invokes given stopper on SIGINT, SIGTERM and SIGHUP interrupts.
// A second interrupt while stopping is ignored, teardown must not be cut short.
func StopOnInterrupts(stop ApplicationStopper) {
	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	go waitTerminationSignal(sigterm, stop)
}

func waitTerminationSignal(termination chan os.Signal, stop ApplicationStopper) {
	sig := <-termination
	log.Info().Msgf("Received %s, stopping", sig)
	go func() {
		for sig := range termination {
			log.Warn().Msgf("Received %s while stopping, teardown is still running", sig)
		}
	}()
	stop()
}
