package cmd

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStopperCalledOnceOnRepeatedSignals(t *testing.T) {
	termination := make(chan os.Signal, 2)
	stopped := make(chan struct{}, 2)

	go waitTerminationSignal(termination, func() {
		stopped <- struct{}{}
	})
	termination <- syscall.SIGTERM
	termination <- syscall.SIGINT

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stopper was not called")
	}
	select {
	case <-stopped:
		t.Fatal("stopper called twice")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Len(t, stopped, 0)
}
