package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var generator Generator

func TestSessionIdLength(t *testing.T) {
	sid := generator.Generate()

	assert.Len(t, sid, 36)
	assert.NotEqual(t, sid, generator.Generate())
}
