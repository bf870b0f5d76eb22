package session

import "github.com/gofrs/uuid"

// Generator creates unique session identifiers.
type Generator struct{}

// Generate returns a new random session ID.
func (generator *Generator) Generate() ID {
	return ID(uuid.Must(uuid.NewV4()).String())
}
