package sessions

import (
	"errors"

	"github.com/dcrodman/mpsessions/internal/online"
)

var (
	ErrNoWorld       = errors.New("world is not available")
	ErrNoLocalPlayer = errors.New("local player is not available")
)

// LocalPlayers resolves the identity backend requests are scoped to.
type LocalPlayers interface {
	// FirstLocalPlayerID returns the preferred identity of the first local player.
	FirstLocalPlayerID() (online.UniqueNetID, error)
}

// IdentityPlayers resolves the local player through the identity service. The
// player is only available once the local user has logged in.
type IdentityPlayers struct {
	Identity  online.IdentityInterface
	LocalUser int
}

func (p IdentityPlayers) FirstLocalPlayerID() (online.UniqueNetID, error) {
	if p.Identity == nil {
		return "", ErrNoWorld
	}
	id, ok := p.Identity.UniquePlayerID(p.LocalUser)
	if !ok || !id.IsValid() {
		return "", ErrNoLocalPlayer
	}
	return id, nil
}
