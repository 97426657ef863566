package world

import "errors"

// User-facing errors. Each is surfaced verbatim to the issuing session as a
// system notice; the session stays connected and usable afterwards. Anything
// else escaping the engine is an internal failure.
var (
	ErrUnknownRoom   = errors.New("no such room")
	ErrNoSuchExit    = errors.New("you can't go that way")
	ErrAccessDenied  = errors.New("access denied")
	ErrNotConnected  = errors.New("not connected")
	ErrNameCollision = errors.New("that name is already taken")
	ErrRateLimited   = errors.New("too fast; slow down")
	ErrUnknownPerson = errors.New("no such person online")
)

// IsUserError reports whether err belongs to the recoverable user-facing
// taxonomy, as opposed to an internal failure.
func IsUserError(err error) bool {
	for _, ue := range []error{
		ErrUnknownRoom, ErrNoSuchExit, ErrAccessDenied, ErrNotConnected,
		ErrNameCollision, ErrRateLimited, ErrUnknownPerson,
	} {
		if errors.Is(err, ue) {
			return true
		}
	}
	return false
}
