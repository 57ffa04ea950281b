// Package killswitch defines the boolean-flag-reader abstraction consumed
// by the Task Engine's instant-mode path (§4.4, §6). The only Reader shipped
// here is Static, a fixed flag map; engines are constructed with whatever
// Reader the deployment wires in (config-file, feature-flag service, ...).
package killswitch

import "context"

// Reader reports whether a named kill switch is currently engaged.
// "instant_mode" is the one the Task Engine checks today; the interface
// takes a name so new switches don't require a new method.
type Reader interface {
	Engaged(ctx context.Context, name string) (bool, error)
}

// Static returns a fixed answer, backed by config.Instant.KillSwitch.
type Static struct {
	Flags map[string]bool
}

func (s Static) Engaged(ctx context.Context, name string) (bool, error) {
	return s.Flags[name], nil
}
