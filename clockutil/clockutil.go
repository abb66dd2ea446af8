// Package clockutil provides the production Clock used by kadstore's
// components, backed by github.com/benbjohnson/clock so every periodic
// task (bucket staleness, refresh, republish, p2p announce) can be driven
// by a clock.Mock in tests instead of real sleeps.
package clockutil

import (
	"github.com/benbjohnson/clock"

	"github.com/artifactmesh/kadstore/blueprint"
)

// Real returns the production Clock, a thin alias over clock.New.
func Real() blueprint.Clock {
	return clock.New()
}
