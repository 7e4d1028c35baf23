// Package nemesis implements the fault injector the generator drives on a
// schedule. It is opaque to the analysis core: its effects are observed only
// as the History the generator produces.
package nemesis

import "context"

// Nemesis injects and heals a fault against the target environment.
type Nemesis interface {
	Inject(ctx context.Context) error
	Heal(ctx context.Context) error
}

// NoopNemesis never injects anything; it is the generator's default.
type NoopNemesis struct{}

func (NoopNemesis) Inject(context.Context) error { return nil }
func (NoopNemesis) Heal(context.Context) error   { return nil }

var _ Nemesis = NoopNemesis{}
