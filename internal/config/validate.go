package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError reports a parameter set that violates the schema.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks the config against the embedded CUE schema, then applies
// the cross-row checks CUE cannot express cheaply (tier table totals and a
// world large enough to hold a max-size fish).
func (c Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := ctx.Encode(c)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Message: cueerrors.Details(err, nil), Err: err}
	}

	var total float64
	for _, tier := range c.Food.Tiers {
		total += tier.Prob
	}
	if total <= 0 || total > 1+1e-9 {
		return &ValidationError{Message: fmt.Sprintf("food tier probabilities sum to %g, want (0, 1]", total)}
	}

	margin := c.Fish.EdgeMargin * c.Fish.SizeMax
	if c.World.Width <= 2*margin || c.World.Height <= 2*margin {
		return &ValidationError{Message: fmt.Sprintf("world %gx%g cannot hold a fish with margin %g",
			c.World.Width, c.World.Height, margin)}
	}
	return nil
}
