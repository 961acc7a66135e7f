// Package optimistic runs a local mutation ahead of server confirmation and
// compensates when the server rejects it.
package optimistic

import (
	"context"
	"fmt"
)

// Mutation is a speculative local change and its compensating action.
type Mutation struct {
	Apply    func()
	Rollback func()
}

// Run applies m, then calls commit. If commit fails, m is rolled back and
// the commit error is returned.
func Run(ctx context.Context, m Mutation, commit func(context.Context) error) error {
	if m.Apply != nil {
		m.Apply()
	}
	if err := ctx.Err(); err != nil {
		rollback(m)
		return err
	}
	if err := commit(ctx); err != nil {
		rollback(m)
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func rollback(m Mutation) {
	if m.Rollback != nil {
		m.Rollback()
	}
}
