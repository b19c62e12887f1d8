package plans

import (
	"context"
	"errors"
	"fmt"

	"github.com/oneform/formroom/pkg/store"
)

// Accounts stores each user's plan in the users collection.
type Accounts struct {
	users *store.Collection
}

// NewAccounts creates an Accounts service.
func NewAccounts(s store.DocumentStore) *Accounts {
	return &Accounts{users: store.NewCollection(s, store.CollectionUsers)}
}

// Plan returns the user's plan. Users without a record are on basic.
func (a *Accounts) Plan(ctx context.Context, userID string) (Plan, error) {
	doc, err := a.users.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return Resolve(Basic), nil
	}
	if err != nil {
		return Plan{}, fmt.Errorf("failed to load account %s: %w", userID, err)
	}
	return Resolve(doc.String("plan")), nil
}

// SetPlan assigns a plan to a user, creating the account record if needed.
func (a *Accounts) SetPlan(ctx context.Context, userID, name string) (Plan, error) {
	if userID == "" {
		return Plan{}, errors.New("user id is required")
	}
	p, err := Get(name)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %q", err, name)
	}

	doc, err := a.users.Get(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		doc = &store.Document{ID: userID, Fields: map[string]any{}}
	case err != nil:
		return Plan{}, fmt.Errorf("failed to load account %s: %w", userID, err)
	}
	doc.Fields["plan"] = p.Name

	if err := a.users.Put(ctx, doc); err != nil {
		return Plan{}, fmt.Errorf("failed to save account %s: %w", userID, err)
	}
	return p, nil
}
