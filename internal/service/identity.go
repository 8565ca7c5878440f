package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/jackc/pgx/v5"
)

// Caller is an authenticated caller as seen by the ledger: a legacy customer
// id, an identity-provider user id, or both.
type Caller struct {
	LegacyCustomerID *int64
	ExternalUserID   *string
}

// IdentityResolver canonicalizes callers into ledger identities using the
// customer profile linking table. It never writes.
type IdentityResolver struct {
	store QueryStore
}

func NewIdentityResolver(store QueryStore) *IdentityResolver {
	return &IdentityResolver{store: store}
}

// Resolve returns the canonical identity for caller. A linked legacy id
// found on the external user's profile takes precedence over a
// caller-supplied one.
func (r *IdentityResolver) Resolve(ctx context.Context, caller Caller) (domain.Identity, error) {
	return r.resolve(ctx, r.store.Queries(), caller)
}

// ResolveKeys resolves the identity owning rows stored under keys.
func (r *IdentityResolver) ResolveKeys(ctx context.Context, keys repository.CustomerKeys) (domain.Identity, error) {
	return r.resolve(ctx, r.store.Queries(), Caller(keys))
}

func (r *IdentityResolver) resolve(ctx context.Context, q repository.Querier, caller Caller) (domain.Identity, error) {
	legacy := caller.LegacyCustomerID
	external := caller.ExternalUserID
	if legacy != nil && *legacy <= 0 {
		legacy = nil
	}
	if external != nil && *external == "" {
		external = nil
	}
	if legacy == nil && external == nil {
		return domain.Identity{}, models.ErrInvalidIdentity
	}

	if external != nil {
		profile, err := q.GetCustomerProfile(ctx, *external)
		switch {
		case err == nil:
			if profile.LegacyCustomerID != nil {
				legacy = profile.LegacyCustomerID
			}
		case !errors.Is(err, pgx.ErrNoRows):
			return domain.Identity{}, fmt.Errorf("failed to load customer profile: %w", err)
		}
	} else {
		profile, err := q.GetCustomerProfileByLegacyID(ctx, *legacy)
		switch {
		case err == nil:
			ext := profile.ExternalUserID
			external = &ext
		case !errors.Is(err, pgx.ErrNoRows):
			return domain.Identity{}, fmt.Errorf("failed to load customer profile: %w", err)
		}
	}

	id, err := domain.NewIdentity(legacy, external)
	if err != nil {
		return domain.Identity{}, models.ErrInvalidIdentity
	}
	return id, nil
}
