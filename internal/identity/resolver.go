// Package identity maps identity-provider subjects to internal user keys.
// Guest checkouts carry the GUEST sentinel and resolve to no user.
package identity

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/tripovia/travel-payments/internal/domain"
)

const GuestSubject = "GUEST"

type Resolver interface {
	// Resolve returns the internal user key for an external subject, or
	// nil for guests and unknown subjects.
	Resolve(ctx context.Context, subject string) (*uuid.UUID, error)
}

type UserStore interface {
	FindUserByExternalID(ctx context.Context, externalID string) (uuid.UUID, error)
}

type Lookup struct {
	store UserStore
}

func NewLookup(store UserStore) *Lookup {
	return &Lookup{store: store}
}

func (l *Lookup) Resolve(ctx context.Context, subject string) (*uuid.UUID, error) {
	if subject == "" || subject == GuestSubject {
		return nil, nil
	}
	id, err := l.store.FindUserByExternalID(ctx, subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}
