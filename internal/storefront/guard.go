package storefront

import (
	"context"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/session"
)

const (
	// ErrSignInRequired sends the visitor to the sign-in route.
	ErrSignInRequired = userError("Please sign in to continue.")
	// ErrStaffOnly sends a signed-in shopper back to the home route.
	ErrStaffOnly = userError("You do not have permission to view this page.")
)

// Guard resolves the session before a view renders.
type Guard struct {
	session *session.Manager
	api     session.API
}

func NewGuard(sess *session.Manager, api session.API) *Guard {
	return &Guard{session: sess, api: api}
}

// RequireUser returns the signed-in user or ErrSignInRequired.
func (g *Guard) RequireUser(ctx context.Context) (*models.User, error) {
	u, err := g.session.Resolve(ctx, g.api)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrSignInRequired
	}
	return u, nil
}

// RequireStaff returns the signed-in staff user, ErrSignInRequired or ErrStaffOnly.
func (g *Guard) RequireStaff(ctx context.Context) (*models.User, error) {
	u, err := g.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !g.session.IsStaff() {
		return nil, ErrStaffOnly
	}
	return u, nil
}
