// Package storefront is the shopper and staff view layer over the backend API: catalog
// browsing, product selection, checkout, order tracking and inventory administration.
package storefront

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/cart"
	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/session"
	"github.com/mamadbah2/vaccine-orders/pkg/clients/vaxapi"
)

// Storefront wires one shopper session to the backend.
type Storefront struct {
	API     *vaxapi.Client
	Session *session.Manager
	Cart    *cart.Store
	Catalog *Catalog
	Desk    *OrderDesk
	Admin   *Admin
	Guard   *Guard

	logger *zap.Logger
	now    func() time.Time
}

// New builds a storefront against baseURL. The API client reads its token from sess and
// expires sess when the backend rejects it; the cart is cleared on every identity change.
func New(baseURL string, sess *session.Manager, logger *zap.Logger, opts ...vaxapi.Option) *Storefront {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]vaxapi.Option{
		vaxapi.WithLogger(logger),
		vaxapi.WithTokenSource(sess.Token),
		vaxapi.WithUnauthorizedHandler(sess.Expire),
	}, opts...)
	api := vaxapi.New(baseURL, opts...)

	c := cart.NewStore(sess, sess.UserID(), logger)
	sess.OnIdentityChange(c.OnIdentityChange)

	return &Storefront{
		API:     api,
		Session: sess,
		Cart:    c,
		Catalog: NewCatalog(api, logger),
		Desk:    NewOrderDesk(api, logger),
		Admin:   NewAdmin(api, logger),
		Guard:   NewGuard(sess, api),
		logger:  logger,
		now:     time.Now,
	}
}

// Login signs in and clears whatever the previous shopper left in the cart.
func (s *Storefront) Login(ctx context.Context, username, password string) (*models.User, error) {
	return s.Session.Login(ctx, s.API, username, password)
}

// Logout ends the session.
func (s *Storefront) Logout(ctx context.Context) error {
	return s.Session.Logout(ctx, s.API)
}

// OpenProduct loads a product page for today.
func (s *Storefront) OpenProduct(ctx context.Context, id int64) (*ProductPage, error) {
	return OpenProduct(ctx, s.API, id, s.now())
}

// Checkout submits the cart as an order. Empty notes use the storefront default.
func (s *Storefront) Checkout(ctx context.Context, notes string) (*models.Order, error) {
	return Checkout(ctx, s.API, s.Cart, notes, s.logger)
}

// Message returns the text to show for err: the server's message when there is one,
// otherwise fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *vaxapi.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var userErr userError
	if errors.As(err, &userErr) {
		return userErr.Error()
	}
	return fallback
}

// userError is a locally detected problem whose text is meant for the shopper.
type userError string

func (e userError) Error() string { return string(e) }
