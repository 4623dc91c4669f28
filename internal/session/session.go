// Package session tracks who is signed in on the storefront side: the API token, the
// resolved user and the listeners that must react when the identity changes.
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/pkg/clients/vaxapi"
)

// DefaultProbeRetryDelay is the pause before the single retry of the auth probe.
const DefaultProbeRetryDelay = 500 * time.Millisecond

// API is the part of the backend client the session needs.
type API interface {
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*models.User, error)
}

// Manager owns the session state. Listeners run outside the lock, after the state is saved.
type Manager struct {
	mu         sync.RWMutex
	store      Store
	state      State
	listeners  []func(userID string)
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewManager loads the persisted state from store.
func NewManager(store Store, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	st, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Manager{store: store, state: st, retryDelay: DefaultProbeRetryDelay, logger: logger}, nil
}

// SetRetryDelay changes the pause before the auth probe retry.
func (m *Manager) SetRetryDelay(d time.Duration) {
	m.mu.Lock()
	m.retryDelay = d
	m.mu.Unlock()
}

// OnIdentityChange registers fn to be told the new user id ("" when signed out).
func (m *Manager) OnIdentityChange(fn func(userID string)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Token returns the API token, empty when signed out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Token
}

// UserID returns the persisted identity.
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.UserID
}

// User returns the last resolved user, if any.
func (m *Manager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.User == nil {
		return nil
	}
	u := *m.state.User
	return &u
}

// IsStaff reports whether the resolved user is staff.
func (m *Manager) IsStaff() bool {
	u := m.User()
	return u != nil && u.IsStaff
}

// SaveUserID persists the identity the cart is associated with.
func (m *Manager) SaveUserID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.UserID == id {
		return nil
	}
	m.state.UserID = id
	return m.store.Save(m.state)
}

// Login signs in, resolves the user and announces the new identity.
func (m *Manager) Login(ctx context.Context, api API, username, password string) (*models.User, error) {
	token, err := api.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	prev := m.state
	m.state = State{Token: token}
	m.mu.Unlock()

	user, err := api.CurrentUser(ctx)
	if err != nil {
		if !errors.Is(err, vaxapi.ErrUnauthorized) {
			m.mu.Lock()
			m.state = prev
			m.mu.Unlock()
		}
		return nil, err
	}
	if user == nil {
		m.Expire()
		return nil, vaxapi.ErrUnauthorized
	}

	id := strconv.FormatInt(user.ID, 10)
	if err := m.replace(State{Token: token, UserID: id, User: user}); err != nil {
		return nil, err
	}
	m.logger.Info("signed in", zap.String("username", user.Username))
	m.notify(id)
	return user, nil
}

// Logout revokes the token server side when possible and always clears the session.
func (m *Manager) Logout(ctx context.Context, api API) error {
	var apiErr error
	if m.Token() != "" {
		if err := api.Logout(ctx); err != nil && !errors.Is(err, vaxapi.ErrUnauthorized) {
			apiErr = err
		}
	}
	if err := m.clear(); err != nil {
		return err
	}
	m.logger.Info("signed out")
	return apiErr
}

// Expire drops the session after the backend rejected the token.
func (m *Manager) Expire() {
	if m.Token() == "" && m.UserID() == "" {
		return
	}
	if err := m.clear(); err != nil {
		m.logger.Warn("persist expired session failed", zap.Error(err))
	}
	m.logger.Info("session expired")
}

// Resolve asks the backend who owns the token. A failed probe is retried once after the
// retry delay; a rejected token or an anonymous answer ends the session.
func (m *Manager) Resolve(ctx context.Context, api API) (*models.User, error) {
	if m.Token() == "" {
		return nil, nil
	}

	user, err := api.CurrentUser(ctx)
	if err != nil && !errors.Is(err, vaxapi.ErrUnauthorized) {
		m.mu.RLock()
		delay := m.retryDelay
		m.mu.RUnlock()
		m.logger.Debug("auth probe failed, retrying", zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		user, err = api.CurrentUser(ctx)
	}

	switch {
	case errors.Is(err, vaxapi.ErrUnauthorized):
		m.Expire()
		return nil, nil
	case err != nil:
		return nil, err
	case user == nil:
		m.Expire()
		return nil, nil
	}

	m.mu.Lock()
	m.state.User = user
	m.state.UserID = strconv.FormatInt(user.ID, 10)
	st := m.state
	m.mu.Unlock()
	if err := m.store.Save(st); err != nil {
		return nil, err
	}
	return user, nil
}

func (m *Manager) replace(st State) error {
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
	return m.store.Save(st)
}

func (m *Manager) clear() error {
	if err := m.replace(State{}); err != nil {
		return err
	}
	m.notify("")
	return nil
}

func (m *Manager) notify(userID string) {
	m.mu.RLock()
	listeners := append([]func(string){}, m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(userID)
	}
}
