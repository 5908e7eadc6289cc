// Package session owns the bearer token and the identity derived from it.
// The manager is the single writer of session state: login, logout and the
// startup restore are the only operations that mutate it, every other
// component reads through the accessors.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"forumcli/internal/apiclient"
	"forumcli/internal/models"
	"forumcli/internal/store"
)

type Manager struct {
	api    *apiclient.Client
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	token    string
	identity *models.Identity
}

func NewManager(api *apiclient.Client, st *store.Store, logger *zap.Logger) *Manager {
	return &Manager{
		api:    api,
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Restore loads the persisted session, if any. It fails closed: a missing,
// corrupt or expired token yields a logged-out state and wipes the persisted
// copies rather than surfacing an error. Runs once at startup, before
// anything that depends on the session.
func (m *Manager) Restore() error {
	token, ok, err := m.store.Get(store.KeyToken)
	if err != nil {
		return fmt.Errorf("failed to read persisted session: %w", err)
	}
	if !ok {
		return nil
	}

	rawIdentity, ok, err := m.store.Get(store.KeyIdentity)
	if err != nil {
		return fmt.Errorf("failed to read persisted session: %w", err)
	}
	if !ok {
		// Half a session is no session.
		return m.wipe("persisted identity missing")
	}

	claims, err := decodeClaims(token)
	if err != nil {
		return m.wipe("persisted token is not decodable")
	}
	if _, err := normalizeIdentity(claims, m.now()); err != nil {
		return m.wipe("persisted token rejected: " + err.Error())
	}

	var identity models.Identity
	if err := json.Unmarshal([]byte(rawIdentity), &identity); err != nil {
		return m.wipe("persisted identity is not decodable")
	}

	m.mu.Lock()
	m.token = token
	m.identity = &identity
	m.mu.Unlock()
	m.api.SetToken(token)

	m.logger.Debug("Session restored", zap.Int64("user_id", identity.ID))
	return nil
}

// wipe clears the persisted session and leaves the manager logged out.
func (m *Manager) wipe(reason string) error {
	m.logger.Debug("Discarding persisted session", zap.String("reason", reason))
	if err := m.store.Delete(store.KeyToken, store.KeyIdentity); err != nil {
		return fmt.Errorf("failed to clear persisted session: %w", err)
	}
	return nil
}

// Login authenticates against the remote API and, on success, installs and
// persists the session. On any failure the session is left exactly as it
// was: nothing is written until the token has decoded into a valid identity.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.Identity, error) {
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token := resp.Credential()
	if token == "" {
		return nil, ErrNoCredential
	}

	claims, err := decodeClaims(token)
	if err != nil {
		return nil, err
	}
	identity, err := normalizeIdentity(claims, m.now())
	if err != nil {
		return nil, err
	}

	rawIdentity, err := json.Marshal(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize identity: %w", err)
	}
	if err := m.store.Put(store.KeyToken, token); err != nil {
		return nil, err
	}
	if err := m.store.Put(store.KeyIdentity, string(rawIdentity)); err != nil {
		// Don't leave half a session behind.
		if derr := m.store.Delete(store.KeyToken); derr != nil {
			m.logger.Warn("Failed to roll back persisted token", zap.Error(derr))
		}
		return nil, err
	}

	m.mu.Lock()
	m.token = token
	m.identity = identity
	m.mu.Unlock()
	m.api.SetToken(token)

	m.logger.Info("Logged in",
		zap.Int64("user_id", identity.ID),
		zap.String("role", string(identity.Role)))

	out := *identity
	return &out, nil
}

// Register creates a new account. Validation mirrors the signup form and
// runs before any network call: name required, valid email address,
// password at least 6 characters. Registration does not log the user in.
func (m *Manager) Register(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &models.ValidationError{Field: "name", Reason: "is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &models.ValidationError{Field: "email", Reason: "is not a valid address"}
	}
	if len(password) < 6 {
		return &models.ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	return m.api.Register(ctx, name, email, password)
}

// Logout clears the in-memory and persisted session unconditionally. Calling
// it with no active session is a no-op.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.token = ""
	m.identity = nil
	m.mu.Unlock()
	m.api.ClearToken()

	if err := m.store.Delete(store.KeyToken, store.KeyIdentity); err != nil {
		return fmt.Errorf("failed to clear persisted session: %w", err)
	}
	return nil
}

// Identity returns a copy of the current identity, or nil when logged out.
func (m *Manager) Identity() *models.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return nil
	}
	out := *m.identity
	return &out
}

// Token returns the current bearer token, or "" when logged out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Manager) LoggedIn() bool {
	return m.Token() != ""
}
