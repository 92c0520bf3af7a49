// Package auth authenticates the credentials a connecting client presents
// during the AwaitingAuth handshake step, directly against the in-memory
// user table held by package world. There is no token concept: the
// handshake is a one-shot credential check over the same stream, not a
// bearer-token session that can be presented again later.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"cyberspace/apperr"
	"cyberspace/logging"
	"cyberspace/world"
)

type Manager struct {
	world *world.World
}

func NewManager(w *world.World) *Manager {
	return &Manager{world: w}
}

// Authenticate checks username/password against the world's user table,
// returning the matched user's ID on success.
func (m *Manager) Authenticate(username, password string) (world.UserID, error) {
	u, ok := m.world.UserByName(username)
	if !ok {
		logging.Warn("auth failed: unknown user", map[string]interface{}{"username": username})
		return world.InvalidUserID, apperr.New(apperr.AuthFailed, "unknown username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHashWithSalt), []byte(password)); err != nil {
		logging.Warn("auth failed: bad password", map[string]interface{}{"username": username})
		return world.InvalidUserID, apperr.New(apperr.AuthFailed, "unknown username or password")
	}

	logging.Info("user authenticated", map[string]interface{}{"username": username, "user_id": u.ID})
	return u.ID, nil
}

// Register creates a new user with a bcrypt-hashed password. Used by the
// self-test bootstrap and by an operator provisioning accounts ahead of
// time; there is no live registration handshake over the wire protocol.
func (m *Manager) Register(username, password, email string) (world.UserID, error) {
	if _, exists := m.world.UserByName(username); exists {
		return world.InvalidUserID, fmt.Errorf("user %q already exists", username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return world.InvalidUserID, fmt.Errorf("hash password: %w", err)
	}

	id := m.world.CreateUser(username, string(hash), email)
	logging.Info("user registered", map[string]interface{}{"username": username, "user_id": id})
	return id, nil
}
