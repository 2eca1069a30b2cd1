package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/emberhall/ember/internal/auth"
	"github.com/emberhall/ember/internal/models"
)

type fakeAuthStore struct {
	byUsername map[string]*models.User
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{byUsername: map[string]*models.User{}}
}

func (f *fakeAuthStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, ok := f.byUsername[username]
	if !ok {
		return nil, errTestNotFound
	}
	return u, nil
}

func (f *fakeAuthStore) RegisterUser(ctx context.Context, user *models.User) (bool, error) {
	if _, exists := f.byUsername[user.Username]; exists {
		return false, nil
	}
	hashed := *user
	plain := hashed.PasswordHash
	hashed.PasswordHash = hashPasswordForTest(plain)
	f.byUsername[user.Username] = &hashed
	return true, nil
}

// hashPasswordForTest stands in for db.RegisterUser's bcrypt hashing, since
// fakeAuthStore never touches the real Database type.
func hashPasswordForTest(plain string) string {
	return "hashed:" + plain
}

func TestRegisterIssuesTokenPair(t *testing.T) {
	tokens := auth.NewTokenService("test-signing-key")
	store := newFakeAuthStore()
	refresh := auth.NewRefreshService(tokens, &fakeRefreshStore{}, 0, 0, 0)

	r, _ := setupRouter("unused", tokens)
	RegisterAuthRoutes(r, store, refresh)

	body, _ := json.Marshal(models.CreateUserRequest{Username: "alice", Email: "a@example.com", Password: "hunter2"})
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.NotEmpty(t, out["accessToken"])
	assert.NotEmpty(t, out["refreshToken"])
}

func TestLoginRejectsBadPassword(t *testing.T) {
	tokens := auth.NewTokenService("test-signing-key")
	store := newFakeAuthStore()
	store.byUsername["alice"] = &models.User{ID: "u1", Username: "alice", PasswordHash: mustBcryptForTest("hunter2")}
	refresh := auth.NewRefreshService(tokens, &fakeRefreshStore{}, 0, 0, 0)

	r, _ := setupRouter("unused", tokens)
	RegisterAuthRoutes(r, store, refresh)

	body, _ := json.Marshal(loginRequest{Username: "alice", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// mustBcryptForTest stands in for RegisterUser's internal hashing step, for
// tests that exercise login directly against a pre-seeded user row.
func mustBcryptForTest(plain string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

type fakeRefreshStore struct{}

func (f *fakeRefreshStore) RotateRefreshToken(ctx context.Context, userID, nonce string, replacement *models.RefreshTokenRow) (int, error) {
	return 1, nil
}
func (f *fakeRefreshStore) InsertRefreshToken(ctx context.Context, row *models.RefreshTokenRow) error {
	return nil
}
func (f *fakeRefreshStore) DeleteAllRefreshTokensForUser(ctx context.Context, userID string) error {
	return nil
}
