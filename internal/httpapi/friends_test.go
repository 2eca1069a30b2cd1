package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberhall/ember/internal/auth"
	"github.com/emberhall/ember/internal/models"
	"github.com/emberhall/ember/internal/realtime"
)

type fakeFriendStore struct {
	users        map[string]*models.User
	friends      map[string]bool
	requests     map[string]bool // key "from->to"
	removeCalled bool
}

func newFakeFriendStore() *fakeFriendStore {
	return &fakeFriendStore{
		users:    map[string]*models.User{},
		friends:  map[string]bool{},
		requests: map[string]bool{},
	}
}

func (f *fakeFriendStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, errTestNotFound
	}
	return u, nil
}
func (f *fakeFriendStore) IsUserFriend(ctx context.Context, userID, otherID string) (bool, error) {
	return f.friends[userID+"|"+otherID] || f.friends[otherID+"|"+userID], nil
}
func (f *fakeFriendStore) AddFriends(ctx context.Context, userA, userB string) error {
	f.friends[userA+"|"+userB] = true
	return nil
}
func (f *fakeFriendStore) RemoveFriend(ctx context.Context, userID, otherID string) error {
	f.removeCalled = true
	delete(f.friends, userID+"|"+otherID)
	delete(f.friends, otherID+"|"+userID)
	return nil
}
func (f *fakeFriendStore) ListIncomingFriendRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return nil, nil
}
func (f *fakeFriendStore) ListOutgoingFriendRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return nil, nil
}
func (f *fakeFriendStore) CreateFriendRequest(ctx context.Context, fromID, toID string) error {
	f.requests[fromID+"->"+toID] = true
	return nil
}
func (f *fakeFriendStore) RemoveFriendRequest(ctx context.Context, fromID, toID string) error {
	delete(f.requests, fromID+"->"+toID)
	return nil
}

func TestSendFriendRequestRejectsSelf(t *testing.T) {
	tokens := auth.NewTokenService("test-signing-key")
	store := newFakeFriendStore()
	store.users["u1"] = &models.User{ID: "u1", Username: "alice"}

	events := realtime.NewService()
	r, token := setupRouter("u1", tokens)
	RegisterFriendRoutes(r, store, events, tokens)

	req := httptest.NewRequest(http.MethodPost, "/friends/requests/u1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAcceptFriendRequestAddsFriendshipAndClearsPending(t *testing.T) {
	tokens := auth.NewTokenService("test-signing-key")
	store := newFakeFriendStore()
	store.users["u1"] = &models.User{ID: "u1", Username: "alice"}
	store.requests["u2->u1"] = true

	events := realtime.NewService()
	r, token := setupRouter("u1", tokens)
	RegisterFriendRoutes(r, store, events, tokens)

	req := httptest.NewRequest(http.MethodPost, "/friends/requests/u2/accept", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, store.friends["u1|u2"])
	assert.False(t, store.requests["u2->u1"])
}

func TestRemoveFriendInvokesStore(t *testing.T) {
	tokens := auth.NewTokenService("test-signing-key")
	store := newFakeFriendStore()
	store.users["u1"] = &models.User{ID: "u1", Username: "alice"}
	store.friends["u1|u2"] = true

	events := realtime.NewService()
	r, token := setupRouter("u1", tokens)
	RegisterFriendRoutes(r, store, events, tokens)

	req := httptest.NewRequest(http.MethodDelete, "/friends/u2", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, store.removeCalled)
}
