package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberhall/ember/internal/auth"
	apperrors "github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/models"
	"github.com/emberhall/ember/internal/realtime"
)

var errTestNotFound = apperrors.NotFound("test resource")

type fakeMessageStore struct {
	users     map[string]*models.User
	canSee    bool
	canManage bool
	messages  map[string]*models.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{
		users:    map[string]*models.User{},
		canSee:   true,
		messages: map[string]*models.Message{},
	}
}

func (f *fakeMessageStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, errTestNotFound
	}
	return u, nil
}
func (f *fakeMessageStore) CanUserSeeChannel(ctx context.Context, userID, channelID string) (bool, error) {
	return f.canSee, nil
}
func (f *fakeMessageStore) CanUserManageMessages(ctx context.Context, userID, channelID string) (bool, error) {
	return f.canManage, nil
}
func (f *fakeMessageStore) GetMessage(ctx context.Context, channelID, messageID string) (*models.Message, error) {
	m, ok := f.messages[messageID]
	if !ok {
		return nil, errTestNotFound
	}
	return m, nil
}
func (f *fakeMessageStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	f.messages[msg.ID] = msg
	return nil
}
func (f *fakeMessageStore) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	delete(f.messages, messageID)
	return nil
}

func setupRouter(userID string, tokens *auth.TokenService) (*gin.Engine, string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	access := tokens.IssueAccess(userID, time.Now().Add(time.Hour))
	return r, access
}

func TestSendMessageStoresMessage(t *testing.T) {
	tokens := auth.NewTokenService("test-signing-key")
	store := newFakeMessageStore()
	store.users["u1"] = &models.User{ID: "u1", Username: "alice"}
	store.users["u2"] = &models.User{ID: "u2", Username: "bob"}

	events := realtime.NewService()
	r, token := setupRouter("u1", tokens)
	RegisterMessageRoutes(r, store, events, tokens)

	channelID := models.DMChannelID("u1", "u2")
	body, _ := json.Marshal(sendMessageRequest{Content: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/channels/"+channelID+"/messages", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, store.messages, 1)
}

func TestSendMessageRejectsWhenCannotSeeChannel(t *testing.T) {
	tokens := auth.NewTokenService("test-signing-key")
	store := newFakeMessageStore()
	store.canSee = false
	store.users["u1"] = &models.User{ID: "u1", Username: "alice"}

	events := realtime.NewService()
	r, token := setupRouter("u1", tokens)
	RegisterMessageRoutes(r, store, events, tokens)

	body, _ := json.Marshal(sendMessageRequest{Content: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/channels/c1/messages", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
