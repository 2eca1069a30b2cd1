// This file implements the friend request lifecycle adapters: send, accept
// (add as friend and clear both pending rows), decline/withdraw, and
// remove — the real callers for FriendRequestUpdate/FriendRequestRemove/
// FriendRemove (§4.C).
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emberhall/ember/internal/auth"
	apperrors "github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/models"
	"github.com/emberhall/ember/internal/realtime"
)

// FriendStore is the slice of db.Store the friend routes need.
type FriendStore interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	IsUserFriend(ctx context.Context, userID, otherID string) (bool, error)
	AddFriends(ctx context.Context, userA, userB string) error
	RemoveFriend(ctx context.Context, userID, otherID string) error
	ListIncomingFriendRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	ListOutgoingFriendRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	CreateFriendRequest(ctx context.Context, fromID, toID string) error
	RemoveFriendRequest(ctx context.Context, fromID, toID string) error
}

// RegisterFriendRoutes mounts the friend request endpoints under /friends,
// every one scoped to the authenticated caller.
func RegisterFriendRoutes(router gin.IRouter, store FriendStore, events *realtime.Service, tokens *auth.TokenService) {
	group := router.Group("/friends", auth.RequireAuth(tokens))
	group.GET("", listFriendsHandler(store))
	group.POST("/requests/:userId", sendFriendRequestHandler(store, events))
	group.POST("/requests/:userId/accept", acceptFriendRequestHandler(store, events))
	group.DELETE("/requests/:userId", withdrawFriendRequestHandler(store, events))
	group.DELETE("/:userId", removeFriendHandler(store, events))
}

func listFriendsHandler(store FriendStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c)

		incoming, err := store.ListIncomingFriendRequests(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}
		outgoing, err := store.ListOutgoingFriendRequests(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"incoming": incoming, "outgoing": outgoing})
	}
}

func sendFriendRequestHandler(store FriendStore, events *realtime.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c)
		targetID := c.Param("userId")
		if targetID == userID {
			respondErr(c, apperrors.Validation("cannot friend yourself"))
			return
		}

		already, err := store.IsUserFriend(c.Request.Context(), userID, targetID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}
		if already {
			respondErr(c, apperrors.Conflict("already friends"))
			return
		}

		if err := store.CreateFriendRequest(c.Request.Context(), userID, targetID); err != nil {
			respondErr(c, asAppError(err))
			return
		}

		sender, err := store.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		events.FriendRequestUpdate(targetID, sender.Public(), models.FriendRequestSent)
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	}
}

// acceptFriendRequestHandler accepts a pending request from :userId, turning
// it into a friendship and clearing the pending row in both directions.
func acceptFriendRequestHandler(store FriendStore, events *realtime.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c)
		fromID := c.Param("userId")

		if err := store.AddFriends(c.Request.Context(), userID, fromID); err != nil {
			respondErr(c, asAppError(err))
			return
		}
		_ = store.RemoveFriendRequest(c.Request.Context(), fromID, userID)
		_ = store.RemoveFriendRequest(c.Request.Context(), userID, fromID)

		accepter, err := store.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		events.FriendRequestUpdate(fromID, accepter.Public(), models.FriendRequestAccepted)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// withdrawFriendRequestHandler lets either party clear a pending request:
// the sender withdrawing it, or the recipient declining it. Both look the
// same from the store's point of view (delete the from->to row); only the
// id of whoever is notified differs, so the caller is always the one
// telling, never the one told.
func withdrawFriendRequestHandler(store FriendStore, events *realtime.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c)
		otherID := c.Param("userId")

		if err := store.RemoveFriendRequest(c.Request.Context(), userID, otherID); err != nil {
			respondErr(c, asAppError(err))
			return
		}
		_ = store.RemoveFriendRequest(c.Request.Context(), otherID, userID)

		self, err := store.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		events.FriendRequestRemove(otherID, self.Public())
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// removeFriendHandler ends an existing friendship (§9 Open Question: the
// handler re-reads the "me" user via GetUserByID after authorization,
// matching the original implementation's remove_friend.rs, even though
// the authenticated identity is already in scope).
func removeFriendHandler(store FriendStore, events *realtime.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c)
		otherID := c.Param("userId")

		if err := store.RemoveFriend(c.Request.Context(), userID, otherID); err != nil {
			respondErr(c, asAppError(err))
			return
		}

		self, err := store.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		events.FriendRemove(otherID, self.Public())
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
