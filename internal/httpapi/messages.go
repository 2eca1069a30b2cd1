// This file implements the send/delete message and typing indicator
// adapters that give the PubSub fabric's Message/DeleteMessage/Typing
// events (§4.C) a real caller, DM dual-dispatch included.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emberhall/ember/internal/auth"
	apperrors "github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/models"
	"github.com/emberhall/ember/internal/nanoid"
	"github.com/emberhall/ember/internal/realtime"
)

// MessageStore is the slice of db.Store the message routes need.
type MessageStore interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	CanUserSeeChannel(ctx context.Context, userID, channelID string) (bool, error)
	CanUserManageMessages(ctx context.Context, userID, channelID string) (bool, error)
	GetMessage(ctx context.Context, channelID, messageID string) (*models.Message, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// RegisterMessageRoutes mounts the send/delete/typing endpoints under
// /channels/:channelId, gated by the caller's own access token.
func RegisterMessageRoutes(router gin.IRouter, store MessageStore, events *realtime.Service, tokens *auth.TokenService) {
	group := router.Group("/channels/:channelId", auth.RequireAuth(tokens))
	group.POST("/messages", sendMessageHandler(store, events))
	group.DELETE("/messages/:messageId", deleteMessageHandler(store, events))
	group.POST("/typing", typingHandler(store, events))
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func sendMessageHandler(store MessageStore, events *realtime.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		channelID := c.Param("channelId")
		userID, _ := auth.GetUserID(c)

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, apperrors.Validation("message content required"))
			return
		}

		ok, err := store.CanUserSeeChannel(c.Request.Context(), userID, channelID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}
		if !ok {
			respondErr(c, apperrors.Authz("cannot post in this channel"))
			return
		}

		msg := &models.Message{
			ID:        nanoid.Identity(),
			ChannelID: channelID,
			AuthorID:  userID,
			Content:   req.Content,
		}
		if err := store.InsertMessage(c.Request.Context(), msg); err != nil {
			respondErr(c, asAppError(err))
			return
		}

		if recipientID, isDM := dmRecipient(channelID, userID); isDM {
			sender, err := store.GetUserByID(c.Request.Context(), userID)
			if err != nil {
				respondErr(c, asAppError(err))
				return
			}
			recipient, err := store.GetUserByID(c.Request.Context(), recipientID)
			if err != nil {
				respondErr(c, asAppError(err))
				return
			}
			events.DirectMessage(sender.Public(), recipient.Public(), msg)
		} else {
			events.Message(channelID, msg)
		}

		c.JSON(http.StatusCreated, msg)
	}
}

// dmRecipient reports the other participant in a DM channel id ("a:b",
// §4.J) and whether channelID is in fact a DM channel at all.
func dmRecipient(channelID, selfID string) (string, bool) {
	parts := strings.SplitN(channelID, ":", 2)
	if len(parts) != 2 {
		return "", false
	}
	if parts[0] == selfID {
		return parts[1], true
	}
	if parts[1] == selfID {
		return parts[0], true
	}
	return "", false
}

func deleteMessageHandler(store MessageStore, events *realtime.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		channelID := c.Param("channelId")
		messageID := c.Param("messageId")
		userID, _ := auth.GetUserID(c)

		msg, err := store.GetMessage(c.Request.Context(), channelID, messageID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		if msg.AuthorID != userID {
			canManage, err := store.CanUserManageMessages(c.Request.Context(), userID, channelID)
			if err != nil {
				respondErr(c, asAppError(err))
				return
			}
			if !canManage {
				respondErr(c, apperrors.Authz("cannot delete this message"))
				return
			}
		}

		if err := store.DeleteMessage(c.Request.Context(), channelID, messageID); err != nil {
			respondErr(c, asAppError(err))
			return
		}

		events.DeleteMessage(channelID, messageID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func typingHandler(store MessageStore, events *realtime.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		channelID := c.Param("channelId")
		userID, _ := auth.GetUserID(c)

		ok, err := store.CanUserSeeChannel(c.Request.Context(), userID, channelID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}
		if !ok {
			respondErr(c, apperrors.Authz("cannot type in this channel"))
			return
		}

		user, err := store.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		events.Typing(channelID, user.Public())
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
