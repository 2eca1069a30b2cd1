// This file implements the Voice Endpoints (§4.I): join/leave,
// create/connect transport, produce/consume, list peers, and the voice
// event WS, wired the way the teacher wires its own Gin route groups in
// cmd/main.go.
package voice

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/emberhall/ember/internal/auth"
	apperrors "github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/logger"
	"github.com/emberhall/ember/internal/middleware"
	"github.com/emberhall/ember/internal/models"
	"github.com/emberhall/ember/internal/nanoid"
	"github.com/emberhall/ember/internal/realtime"
)

var joinLimiter = middleware.NewRateLimiter()

// Store is the narrow slice of db.Store the voice endpoints need: enough to
// authorize a join against guild membership and to scope the VoiceJoin/
// VoiceLeave PubSub events to the right guild (§4.J, §4.C).
type Store interface {
	CanUserSeeChannel(ctx context.Context, userID, channelID string) (bool, error)
	GetChannelGuildID(ctx context.Context, channelID string) (string, error)
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

var voiceUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RegisterRoutes mounts every /voice endpoint from §4.I's table onto
// router, gated by RequireVoiceSession except for the join (bearer-only)
// and WS (rtc-creds-only) routes.
func RegisterRoutes(router gin.IRouter, manager *Manager, store Store, tokens *auth.TokenService) {
	voiceGroup := router.Group("/voice")

	joinRateLimit := joinLimiter.KeyedMiddleware(middleware.MaxVoiceJoinAttempts, middleware.VoiceJoinRateLimitWindow,
		func(c *gin.Context) string {
			userID, _ := auth.GetUserID(c)
			return userID
		})

	voiceGroup.GET("/join", auth.RequireAuth(tokens), joinRateLimit, joinHandler(manager, store))
	voiceGroup.GET("/ws", RequireRTCCredentialsOnly(manager), wsHandler(manager, store))

	// Every other voice endpoint requires both the bearer access token
	// (proves the caller may use the voice API) and the RTC credentials
	// pinning the request to a specific, already-connected voice session
	// (§4.I "Credential extractor").
	authed := voiceGroup.Group("", auth.RequireAuth(tokens), RequireVoiceSession(manager))
	authed.GET("/leave", leaveHandler(manager, store))
	authed.GET("/peers", peersHandler(manager))
	authed.POST("/transport/create", middleware.SignalingSizeLimiter(), transportCreateHandler())
	authed.POST("/transport/connect", middleware.SignalingSizeLimiter(), transportConnectHandler())
	authed.POST("/produce", produceHandler())
	authed.POST("/consume", consumeHandler())
}

func joinHandler(manager *Manager, store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		channelID := c.Query("c")
		if channelID == "" {
			respondErr(c, apperrors.Validation("missing channel id"))
			return
		}
		userID, _ := auth.GetUserID(c)

		ok, err := store.CanUserSeeChannel(c.Request.Context(), userID, channelID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}
		if !ok {
			respondErr(c, apperrors.Authz("cannot join this voice channel"))
			return
		}

		user, err := store.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		guildID, err := store.GetChannelGuildID(c.Request.Context(), channelID)
		if err != nil {
			guildID = ""
		}

		client, err := manager.JoinVC(channelID, guildID, user.Public())
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"identity": client.Identity,
			"token":    client.Token,
			"rtp": gin.H{
				"announcedIp": manager.cfg.AnnounceIP, // the worker pool's configured announced IP; opaque to clients
			},
		})
	}
}

func leaveHandler(manager *Manager, store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, _ := VoiceClientFromContext(c)
		guildID, err := store.GetChannelGuildID(c.Request.Context(), client.Channel.ID)
		if err != nil {
			guildID = ""
		}
		manager.LeaveVC(client, guildID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

type peerInfo struct {
	Identity  string                `json:"identity"`
	User      models.PublicUserInfo `json:"user"`
	Producers []string              `json:"producers"`
}

// peersHandler reads/writes a cache-aside snapshot of the channel's FULL
// roster (no identity excluded), then filters out the requesting client
// locally. Caching a pre-filtered list would be wrong: the list differs
// per requester (each excludes only itself), so the shared cache entry
// must hold the unfiltered roster or every caller but the first would see
// someone else's exclusion applied to their own response.
func peersHandler(manager *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, _ := VoiceClientFromContext(c)
		channelID := client.Channel.ID

		var roster []peerInfo
		if !manager.PeersCacheGet(c.Request.Context(), channelID, &roster) {
			peers := client.Channel.Peers("")
			roster = make([]peerInfo, 0, len(peers))
			for _, peer := range peers {
				peer.mu.Lock()
				ids := make([]string, 0, len(peer.producers))
				for id := range peer.producers {
					ids = append(ids, id)
				}
				peer.mu.Unlock()
				roster = append(roster, peerInfo{Identity: peer.Identity, User: peer.User, Producers: ids})
			}
			manager.PeersCacheSet(c.Request.Context(), channelID, roster)
		}

		out := make([]peerInfo, 0, len(roster))
		for _, peer := range roster {
			if peer.Identity != client.Identity {
				out = append(out, peer)
			}
		}

		c.JSON(http.StatusOK, gin.H{"peers": out})
	}
}

func wsHandler(manager *Manager, store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, _ := VoiceClientFromContext(c)

		conn, err := voiceUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Voice().Debug().Err(err).Msg("voice ws upgrade failed")
			return
		}

		socketID := nanoid.MustGenerate(21)
		socket := realtime.NewSocket(socketID, conn,
			func(s *realtime.Socket, data []byte) {},
			func(s *realtime.Socket, reason realtime.DisconnectReason) {
				guildID, err := store.GetChannelGuildID(context.Background(), client.Channel.ID)
				if err != nil {
					guildID = ""
				}
				manager.LeaveVC(client, guildID)
			},
		)

		client.AttachSocket(socket)
		client.Channel.broadcastVoiceEvent(client.Identity, encodeVoiceEvent(voiceEventClientConnected, client.Identity, "", ""))
	}
}

func transportCreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		direction, err := ParseDirection(c.Query("type"))
		if err != nil {
			respondErr(c, err.(*apperrors.AppError))
			return
		}

		client, _ := VoiceClientFromContext(c)
		offer, err := client.CreateTransport(direction)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":  string(direction),
			"sdp": offer.SDP,
		})
	}
}

type connectRequest struct {
	DTLSParameters struct {
		SDP string `json:"sdp"`
	} `json:"dtlsParameters"`
}

func transportConnectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		direction, err := ParseDirection(c.Query("type"))
		if err != nil {
			respondErr(c, err.(*apperrors.AppError))
			return
		}

		var req connectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, apperrors.Validation("invalid connect body"))
			return
		}

		client, _ := VoiceClientFromContext(c)
		answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: req.DTLSParameters.SDP}
		if err := client.ConnectTransport(direction, answer); err != nil {
			respondErr(c, asAppError(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

type produceRequest struct {
	Kind          string `json:"kind" binding:"required"`
	RTPParameters any    `json:"rtpParameters"`
}

func produceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req produceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, apperrors.Validation("invalid produce body"))
			return
		}

		client, _ := VoiceClientFromContext(c)
		producer, err := client.Produce(req.Kind)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": producer.ID})
	}
}

type consumeRequest struct {
	ProducerID      string `json:"producerId" binding:"required"`
	RTPCapabilities any    `json:"rtpCapabilities"`
}

func consumeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req consumeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, apperrors.Validation("invalid consume body"))
			return
		}

		client, _ := VoiceClientFromContext(c)
		consumer, err := client.Consume(req.ProducerID)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":         consumer.ID,
			"producerId": consumer.ProducerID,
		})
	}
}

func respondErr(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}

func asAppError(err error) *apperrors.AppError {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr
	}
	return apperrors.Internal(err)
}
