// Package devserver is an in-process stub of the chat backend contract:
// cookie-session auth, the three /chat endpoints, and the push socket. It
// exists so the synchronization engine can be exercised end to end without
// the production backend.
package devserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillswap/chatsync/internal/devserver/store"
	"github.com/skillswap/chatsync/internal/models"
)

// Config configures a Server.
type Config struct {
	Store store.Store
	// SessionKey signs session cookies. Required.
	SessionKey []byte
	// AllowedOrigins for CORS; empty allows none (fine for same-origin
	// tests and the CLI, which don't send an Origin header).
	AllowedOrigins []string
}

// Server implements the backend contract over a Store and a socket hub.
type Server struct {
	store    store.Store
	hub      *hub
	sessions *sessionManager
	engine   *gin.Engine
}

// New assembles the router and starts the hub. The caller serves
// s.Handler() however it likes (httptest in tests, http.Server in cmd).
func New(cfg Config) *Server {
	s := &Server{
		store:    cfg.Store,
		hub:      newHub(),
		sessions: newSessionManager(cfg.SessionKey),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if len(cfg.AllowedOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	engine.POST("/auth/login", s.login)
	engine.GET("/socket", s.handleSocket)

	chat := engine.Group("/chat", s.requireSession)
	{
		chat.GET("/", s.listConversations)
		chat.GET("/:conversationID/", s.getHistory)
		chat.POST("/send", s.sendMessage)
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine = engine
	go s.hub.run()
	return s
}

// Handler returns the HTTP handler for the stub backend.
func (s *Server) Handler() http.Handler { return s.engine }

// Close stops the hub loop. Call once the HTTP server has stopped serving;
// safe to call more than once.
func (s *Server) Close() { s.hub.stop() }

// requireSession authenticates the session cookie and stashes the user id in
// the request context.
func (s *Server) requireSession(c *gin.Context) {
	token, err := c.Cookie(SessionCookie)
	if err != nil || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	userID, err := s.sessions.parse(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return
	}
	c.Set("userID", userID)
	c.Next()
}

func (s *Server) login(c *gin.Context) {
	var req models.UserLogin
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := s.store.GetAccountByUsername(req.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.sessions.issue(account.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.SetCookie(SessionCookie, token, int(sessionTTL/time.Second), "/", "", false, true)
	c.JSON(http.StatusOK, account.User)
}

func (s *Server) listConversations(c *gin.Context) {
	userID := c.GetString("userID")
	conversations, err := s.store.ListConversations(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (s *Server) getHistory(c *gin.Context) {
	userID := c.GetString("userID")
	conversationID := c.Param("conversationID")

	conv, err := s.store.GetConversation(conversationID)
	if errors.Is(err, store.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !isParticipant(conv, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	messages, err := s.store.ListMessages(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (s *Server) sendMessage(c *gin.Context) {
	userID := c.GetString("userID")

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is empty"})
		return
	}

	conv, err := s.store.GetConversation(req.ConversationID)
	if errors.Is(err, store.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !isParticipant(conv, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	msg, err := s.store.CreateMessage(req.ConversationID, userID, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	participantIDs := make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		participantIDs = append(participantIDs, p.ID)
	}
	s.hub.notify(participantIDs, socketEvent{
		Type:           "receive_message",
		ConversationID: msg.ConversationID,
	})

	c.JSON(http.StatusCreated, msg)
}

func isParticipant(conv *models.Conversation, userID string) bool {
	for _, p := range conv.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}
