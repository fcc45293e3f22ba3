// Package stubserver is an in-memory implementation of the backend
// surface the companion consumes: the completion-toggle and partner
// endpoints plus the partner event stream. It backs cmd/kanso-stub for
// local development and the e2e test, so nothing here talks to real
// storage.
package stubserver

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/comitanigiacomo/kanso-companion/internal/core/domain"
)

const issuer = "kanso-stub"

type habitRecord struct {
	ownerID string
	habit   domain.Habit
}

type Server struct {
	secret   []byte
	tokenTTL time.Duration

	mu       sync.Mutex
	users    map[string]domain.Partner
	habits   map[string]*habitRecord
	partners map[string][]string
	subs     map[string][]chan frame
}

func New(secret string) *Server {
	return &Server{
		secret:   []byte(secret),
		tokenTTL: 24 * time.Hour,
		users:    make(map[string]domain.Partner),
		habits:   make(map[string]*habitRecord),
		partners: make(map[string][]string),
		subs:     make(map[string][]chan frame),
	}
}

// AddUser registers a user the stub knows about. Partners are looked
// up by username or email through this directory.
func (s *Server) AddUser(id, username, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = domain.Partner{ID: id, Username: username, Email: email}
}

// SeedHabit stores a habit owned by the given user. A missing ID gets
// one assigned.
func (s *Server) SeedHabit(ownerID string, habit domain.Habit) domain.Habit {
	if habit.ID == "" {
		habit.ID = uuid.NewString()
	}
	if habit.Completions == nil {
		habit.Completions = domain.CompletionMap{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.habits[habit.ID] = &habitRecord{ownerID: ownerID, habit: habit}
	return habit
}

// Link makes partnerID a partner of userID without going through the
// API, for seeding test fixtures.
func (s *Server) Link(userID, partnerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partners[userID] = append(s.partners[userID], partnerID)
}

// IssueToken signs a short-lived HS256 token for a user.
func (s *Server) IssueToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(s.tokenTTL).Unix(),
		"iat": time.Now().Unix(),
		"iss": issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing stub token: %w", err)
	}
	return signed, nil
}

func (s *Server) validateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("invalid token subject")
	}

	return userID, nil
}

func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		fields := strings.Fields(header)
		if len(fields) < 2 || fields[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		userID, err := s.validateToken(fields[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

// Router builds the gin engine serving the full stub API.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := router.Group("/api/v1")
	apiV1.Use(s.authRequired())
	{
		apiV1.PUT("/habits/:id/completions/:date", s.toggleCompletion)
		apiV1.POST("/habits/:id/copy", s.copyHabit)
		apiV1.POST("/partners", s.addPartner)
		apiV1.DELETE("/partners/:id", s.removePartner)
		apiV1.GET("/partners/:id/habits", s.partnerHabits)
		apiV1.GET("/partners/events", s.events)
	}

	return router
}

func callerID(c *gin.Context) string {
	id, _ := c.Get("userID")
	s, _ := id.(string)
	return s
}
