package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillswap/chatsync/internal/devserver/store"
)

// SessionCookie is the name of the cookie carrying the signed session token.
const SessionCookie = "skillswap_session"

const sessionTTL = 24 * time.Hour

var errInvalidSession = errors.New("invalid session token")

type sessionClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// sessionManager signs and verifies session cookies.
type sessionManager struct {
	key []byte
}

func newSessionManager(key []byte) *sessionManager {
	return &sessionManager{key: key}
}

// issue returns a signed session token for userID.
func (m *sessionManager) issue(userID string) (string, error) {
	claims := &sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.key)
}

// parse verifies a session token and returns the user id inside it.
func (m *sessionManager) parse(tokenString string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.key, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.UserID == "" {
		return "", errInvalidSession
	}
	return claims.UserID, nil
}

// SeedUser describes a user to create at startup.
type SeedUser struct {
	Username    string
	Password    string
	DisplayName string
	AvatarURL   string
}

// Seed creates the given users, hashing their passwords with bcrypt. Existing
// usernames are skipped so re-seeding a persistent store is harmless.
func Seed(s store.Store, users []SeedUser) ([]*store.Account, error) {
	accounts := make([]*store.Account, 0, len(users))
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		account, err := s.CreateUser(u.Username, u.DisplayName, u.AvatarURL, string(hash))
		if errors.Is(err, store.ErrUserAlreadyExists) {
			account, err = s.GetAccountByUsername(u.Username)
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}
