package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TokenStore defines the interface for token storage
type TokenStore interface {
	// ValidateToken validates a token and returns the APIToken
	ValidateToken(token string) (*APIToken, error)
	// GetTokenByHash retrieves a token by its hash
	GetTokenByHash(tokenHash string) (*APIToken, error)
	// CreateToken creates a new token and returns the plain token and APIToken
	CreateToken(principal, site string, allowedPaths []string, permissions []Permission, expiresAt int64) (string, *APIToken, error)
	// DeleteToken deletes a token by its hash
	DeleteToken(tokenHash string) error
}

// InMemoryTokenStore is an in-memory implementation of TokenStore
type InMemoryTokenStore struct {
	tokens map[string]*APIToken // tokenHash -> APIToken
	mu     sync.RWMutex
}

// NewInMemoryTokenStore creates a new in-memory token store
func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{
		tokens: make(map[string]*APIToken),
	}
}

// hashToken hashes a token using SHA-256
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateToken validates a token and returns the APIToken
func (s *InMemoryTokenStore) ValidateToken(token string) (*APIToken, error) {
	return s.GetTokenByHash(hashToken(token))
}

// GetTokenByHash retrieves a token by its hash
func (s *InMemoryTokenStore) GetTokenByHash(tokenHash string) (*APIToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apiToken, exists := s.tokens[tokenHash]
	if !exists {
		return nil, TokenNotFoundError{TokenHash: tokenHash}
	}

	if apiToken.IsExpired(time.Now().Unix()) {
		return nil, UnauthorizedError{Reason: "token expired"}
	}

	return apiToken, nil
}

// CreateToken creates a new token and returns the plain token and APIToken
func (s *InMemoryTokenStore) CreateToken(principal, site string, allowedPaths []string, permissions []Permission, expiresAt int64) (string, *APIToken, error) {
	if site == "" {
		return "", nil, fmt.Errorf("token site cannot be empty")
	}

	plainToken := uuid.New().String()
	tokenHash := hashToken(plainToken)

	apiToken := &APIToken{
		TokenHash:    tokenHash,
		Principal:    principal,
		Site:         site,
		AllowedPaths: allowedPaths,
		Permissions:  permissions,
		CreatedAt:    time.Now().Unix(),
		ExpiresAt:    expiresAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[tokenHash] = apiToken

	log.Info().
		Str("principal", principal).
		Str("site", site).
		Int("permissions", len(permissions)).
		Msg("API token created")

	return plainToken, apiToken, nil
}

// DeleteToken deletes a token by its hash
func (s *InMemoryTokenStore) DeleteToken(tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[tokenHash]; !exists {
		return TokenNotFoundError{TokenHash: tokenHash}
	}

	delete(s.tokens, tokenHash)

	log.Info().Str("token_hash", tokenHash).Msg("API token deleted")
	return nil
}

// AddDefaultToken adds an administrator token for development
func (s *InMemoryTokenStore) AddDefaultToken(site string) (string, error) {
	plainToken, _, err := s.CreateToken("admin", site, nil, AllPermissions(), 0)
	if err != nil {
		return "", fmt.Errorf("failed to create default token: %w", err)
	}

	log.Info().
		Str("token", plainToken).
		Msg("Default API token created (for development/testing)")

	return plainToken, nil
}
