package jwt

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ecoloop/chatsync/pkg/constant"
)

// Token status constants
const (
	TokenStatusNormal = 1 // Token is valid
	TokenStatusKicked = 2 // Token was kicked by a newer login
	TokenStatusLogout = 3 // Token was logged out
)

// TokenStore manages issued tokens in Redis so that logins can be revoked
// or kicked before the JWT itself expires.
type TokenStore struct {
	rdb          *redis.Client
	accessExpire time.Duration
}

// NewTokenStore creates a new TokenStore
func NewTokenStore(rdb *redis.Client, expireHours int) *TokenStore {
	return &TokenStore{
		rdb:          rdb,
		accessExpire: time.Duration(expireHours) * time.Hour,
	}
}

// tokenKey generates the Redis key for a user's tokens on a platform
func (s *TokenStore) tokenKey(uid string, platformId int) string {
	return fmt.Sprintf(constant.RedisKeyToken(), uid, platformId)
}

// StoreToken stores a token in Redis with normal status
func (s *TokenStore) StoreToken(ctx context.Context, uid string, platformId int, token string) error {
	key := s.tokenKey(uid, platformId)

	if err := s.rdb.HSet(ctx, key, token, TokenStatusNormal).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	if err := s.rdb.Expire(ctx, key, s.accessExpire).Err(); err != nil {
		return fmt.Errorf("failed to set token expiration: %w", err)
	}
	return nil
}

// TokenStatus returns the stored status of a token, 0 if unknown.
func (s *TokenStore) TokenStatus(ctx context.Context, uid string, platformId int, token string) (int, error) {
	key := s.tokenKey(uid, platformId)

	statusStr, err := s.rdb.HGet(ctx, key, token).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get token status: %w", err)
	}

	status, err := strconv.Atoi(statusStr)
	if err != nil {
		return 0, fmt.Errorf("invalid token status value: %w", err)
	}
	return status, nil
}

// IsTokenValid checks that the token exists and has normal status
func (s *TokenStore) IsTokenValid(ctx context.Context, uid string, platformId int, token string) (bool, error) {
	status, err := s.TokenStatus(ctx, uid, platformId, token)
	if err != nil {
		return false, err
	}
	return status == TokenStatusNormal, nil
}

// InvalidateToken marks a token as logged out
func (s *TokenStore) InvalidateToken(ctx context.Context, uid string, platformId int, token string) error {
	key := s.tokenKey(uid, platformId)

	exists, err := s.rdb.HExists(ctx, key, token).Result()
	if err != nil {
		return fmt.Errorf("failed to check token existence: %w", err)
	}
	if !exists {
		return nil
	}

	if err := s.rdb.HSet(ctx, key, token, TokenStatusLogout).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

// KickOtherTokens marks all other normal tokens for this user/platform as
// kicked and returns them.
func (s *TokenStore) KickOtherTokens(ctx context.Context, uid string, platformId int, currentToken string) ([]string, error) {
	key := s.tokenKey(uid, platformId)

	tokens, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}

	var kicked []string
	for token, statusStr := range tokens {
		if token == currentToken {
			continue
		}
		status, _ := strconv.Atoi(statusStr)
		if status == TokenStatusNormal {
			if err := s.rdb.HSet(ctx, key, token, TokenStatusKicked).Err(); err != nil {
				return nil, fmt.Errorf("failed to kick token: %w", err)
			}
			kicked = append(kicked, token)
		}
	}
	return kicked, nil
}
