package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/corgi-recs/corgi/internal/cache"
	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/pseudonym"
	"github.com/corgi-recs/corgi/internal/upstream"
	"github.com/corgi-recs/corgi/internal/util"
)

// CredentialVerifier resolves an upstream access token to its account
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, token string) (*models.Account, error)
}

// TokenCache remembers which alias a token resolved to
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Identity resolves bearer tokens to pseudonymous user aliases.
// Raw account ids never leave this middleware.
type Identity struct {
	verifier CredentialVerifier
	aliases  pseudonym.Aliaser
	cache    TokenCache
	ttl      time.Duration
}

// NewIdentity creates the identity resolver
func NewIdentity(verifier CredentialVerifier, aliases pseudonym.Aliaser) *Identity {
	return &Identity{verifier: verifier, aliases: aliases}
}

// WithCache caches token lookups for ttl
func (i *Identity) WithCache(c TokenCache, ttl time.Duration) *Identity {
	i.cache = c
	i.ttl = ttl
	return i
}

// Middleware sets the caller's alias and token on the context.
// Requests without a bearer token continue anonymously; a rejected token is a 401.
func (i *Identity) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}

		alias, err := i.resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, upstream.ErrUnauthorized) {
				util.RespondUnauthorized(c, "access token rejected by upstream instance")
				return
			}
			logger.Log.Warn("Credential verification failed, continuing anonymously", zap.Error(err))
			c.Next()
			return
		}

		c.Set(util.UserAliasKey, alias)
		c.Set(util.AccessTokenKey, token)
		c.Next()
	}
}

func (i *Identity) resolve(ctx context.Context, token string) (string, error) {
	// the cache key is itself a keyed hash, so tokens are never stored
	key := "corgi:token:" + i.aliases.Alias(token)
	if i.cache != nil {
		if alias, err := i.cache.Get(ctx, key); err == nil && alias != "" {
			RecordCacheHit("token")
			return alias, nil
		} else if err != nil && !cache.IsMiss(err) {
			logger.Log.Warn("Token cache read failed", zap.Error(err))
		}
		RecordCacheMiss("token")
	}

	account, err := i.verifier.VerifyCredentials(ctx, token)
	if err != nil {
		return "", err
	}
	id := account.ID
	if id == "" {
		id = account.Username
	}
	alias := i.aliases.Alias(id)

	if i.cache != nil && i.ttl > 0 {
		if err := i.cache.SetEx(ctx, key, alias, i.ttl); err != nil {
			logger.Log.Warn("Token cache write failed", zap.Error(err))
		}
	}
	return alias, nil
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
