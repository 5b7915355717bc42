package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/ndpcatalog/internal/account/domain"
	auditdomain "github.com/smallbiznis/ndpcatalog/internal/audit/domain"
	obscontext "github.com/smallbiznis/ndpcatalog/internal/observability/context"
	"github.com/smallbiznis/ndpcatalog/internal/observability/logger"
	"go.uber.org/zap"
)

const contextAccountKey = "account"

// ClientContext stores the caller address for audit entries.
func (s *Server) ClientContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := obscontext.WithClient(c.Request.Context(), c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// IdentityRequired resolves the bearer token to a staging account.
func (s *Server) IdentityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := s.accountSvc.ResolveLocal(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeAccount), account.Name)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextAccountKey, account)
		c.Next()
	}
}

func currentAccount(c *gin.Context) *accountdomain.Account {
	value, ok := c.Get(contextAccountKey)
	if !ok {
		return nil
	}
	account, _ := value.(*accountdomain.Account)
	return account
}

// RateLimit throttles /ndp callers per client address.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		result, err := s.limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			// limiter backend errors fail open
			logger.FromContext(ctx).Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			logger.FromContext(ctx).Warn("rate limit exceeded", zap.String("endpoint", endpoint))
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint)
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
