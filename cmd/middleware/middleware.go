package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"filmclub/internal/auth"
	"filmclub/internal/dto"
)

const AdminTokenHeader = "x-admin-token"

func LoggingMiddleware() func(*ginext.Context) {
	return func(c *ginext.Context) {
		start := time.Now()
		c.Next()

		evt := zlog.Logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = zlog.Logger.Error()
		}
		evt.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request handled")
	}
}

// AdminOnly accepts the admin token from the x-admin-token header or an
// Authorization bearer; either one matching is enough. An empty token means
// the server is misconfigured.
func AdminOnly(token string) func(*ginext.Context) {
	return func(c *ginext.Context) {
		if token == "" {
			dto.ErrorResponse(c, http.StatusInternalServerError, dto.ServerMisconfigured, "Server misconfigured: ADMIN_TOKEN not set")
			return
		}

		header := c.GetHeader(AdminTokenHeader)
		bearer, _ := auth.BearerToken(c.GetHeader("Authorization"))
		if header == "" && bearer == "" {
			dto.UnauthorizedError(c, "Missing admin token")
			return
		}
		if !tokenMatches(header, token) && !tokenMatches(bearer, token) {
			dto.ForbiddenError(c, "Invalid admin token")
			return
		}

		c.Next()
	}
}

func tokenMatches(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// Authenticate resolves the bearer JWT into an *auth.User. When required is
// false a missing or invalid token lets the request through anonymously.
func Authenticate(v *auth.Verifier, required bool) func(*ginext.Context) {
	return func(c *ginext.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			if required {
				dto.UnauthorizedError(c, "Missing bearer token")
				return
			}
			c.Next()
			return
		}

		user, err := v.Verify(token)
		if err != nil {
			if !required {
				zlog.Logger.Debug().Err(err).Msg("ignoring invalid bearer token")
				c.Next()
				return
			}
			if errors.Is(err, auth.ErrNotConfigured) {
				dto.ErrorResponse(c, http.StatusInternalServerError, dto.ServerMisconfigured, "Server misconfigured: JWT secret not set")
				return
			}
			dto.UnauthorizedError(c, "Invalid token")
			return
		}

		auth.WithUser(c, user)
		c.Next()
	}
}

// CORS reflects allow-listed origins with credentials. Preflight requests are
// answered with 204.
func CORS(origins []string) func(*ginext.Context) {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			_, ok := allowed[origin]
			return ok
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "X-Requested-With", "X-CSRF-Token", "Content-Type", "Accept", AdminTokenHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
