package requestctx

import (
	"context"

	"github.com/gin-gonic/gin"

	"remit-backoffice/internal/auth"
	"remit-backoffice/pkg/logger"
)

const headerRequestID = "X-Request-Id"
const headerIntegrationMode = "X-Integration-Mode"

// Middleware owns the request-context lifecycle: Begin before any handler
// logic runs, End once the response has been written, success or failure.
// It must be registered after the auth middleware so identity is available.
//
// Begin failures are logged and swallowed: a broken context backend must not
// fail business requests, it only degrades audit attribution.
func Middleware(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := logger.RequestID(c)
		if rid == "" {
			rid = NewRequestID()
			c.Set("request_id", rid)
			c.Writer.Header().Set(headerRequestID, rid)
		}

		actorID, _ := auth.UserID(c.Request.Context())
		orgID, _ := auth.OrganisationID(c.Request.Context())

		meta := map[string]any{
			"method": c.Request.Method,
			"url":    c.Request.URL.String(),
		}
		if mode := c.GetHeader(headerIntegrationMode); mode != "" {
			meta["integration_mode"] = mode
		}

		rc := Context{
			ActorUserID:    actorID,
			OrganisationID: orgID,
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
			Metadata:       meta,
		}

		if err := store.Begin(c.Request.Context(), rid, rc); err != nil {
			logger.FromGin(c).Warn("request context begin failed", "err", err)
		}

		defer func() {
			// The request context is canceled once the client disconnects;
			// cleanup must still reach the backend or redis entries linger
			// until the TTL guard fires.
			if err := store.End(context.WithoutCancel(c.Request.Context()), rid); err != nil {
				logger.FromGin(c).Warn("request context end failed", "err", err)
			}
		}()

		c.Next()
	}
}
