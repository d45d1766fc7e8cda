package audit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the audit read path over HTTP.
// Keep these thin: parse/validate input, call the service, return JSON.
type Handlers struct {
	Service *Service
}

// List handles GET /v1/audit with optional query filters.
func (h Handlers) List(c *gin.Context) {
	if h.Service == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "audit not configured"})
		return
	}

	f := Filter{
		ActorUserID:    c.Query("actor_user_id"),
		EntityKind:     c.Query("entity_kind"),
		EntityID:       c.Query("entity_id"),
		Action:         Action(c.Query("action")),
		OrganisationID: c.Query("organisation_id"),
	}

	var err error
	if f.Page, err = intQuery(c, "page", 1); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "page must be an integer"})
		return
	}
	if f.PageSize, err = intQuery(c, "page_size", defaultPageSize); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "page_size must be an integer"})
		return
	}
	if f.From, err = timeQuery(c, "from"); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "from must be RFC3339"})
		return
	}
	if f.To, err = timeQuery(c, "to"); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "to must be RFC3339"})
		return
	}

	page, err := h.Service.List(c.Request.Context(), f)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid filter"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "audit query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "audit entries", "data": page})
}

// GetStats handles GET /v1/audit/stats.
func (h Handlers) GetStats(c *gin.Context) {
	if h.Service == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "audit not configured"})
		return
	}
	stats, err := h.Service.Stats(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "audit stats failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "audit stats", "data": stats})
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func timeQuery(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
