package admin

import (
	"errors"
	"net/http"

	"remit-backoffice/internal/records"
	"remit-backoffice/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers is the generic back-office CRUD surface. Every mutation goes
// through the configured executor, so when that executor is the audit
// interceptor every admin write leaves a trail.
type Handlers struct {
	Exec   records.Executor
	Schema records.Schema
}

// Create handles POST /v1/admin/:kind.
func (h Handlers) Create(c *gin.Context) {
	kind, ok := h.kind(c)
	if !ok {
		return
	}
	var data records.Record
	if err := c.ShouldBindJSON(&data); err != nil {
		respondErr(c, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.Exec.Execute(c.Request.Context(), records.Mutation{
		Op:        records.OpCreate,
		Kind:      kind,
		Data:      data,
		RequestID: logger.RequestID(c),
	})
	if err != nil {
		respondExecErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": kind + " created", "data": res.Record})
}

// Update handles PATCH /v1/admin/:kind/:id.
func (h Handlers) Update(c *gin.Context) {
	kind, ok := h.kind(c)
	if !ok {
		return
	}
	var data records.Record
	if err := c.ShouldBindJSON(&data); err != nil {
		respondErr(c, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.Exec.Execute(c.Request.Context(), records.Mutation{
		Op:        records.OpUpdate,
		Kind:      kind,
		Selector:  records.Record{"id": c.Param("id")},
		Data:      data,
		RequestID: logger.RequestID(c),
	})
	if err != nil {
		respondExecErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": kind + " updated", "data": res.Record})
}

// Delete handles DELETE /v1/admin/:kind/:id.
func (h Handlers) Delete(c *gin.Context) {
	kind, ok := h.kind(c)
	if !ok {
		return
	}
	res, err := h.Exec.Execute(c.Request.Context(), records.Mutation{
		Op:        records.OpDelete,
		Kind:      kind,
		Selector:  records.Record{"id": c.Param("id")},
		RequestID: logger.RequestID(c),
	})
	if err != nil {
		respondExecErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": kind + " deleted", "data": res.Record})
}

// Get handles GET /v1/admin/:kind/:id.
func (h Handlers) Get(c *gin.Context) {
	kind, ok := h.kind(c)
	if !ok {
		return
	}
	res, err := h.Exec.Execute(c.Request.Context(), records.Mutation{
		Op:       records.OpFindOne,
		Kind:     kind,
		Selector: records.Record{"id": c.Param("id")},
	})
	if err != nil {
		respondExecErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": kind, "data": res.Record})
}

// kind validates the :kind path parameter against the schema up front so an
// unknown kind is a clean 404 instead of a store error.
func (h Handlers) kind(c *gin.Context) (string, bool) {
	kind := c.Param("kind")
	if _, ok := h.Schema.Table(kind); !ok {
		respondErr(c, http.StatusNotFound, "unknown entity kind")
		return "", false
	}
	return kind, true
}

func respondExecErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, records.ErrNotFound):
		respondErr(c, http.StatusNotFound, "not found")
	case errors.Is(err, records.ErrInvalidField), errors.Is(err, records.ErrEmptyMutation):
		respondErr(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, records.ErrUnknownKind):
		respondErr(c, http.StatusNotFound, "unknown entity kind")
	default:
		logger.FromGin(c).Error("admin mutation failed", "err", err)
		respondErr(c, http.StatusInternalServerError, "operation failed")
	}
}

func respondErr(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}
