package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/domain/recipient"
	"github.com/mailflow/mailflow/internal/recipients"
	"github.com/mailflow/mailflow/pkg/snowflake"
)

func (r *Router) CreateRecipient(c *gin.Context) {
	var input recipients.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rcp, err := r.recipientSvc.Create(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, recipient.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": "recipient email already registered"})
			return
		}
		r.logger.Error("create_recipient_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, rcp)
}

func (r *Router) UpdateRecipient(c *gin.Context) {
	id, err := snowflake.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipient id"})
		return
	}

	var input recipients.UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rcp, err := r.recipientSvc.Update(c.Request.Context(), id, input)
	if err != nil {
		switch {
		case errors.Is(err, recipient.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "recipient not found"})
		case errors.Is(err, recipient.ErrDuplicateEmail):
			c.JSON(http.StatusConflict, gin.H{"error": "recipient email already registered"})
		default:
			r.logger.Error("update_recipient_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, rcp)
}

func (r *Router) DeleteRecipient(c *gin.Context) {
	id, err := snowflake.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipient id"})
		return
	}

	if err := r.recipientSvc.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, recipient.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "recipient not found"})
			return
		}
		r.logger.Error("delete_recipient_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (r *Router) GetRecipient(c *gin.Context) {
	id, err := snowflake.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipient id"})
		return
	}

	rcp, err := r.recipientSvc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, recipient.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "recipient not found"})
			return
		}
		r.logger.Error("get_recipient_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, rcp)
}

func (r *Router) ListRecipients(c *gin.Context) {
	items, err := r.recipientSvc.List(c.Request.Context())
	if err != nil {
		r.logger.Error("list_recipients_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, items)
}
