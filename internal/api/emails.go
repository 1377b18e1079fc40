package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/domain/delivery"
	"github.com/mailflow/mailflow/internal/usecase/dispatch"
	"github.com/mailflow/mailflow/pkg/snowflake"
)

// SendEmails dispatches a template to a list of recipients.
func (r *Router) SendEmails(c *gin.Context) {
	var req dispatch.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.RecipientIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_ids must not be empty"})
		return
	}

	result, err := r.dispatchUC.Send(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrTemplateNotFound),
			errors.Is(err, dispatch.ErrAttachmentNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": result.Message})
		default:
			r.logger.Error("send_emails_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReprocessEmail resets a delivery log and queues it again.
func (r *Router) ReprocessEmail(c *gin.Context) {
	id := c.Param("id")

	if err := r.dispatchUC.Reprocess(c.Request.Context(), id); err != nil {
		if errors.Is(err, delivery.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "delivery log not found"})
			return
		}
		r.logger.Error("reprocess_failed", zap.Error(err), zap.String("id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "email queued for reprocessing"})
}

// ProcessPending re-publishes every Pending delivery log.
func (r *Router) ProcessPending(c *gin.Context) {
	count, err := r.dispatchUC.ProcessPending(c.Request.Context())
	if err != nil {
		r.logger.Error("process_pending_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"published": count})
}

// GetLog returns one delivery log.
func (r *Router) GetLog(c *gin.Context) {
	log, err := r.dispatchUC.Log(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, delivery.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "delivery log not found"})
			return
		}
		r.logger.Error("get_log_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, log)
}

// GetLogsByStatus returns delivery logs in a status. Status input is
// case-insensitive; output uses the canonical spelling.
func (r *Router) GetLogsByStatus(c *gin.Context) {
	status, err := delivery.ParseStatus(c.Param("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid status, expected one of: Pending, Processing, Sent, Failed, Retrying",
		})
		return
	}

	logs, err := r.dispatchUC.LogsByStatus(c.Request.Context(), status)
	if err != nil {
		r.logger.Error("get_logs_by_status_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, logs)
}

// GetLogsByRecipient returns a recipient's delivery logs.
func (r *Router) GetLogsByRecipient(c *gin.Context) {
	recipientID, err := snowflake.ParseID(c.Param("recipientId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipient id"})
		return
	}

	logs, err := r.dispatchUC.LogsByRecipient(c.Request.Context(), recipientID)
	if err != nil {
		r.logger.Error("get_logs_by_recipient_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, logs)
}

// GetStatistics returns per-status delivery counts.
func (r *Router) GetStatistics(c *gin.Context) {
	stats, err := r.dispatchUC.Statistics(c.Request.Context())
	if err != nil {
		r.logger.Error("get_statistics_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
