package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/domain/template"
	"github.com/mailflow/mailflow/internal/templates"
	"github.com/mailflow/mailflow/pkg/snowflake"
)

func (r *Router) CreateTemplate(c *gin.Context) {
	var input templates.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tpl, err := r.templateSvc.Create(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, template.ErrDuplicateName) {
			c.JSON(http.StatusConflict, gin.H{"error": "template name already in use"})
			return
		}
		r.logger.Error("create_template_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, tpl)
}

func (r *Router) UpdateTemplate(c *gin.Context) {
	id, err := snowflake.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}

	var input templates.UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tpl, err := r.templateSvc.Update(c.Request.Context(), id, input)
	if err != nil {
		switch {
		case errors.Is(err, template.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		case errors.Is(err, template.ErrDuplicateName):
			c.JSON(http.StatusConflict, gin.H{"error": "template name already in use"})
		default:
			r.logger.Error("update_template_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, tpl)
}

func (r *Router) DeleteTemplate(c *gin.Context) {
	id, err := snowflake.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}

	if err := r.templateSvc.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, template.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		r.logger.Error("delete_template_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (r *Router) GetTemplate(c *gin.Context) {
	id, err := snowflake.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}

	tpl, err := r.templateSvc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		r.logger.Error("get_template_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, tpl)
}

func (r *Router) GetTemplateByName(c *gin.Context) {
	tpl, err := r.templateSvc.GetByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		r.logger.Error("get_template_by_name_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, tpl)
}

func (r *Router) ListTemplates(c *gin.Context) {
	items, err := r.templateSvc.List(c.Request.Context())
	if err != nil {
		r.logger.Error("list_templates_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, items)
}
