package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/api/middleware"
	"github.com/mailflow/mailflow/internal/config"
	"github.com/mailflow/mailflow/internal/recipients"
	"github.com/mailflow/mailflow/internal/templates"
	"github.com/mailflow/mailflow/internal/usecase/dispatch"
)

type Router struct {
	engine       *gin.Engine
	server       *http.Server
	cfg          *config.Config
	dispatchUC   *dispatch.UseCase
	templateSvc  *templates.Service
	recipientSvc *recipients.Service
	logger       *zap.Logger
}

func NewRouter(
	cfg *config.Config,
	dispatchUC *dispatch.UseCase,
	templateSvc *templates.Service,
	recipientSvc *recipients.Service,
	logger *zap.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())
	r.Use(middleware.Logger(logger))

	api := &Router{
		engine:       r,
		cfg:          cfg,
		dispatchUC:   dispatchUC,
		templateSvc:  templateSvc,
		recipientSvc: recipientSvc,
		logger:       logger,
	}

	api.RegisterRoutes()
	return api
}

func (r *Router) RegisterRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api")
	{
		emails := api.Group("/emails")
		{
			emails.POST("/send", r.SendEmails)
			emails.POST("/process-pending", r.ProcessPending)
			emails.POST("/:id/reprocess", r.ReprocessEmail)
			emails.GET("/statistics", r.GetStatistics)
			emails.GET("/logs/by-status/:status", r.GetLogsByStatus)
			emails.GET("/logs/by-recipient/:recipientId", r.GetLogsByRecipient)
			emails.GET("/logs/:id", r.GetLog)
		}

		tpl := api.Group("/templates")
		{
			tpl.POST("", r.CreateTemplate)
			tpl.GET("", r.ListTemplates)
			tpl.GET("/:id", r.GetTemplate)
			tpl.GET("/by-name/:name", r.GetTemplateByName)
			tpl.PUT("/:id", r.UpdateTemplate)
			tpl.DELETE("/:id", r.DeleteTemplate)
		}

		rcp := api.Group("/recipients")
		{
			rcp.POST("", r.CreateRecipient)
			rcp.GET("", r.ListRecipients)
			rcp.GET("/:id", r.GetRecipient)
			rcp.PUT("/:id", r.UpdateRecipient)
			rcp.DELETE("/:id", r.DeleteRecipient)
		}
	}
}

func (r *Router) Run() error {
	r.server = &http.Server{
		Addr:         ":" + r.cfg.Port,
		Handler:      r.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}
