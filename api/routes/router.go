// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"festival/internal/editions"
	"festival/internal/notifications"
	"festival/internal/schedule"
	"festival/internal/shared/config"
	"festival/internal/shared/database"
	"festival/internal/tickets"
	"festival/pkg/cache"
	"festival/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config    *config.Config
	db        *database.DB
	publisher notifications.Publisher
	limiter   ratelimit.Limiter

	cacheService  cache.Service
	editionsRepo  editions.Repository
	ticketService tickets.Service // exposed for the phase sweeper
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, publisher notifications.Publisher, limiter ratelimit.Limiter) *Router {
	r := &Router{
		config:       cfg,
		db:           db,
		publisher:    publisher,
		limiter:      limiter,
		editionsRepo: editions.NewRepository(db.PostgreSQL),
	}
	if db.Redis != nil {
		r.cacheService = cache.NewService(db.Redis)
	}
	return r
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupScheduleRoutes(api)
		r.setupTicketRoutes(api)
	}
}

// TicketService is available once SetupRoutes has run
func (r *Router) TicketService() tickets.Service {
	return r.ticketService
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "festival-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "festival-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "operational",
			"api_version":   r.config.APIVersion,
			"timestamp":     time.Now(),
			"redis_cache":   r.cacheService != nil,
			"notify_broker": r.config.Notifications.Broker,
		})
	})
}

// setupScheduleRoutes configures slot scheduling routes
func (r *Router) setupScheduleRoutes(rg *gin.RouterGroup) {
	scheduleRepo := schedule.NewRepository(r.db.PostgreSQL)
	scheduleService := schedule.NewService(scheduleRepo, r.editionsRepo)

	if r.cacheService != nil {
		scheduleService.SetCacheService(r.cacheService)
	}
	scheduleService.SetPublisher(r.publisher)

	scheduleController := schedule.NewController(scheduleService)
	schedule.SetupScheduleRoutes(rg, scheduleController)
}

// setupTicketRoutes configures ticket inventory routes
func (r *Router) setupTicketRoutes(rg *gin.RouterGroup) {
	ticketRepo := tickets.NewRepository(r.db.PostgreSQL)
	ticketService := tickets.NewService(ticketRepo, r.editionsRepo, tickets.OptionsFromConfig(r.config))

	if r.cacheService != nil {
		ticketService.SetCacheService(r.cacheService)
	}
	ticketService.SetPublisher(r.publisher)
	ticketService.SetRateLimiter(r.limiter)

	r.ticketService = ticketService

	ticketController := tickets.NewController(ticketService)
	tickets.SetupTicketRoutes(rg, ticketController)
}
