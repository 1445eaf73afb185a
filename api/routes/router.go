// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	_ "boxoffice/docs"
	"boxoffice/internal/audit"
	"boxoffice/internal/expiration"
	"boxoffice/internal/inventory"
	"boxoffice/internal/orders"
	"boxoffice/internal/payments"
	"boxoffice/internal/reservations"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/constants"
	"boxoffice/internal/shared/database"
	"boxoffice/pkg/cache"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router holds all route dependencies
type Router struct {
	config    *config.Config
	db        *database.DB
	clock     clock.Clock
	sink      audit.Sink
	authority payments.Authority

	// Wired in dependency order by SetupRoutes
	cacheService cache.Service
	guard        *inventory.Guard
	inventory    inventory.Service
	listeners    *reservations.Listeners
	reservations reservations.Service
	system       reservations.SystemService
	orders       orders.Service
	jobs         *expiration.JobProcessor
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, sink audit.Sink, authority payments.Authority) *Router {
	r := &Router{
		config:    cfg,
		db:        db,
		clock:     clock.NewSystem(),
		sink:      sink,
		authority: authority,
	}
	if db.Redis != nil {
		r.cacheService = cache.NewService(db.Redis)
	}
	return r
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		// Inventory first: every other module moves seats through its guard
		r.setupInventoryRoutes(api)
		r.setupReservationRoutes(api)
		r.setupOrderAndPaymentRoutes(api)
		r.setupExpirationRoutes(api)
	}
}

// Jobs returns the background sweep processor. Valid after SetupRoutes.
func (r *Router) Jobs() *expiration.JobProcessor {
	return r.jobs
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		// Perform health checks
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "boxoffice",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "boxoffice",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		status := gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
			"redis":       r.db.Redis != nil,
		}
		if r.jobs != nil {
			status["sweeper"] = r.jobs.GetJobStatus()
		}
		c.JSON(http.StatusOK, status)
	})
}

// setupInventoryRoutes configures seat map and house seat routes
func (r *Router) setupInventoryRoutes(rg *gin.RouterGroup) {
	r.guard = inventory.NewGuard(r.db.SQL, r.clock)
	if r.cacheService != nil {
		r.guard.SetCacheService(r.cacheService)
	}

	seatMapTTL := r.config.Redis.SeatMapTTL
	if seatMapTTL <= 0 {
		seatMapTTL = constants.TTL_SEAT_MAP
	}
	r.inventory = inventory.NewService(inventory.NewRepository(r.db.SQL), r.guard, r.cacheService, seatMapTTL)

	inventory.SetupInventoryRoutes(rg, inventory.NewController(r.inventory), r.config)
}

// setupReservationRoutes configures reservation routes
func (r *Router) setupReservationRoutes(rg *gin.RouterGroup) {
	r.listeners = reservations.NewListeners()
	r.reservations = reservations.NewService(r.db.SQL, reservations.NewRepository(r.db.SQL), r.inventory, r.guard,
		r.listeners, r.clock, r.sink, r.config.Booking)
	r.system = reservations.NewSystemService(r.db.SQL, reservations.NewSystemRepository(r.db.SQL), r.guard,
		r.listeners, r.clock, r.sink)

	reservations.SetupReservationRoutes(rg, reservations.NewController(r.reservations), r.config)
}

// setupOrderAndPaymentRoutes configures order, ticket and payment routes.
// The two modules call each other through the order payment adapter.
func (r *Router) setupOrderAndPaymentRoutes(rg *gin.RouterGroup) {
	orderRepo := orders.NewRepository(r.db.SQL)
	intentRepo := payments.NewRepository(r.db.SQL)

	// Pending orders follow their reservation when it is released
	r.listeners.Register(orders.NewReservationListener(orderRepo, r.sink, r.clock))

	r.orders = orders.NewService(r.db.SQL, orderRepo, r.reservations, r.system, r.guard,
		r.authority, intentRepo, r.clock, r.sink, r.config.Booking)
	adapter := orders.NewPaymentAdapter(r.orders, orderRepo)

	paymentService := payments.NewService(intentRepo, r.authority, adapter, adapter,
		r.cacheService, r.sink, r.clock, r.config)

	orders.SetupOrderRoutes(rg, orders.NewController(r.orders), r.config)
	payments.SetupPaymentRoutes(rg, payments.NewController(paymentService), r.config)
}

// setupExpirationRoutes configures the sweeper and its admin routes
func (r *Router) setupExpirationRoutes(rg *gin.RouterGroup) {
	var lease expiration.Lease
	if r.db.Redis != nil {
		lease = expiration.NewRedisLease(r.db.Redis, constants.LOCK_KEY_SWEEP, r.config.Sweeper.LeaseTTL)
	}

	sweeper := expiration.NewSweeper(r.system, lease, r.config.Sweeper.BatchSize)
	r.jobs = expiration.NewJobProcessor(sweeper, expiration.JobConfigFrom(r.config.Sweeper))

	expiration.SetupExpirationRoutes(rg, expiration.NewController(sweeper, r.jobs), r.config)
}
