package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"careconnect-visits-svc/src/clients"
	"careconnect-visits-svc/src/internal/dependency"
	"careconnect-visits-svc/src/internal/middleware"
)

func SetupRoutes(deps *dependency.Manager) {
	router := deps.Router
	router.Use(enableCORS)

	setupHealthEndpoint(deps)
	setupPublicRoutes(router, deps)
	setupCounsellorRoutes(router, deps)
	setupAdminRoutes(router, deps)
}

func setupHealthEndpoint(deps *dependency.Manager) {
	router := deps.Router
	mongodb := deps.Mongodb
	redisClient := deps.Redis
	cfg := deps.Config

	router.GET("/health", func(c *gin.Context) {
		log.Info("Health check endpoint requested")

		mongoStatus := "ok"
		if err := mongodb.Client.Ping(c.Request.Context(), nil); err != nil {
			mongoStatus = "error: " + err.Error()
		}

		redisStatus := "ok"
		if err := redisClient.Client.Ping(c.Request.Context()).Err(); err != nil {
			redisStatus = "error: " + err.Error()
		}

		c.JSON(200, gin.H{
			"status":    "ok",
			"service":   cfg.App.Name,
			"version":   cfg.App.Version,
			"mongodb":   mongoStatus,
			"redis":     redisStatus,
			"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	})

	router.GET("health/detailed", func(c *gin.Context) {
		log.Info("Detailed health check endpoint requested")

		c.JSON(200, gin.H{
			"status":  "operational",
			"service": cfg.App.Name,
			"version": cfg.App.Version,
			"components": gin.H{
				"database": gin.H{
					"mongodb": getStatus(isMongoConnected(mongodb, c)),
					"redis":   getStatus(isRedisConnected(redisClient.Client, c)),
				},
				"services": gin.H{
					"assignment": "operational",
					"attendance": "operational",
					"cache":      "operational",
				},
			},
		})
	})
}

func setupPublicRoutes(router *gin.Engine, deps *dependency.Manager) {
	// API status endpoint
	router.GET("/api/v1/status", func(c *gin.Context) {
		log.Info("API status requested")
		c.JSON(200, gin.H{
			"api_version": "v1",
			"status":      "operational",
			"service":     "careconnect-visits-svc",
		})
	})
}

func setupCounsellorRoutes(router *gin.Engine, deps *dependency.Manager) {
	authMiddleware := middleware.NewAuthMiddleware(deps.Config.Security.JwtKey)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sessions/:id/respond",
			setRouteName("respondToSession"),
			authMiddleware.RequireAuth(),
			deps.AssignmentHandler.Respond)

		v1.POST("/attendances",
			setRouteName("recordAttendance"),
			authMiddleware.RequireAuth(),
			deps.AttendanceHandler.Record)

		v1.GET("/attendances",
			setRouteName("listAttendances"),
			authMiddleware.RequireAuth(),
			deps.AttendanceHandler.List)
	}
}

func setupAdminRoutes(router *gin.Engine, deps *dependency.Manager) {
	authMiddleware := middleware.NewAuthMiddleware(deps.Config.Security.JwtKey)

	// Apply route name FIRST, then auth middlewares
	admin := router.Group("/api/v1/admin")
	{
		admin.POST("/sessions",
			setRouteName("createSession"),
			authMiddleware.RequireAuth(),
			authMiddleware.RequireAdminRights(),
			deps.AssignmentHandler.CreateSession)

		admin.GET("/sessions",
			setRouteName("listSessions"),
			authMiddleware.RequireAuth(),
			authMiddleware.RequireAdminRights(),
			deps.AssignmentHandler.ListSessions)

		admin.GET("/sessions/:id",
			setRouteName("getSession"),
			authMiddleware.RequireAuth(),
			authMiddleware.RequireAdminRights(),
			deps.AssignmentHandler.GetSession)

		admin.GET("/counsellors",
			setRouteName("listCounsellors"),
			authMiddleware.RequireAuth(),
			authMiddleware.RequireAdminRights(),
			deps.CounsellorHandler.List)

		admin.GET("/stats",
			setRouteName("getStats"),
			authMiddleware.RequireAuth(),
			authMiddleware.RequireAdminRights(),
			deps.StatsHandler.GetStats)
	}
}

func setRouteName(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("route_name", name)
		c.Next()
	}
}

func isMongoConnected(mongodb *clients.MongoDB, c *gin.Context) bool {
	if err := mongodb.Client.Ping(c.Request.Context(), nil); err != nil {
		return false
	}
	return true
}

func isRedisConnected(redisClient *redis.Client, c *gin.Context) bool {
	if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
		return false
	}
	return true
}

func enableCORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if c.Request.Method == "OPTIONS" {
		c.AbortWithStatus(204)
		return
	}

	c.Next()
}

func getStatus(b bool) string {
	if b {
		return "connected"
	}
	return "disconnected"
}
