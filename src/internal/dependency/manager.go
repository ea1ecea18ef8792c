package dependency

import (
	"github.com/gin-gonic/gin"

	"careconnect-visits-svc/src/clients"
	"careconnect-visits-svc/src/internal/assignment"
	"careconnect-visits-svc/src/internal/attendance"
	"careconnect-visits-svc/src/internal/cache"
	"careconnect-visits-svc/src/internal/config"
	"careconnect-visits-svc/src/internal/counsellor"
	"careconnect-visits-svc/src/internal/photo"
	"careconnect-visits-svc/src/internal/session"
	"careconnect-visits-svc/src/internal/stats"
)

type Manager struct {
	Router            *gin.Engine
	Config            *config.Configuration
	Mongodb           *clients.MongoDB
	Redis             *clients.RedisClient
	RabbitMQ          *clients.RabbitMQ
	Notifier          *clients.Notifier
	SessionRepo       session.Repository
	CounsellorRepo    counsellor.Repository
	AttendanceRepo    attendance.Repository
	AssignmentService assignment.Service
	AttendanceService attendance.Service
	StatsService      stats.Service
	AssignmentHandler assignment.Handler
	AttendanceHandler attendance.Handler
	CounsellorHandler counsellor.Handler
	StatsHandler      stats.Handler
	CacheService      cache.Service
}

func NewDependencyManager(router *gin.Engine,
	mongodb *clients.MongoDB,
	redisClient *clients.RedisClient,
	rabbitMQ *clients.RabbitMQ,
	cfg *config.Configuration) *Manager {
	cacheService := cache.NewCacheService(redisClient.Client, cfg)
	notifier := clients.NewNotifier(cfg, rabbitMQ.Channel)

	sessionRepo := session.NewRepository(mongodb, cfg.Database.SessionCollection)
	counsellorRepo := counsellor.NewRepository(mongodb, cfg.Database.CounsellorCollection)
	attendanceRepo := attendance.NewRepository(mongodb, cfg.Database.AttendanceCollection)

	assignmentService := assignment.NewService(sessionRepo, counsellorRepo, notifier, cfg)
	attendanceService := attendance.NewService(attendanceRepo, sessionRepo, counsellorRepo, photo.NewExtractor(), cfg)
	statsService := stats.NewService(sessionRepo, counsellorRepo, attendanceRepo)

	assignmentHandler := assignment.NewHandler(cfg, assignmentService)
	attendanceHandler := attendance.NewHandler(cfg, attendanceService, cacheService)
	counsellorHandler := counsellor.NewHandler(cfg, counsellorRepo)
	statsHandler := stats.NewHandler(cfg, statsService, cacheService)

	return &Manager{
		Router:            router,
		Config:            cfg,
		Mongodb:           mongodb,
		Redis:             redisClient,
		RabbitMQ:          rabbitMQ,
		Notifier:          notifier,
		SessionRepo:       sessionRepo,
		CounsellorRepo:    counsellorRepo,
		AttendanceRepo:    attendanceRepo,
		AssignmentService: assignmentService,
		AttendanceService: attendanceService,
		StatsService:      statsService,
		AssignmentHandler: assignmentHandler,
		AttendanceHandler: attendanceHandler,
		CounsellorHandler: counsellorHandler,
		StatsHandler:      statsHandler,
		CacheService:      cacheService,
	}
}
