package stats

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"careconnect-visits-svc/src/internal/cache"
	"careconnect-visits-svc/src/internal/config"
)

type Handler interface {
	GetStats(c *gin.Context)
}

type handler struct {
	config       *config.Configuration
	service      Service
	cacheService cache.Service
}

func NewHandler(cfg *config.Configuration, service Service, cacheService cache.Service) Handler {
	return &handler{
		config:       cfg,
		service:      service,
		cacheService: cacheService,
	}
}

func (h *handler) GetStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	logrus.Info("GetStats request received")

	cached, err := h.cacheService.GetStats(ctx)
	if err == nil && cached != nil {
		logrus.Debug("Coordination statistics retrieved from cache")
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    cached,
			"message": "Statistics retrieved successfully (from cache)",
		})
		return
	}

	stats, err := h.service.Collect(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to collect coordination statistics")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to retrieve statistics",
			"message": err.Error(),
		})
		return
	}

	h.cacheService.SaveStats(ctx, stats)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
		"message": "Statistics retrieved successfully",
	})
}
