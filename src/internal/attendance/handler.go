package attendance

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"careconnect-visits-svc/src/internal/cache"
	"careconnect-visits-svc/src/internal/config"
	"careconnect-visits-svc/src/internal/models"
)

type Handler interface {
	Record(c *gin.Context)
	List(c *gin.Context)
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

// Record accepts a multipart check-in photo and verifies it against the
// counsellor's active visit. A reply with locationVerified=false is a
// recorded-but-unverified attendance; a 422 means the upload was refused
// and nothing was stored. The two outcomes are never collapsed.
func (h *handler) Record(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	counsellorHex, _ := c.Get("counsellor_id")
	counsellorID, err := primitive.ObjectIDFromHex(counsellorHex.(string))
	if err != nil {
		h.sendErrorResponse(c, http.StatusUnauthorized, "Invalid counsellor identity", "Token subject is not a valid id")
		return
	}

	file, _, err := c.Request.FormFile("photo")
	if err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Photo required", "Attach the check-in photo as the 'photo' form field")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		h.sendErrorResponse(c, http.StatusInternalServerError, "Upload failed", "Could not read the uploaded photo")
		return
	}

	capturedAt := time.Now().UTC()
	if raw := c.PostForm("captured_at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.sendErrorResponse(c, http.StatusBadRequest, "Invalid captured_at", "Provide captured_at as RFC3339")
			return
		}
		capturedAt = parsed
	}

	logrus.WithFields(logrus.Fields{
		"counsellor_id": counsellorID.Hex(),
		"captured_at":   capturedAt,
		"bytes":         len(image),
	}).Info("Attendance upload received")

	record, err := h.service.Record(ctx, counsellorID, image, capturedAt)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.cacheService.InvalidateAttendanceList(ctx, counsellorID.Hex())
	h.cacheService.InvalidateAttendanceList(ctx, "")

	message := "Attendance recorded and location verified"
	if !record.LocationVerified {
		message = "Attendance recorded but not location-verified"
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    record,
		"message": message,
	})
}

func (h *handler) List(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var counsellorID *primitive.ObjectID
	counsellorHex := c.Query("counsellor_id")
	if counsellorHex != "" {
		id, err := primitive.ObjectIDFromHex(counsellorHex)
		if err != nil {
			h.sendErrorResponse(c, http.StatusBadRequest, "Invalid counsellor ID", "Please provide a valid counsellor ID")
			return
		}
		counsellorID = &id
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	// The default-shaped query is served from cache; custom limits go to
	// the store directly.
	if limit == 0 {
		cached, err := h.cacheService.GetAttendanceList(ctx, counsellorHex)
		if err == nil && cached != nil {
			c.JSON(http.StatusOK, gin.H{
				"success": true,
				"data":    gin.H{"attendances": cached, "count": len(cached)},
			})
			return
		}
	}

	records, err := h.service.List(ctx, counsellorID, limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	if limit == 0 {
		h.cacheService.SaveAttendanceList(ctx, counsellorHex, records)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"attendances": records, "count": len(records)},
	})
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}

func (h *handler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrMissingLocationData):
		h.sendErrorResponse(c, http.StatusUnprocessableEntity, "No GPS metadata", "The photo carries no usable GPS tags; attendance was not recorded")
	case errors.Is(err, models.ErrAttendanceUnverified):
		h.sendErrorResponse(c, http.StatusUnprocessableEntity, "Verification failed", "Strict verification is enabled and the location did not match")
	case errors.Is(err, models.ErrCounsellorNotFound):
		h.sendErrorResponse(c, http.StatusNotFound, "Counsellor not found", "No counsellor found with the provided ID")
	default:
		logrus.WithError(err).Error("Attendance request failed")
		h.sendErrorResponse(c, http.StatusInternalServerError, "Request failed", err.Error())
	}
}

func (h *handler) sendErrorResponse(c *gin.Context, statusCode int, error, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   error,
		"message": message,
	})
}
