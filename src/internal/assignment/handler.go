package assignment

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"careconnect-visits-svc/src/internal/config"
	"careconnect-visits-svc/src/internal/models"
)

type Handler interface {
	CreateSession(c *gin.Context)
	GetSession(c *gin.Context)
	ListSessions(c *gin.Context)
	Respond(c *gin.Context)
}

type handler struct {
	config  *config.Configuration
	service Service
}

func NewHandler(cfg *config.Configuration, service Service) Handler {
	return &handler{
		config:  cfg,
		service: service,
	}
}

type createSessionBody struct {
	Address         string    `json:"address"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	ScheduledStart  time.Time `json:"scheduledStart" binding:"required"`
	DurationMinutes int       `json:"durationMinutes" binding:"required"`
}

type respondBody struct {
	Decision string `json:"decision" binding:"required"`
}

func (h *handler) CreateSession(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var body createSessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	logrus.WithFields(logrus.Fields{
		"latitude":  body.Latitude,
		"longitude": body.Longitude,
		"start":     body.ScheduledStart,
	}).Info("CreateSession request received")

	result, err := h.service.CreateSession(ctx, &CreateSessionRequest{
		Address:         body.Address,
		Latitude:        body.Latitude,
		Longitude:       body.Longitude,
		ScheduledStart:  body.ScheduledStart,
		DurationMinutes: body.DurationMinutes,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	message := "Visit session created and nearest counsellor notified"
	if !result.Matched {
		message = "Visit session created; no eligible counsellor within range"
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    result,
		"message": message,
	})
}

func (h *handler) GetSession(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id, ok := h.parseObjectID(c, c.Param("id"))
	if !ok {
		return
	}

	session, err := h.service.GetSession(ctx, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    session,
	})
}

func (h *handler) ListSessions(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	req := &ListSessionsRequest{
		Status: c.Query("status"),
		Page:   parseIntParam(c, "page", 1),
		Limit:  parseIntParam(c, "limit", 20),
	}

	result, err := h.service.ListSessions(ctx, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

func (h *handler) Respond(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	sessionID, ok := h.parseObjectID(c, c.Param("id"))
	if !ok {
		return
	}

	counsellorHex, _ := c.Get("counsellor_id")
	counsellorID, err := primitive.ObjectIDFromHex(counsellorHex.(string))
	if err != nil {
		h.sendErrorResponse(c, http.StatusUnauthorized, "Invalid counsellor identity", "Token subject is not a valid id")
		return
	}

	var body respondBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid request body", "Provide a decision: accept or reject")
		return
	}

	logrus.WithFields(logrus.Fields{
		"session_id":    sessionID.Hex(),
		"counsellor_id": counsellorID.Hex(),
		"decision":      body.Decision,
	}).Info("Respond request received")

	result, err := h.service.Respond(ctx, sessionID, counsellorID, body.Decision)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	message := "Visit accepted"
	if body.Decision == DecisionReject {
		if result.NextNotified != nil {
			message = "Visit rejected; next counsellor notified"
		} else {
			message = "Visit rejected; no further counsellors available"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
		"message": message,
	})
}

func parseIntParam(c *gin.Context, param string, defaultValue int) int {
	value := c.Query(param)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"param": param,
			"value": value,
			"error": err,
		}).Warn("Invalid integer parameter, using default")

		return defaultValue
	}
	return parsed
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}

func (h *handler) parseObjectID(c *gin.Context, raw string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid session ID", "Please provide a valid session ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *handler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		h.sendErrorResponse(c, http.StatusNotFound, "Session not found", "No visit session found with the provided ID")
	case errors.Is(err, models.ErrCounsellorNotFound):
		h.sendErrorResponse(c, http.StatusNotFound, "Counsellor not found", "No counsellor found with the provided ID")
	case errors.Is(err, models.ErrSessionResolved):
		h.sendErrorResponse(c, http.StatusConflict, "Session already resolved", "The visit session is no longer pending")
	case errors.Is(err, models.ErrCounsellorRejected):
		h.sendErrorResponse(c, http.StatusConflict, "Offer already rejected", "A counsellor who rejected a visit cannot accept it")
	case errors.Is(err, models.ErrInvalidCoordinates),
		errors.Is(err, models.ErrInvalidVisitRequest),
		errors.Is(err, models.ErrInvalidDecision):
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid request", err.Error())
	default:
		logrus.WithError(err).Error("Assignment request failed")
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
