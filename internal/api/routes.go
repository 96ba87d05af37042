package api

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kangban/companion/domain/entities"
	"github.com/kangban/companion/domain/repositories"
	"github.com/kangban/companion/internal/audio"
	"github.com/kangban/companion/internal/auth"
	"github.com/kangban/companion/internal/websocket"
	"github.com/kangban/companion/usecase"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Hub            *websocket.Hub
	Pipeline       websocket.VoicePipeline
	Settings       repositories.SettingsStore
	Interactions   repositories.InteractionRepository
	MetricsEnabled bool
	Logger         *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Deps) {
	logger := deps.Logger

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "companion-server",
		})
	})

	if deps.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Elder-facing APIs, no authentication
	v1.POST("/converse", func(c echo.Context) error {
		return converse(c, deps.Pipeline, logger)
	})
	v1.GET("/reminder", func(c echo.Context) error {
		return getReminder(c, deps.Settings)
	})

	// Device token issuance for the streaming endpoint
	v1.POST("/device/auth", func(c echo.Context) error {
		return deviceAuth(c, logger)
	})

	// Caregiver panel
	v1.POST("/caregiver/login", func(c echo.Context) error {
		return caregiverLogin(c, deps.Settings, logger)
	})

	caregiver := v1.Group("/caregiver", caregiverJWT(logger))
	caregiver.GET("/settings", func(c echo.Context) error {
		return getSettings(c, deps.Settings)
	})
	caregiver.PUT("/settings", func(c echo.Context) error {
		return updateSettings(c, deps.Settings, logger)
	})
	caregiver.PUT("/contacts", func(c echo.Context) error {
		return updateContacts(c, deps.Settings, logger)
	})
	caregiver.PUT("/reminder", func(c echo.Context) error {
		return updateReminder(c, deps.Settings, logger)
	})
	caregiver.GET("/interactions", func(c echo.Context) error {
		return getInteractions(c, deps.Interactions, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(deps.Hub, c, logger)
	})
}

// converse runs one uploaded audio blob through the voice pipeline.
func converse(c echo.Context, pipeline websocket.VoicePipeline, logger *zap.Logger) error {
	file, err := c.FormFile("audio")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_audio",
			Message: "Multipart field 'audio' is required",
		})
	}

	src, err := file.Open()
	if err != nil {
		logger.Error("Failed to open uploaded audio", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal_error",
		})
	}
	defer src.Close()

	blob, err := io.ReadAll(src)
	if err != nil {
		logger.Error("Failed to read uploaded audio", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal_error",
		})
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	outcome, err := pipeline.ProcessVoice(c.Request().Context(), blob, contentType)
	if err != nil {
		var formatErr *audio.FormatError
		switch {
		case errors.As(err, &formatErr):
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "bad_audio",
				Message: formatErr.Error(),
			})
		case errors.Is(err, usecase.ErrNotConfigured):
			// The elder device renders this as a normal reply line.
			return c.JSON(http.StatusOK, ConverseResponse{
				Text: "请家属先配置 API Key",
			})
		default:
			logger.Error("Voice pipeline failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: "internal_error",
			})
		}
	}

	resp := ConverseResponse{
		Text:       outcome.ReplyText,
		Transcript: outcome.Transcript,
		CallNumber: outcome.CallNumber,
		TelLink:    outcome.TelLink,
		Alert:      outcome.Alert,
	}
	if len(outcome.Audio) > 0 {
		resp.AudioData = base64.StdEncoding.EncodeToString(outcome.Audio)
		resp.AudioMIME = outcome.AudioMIME
	}
	return c.JSON(http.StatusOK, resp)
}

// getReminder serves the elder screen's single reminder slot.
func getReminder(c echo.Context, store repositories.SettingsStore) error {
	settings := store.Snapshot()
	if reminder, ok := settings.CurrentReminder(); ok {
		return c.JSON(http.StatusOK, ReminderResponse{Reminder: &reminder})
	}
	return c.JSON(http.StatusOK, ReminderResponse{})
}

// deviceAuth issues a streaming token for an elder device.
func deviceAuth(c echo.Context, logger *zap.Logger) error {
	var req DeviceAuthRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.DeviceID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "device_id is required",
		})
	}

	token, err := auth.GenerateDeviceToken(req.DeviceID)
	if err != nil {
		logger.Error("Failed to generate device token",
			zap.String("device_id", req.DeviceID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "token_generation_failed",
		})
	}

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		DeviceID:  req.DeviceID,
	})
}

// caregiverLogin exchanges the admin password for a panel token.
func caregiverLogin(c echo.Context, store repositories.SettingsStore, logger *zap.Logger) error {
	var req CaregiverLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	settings := store.Snapshot()
	if req.Password == "" || req.Password != settings.AdminPassword {
		logger.Warn("Caregiver login rejected")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "密码错误",
		})
	}

	token, err := auth.GenerateCaregiverToken()
	if err != nil {
		logger.Error("Failed to generate caregiver token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "token_generation_failed",
		})
	}

	return c.JSON(http.StatusOK, CaregiverLoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(12 * time.Hour),
	})
}

// caregiverJWT guards the settings panel endpoints.
func caregiverJWT(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "JWT token is required in Authorization header",
				})
			}

			claims, err := auth.ValidateToken(token)
			if err != nil {
				logger.Warn("Caregiver request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}
			if claims.Role != auth.RoleCaregiver {
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "invalid_role",
					Message: "Caregiver token required",
				})
			}

			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// getSettings returns the settings document with secrets reduced to
// presence flags.
func getSettings(c echo.Context, store repositories.SettingsStore) error {
	settings := store.Snapshot()
	return c.JSON(http.StatusOK, SettingsView{
		ASRAppID:     settings.ASRAppID,
		ASRKeySet:    settings.ASRAPIKey != "",
		ASRSecretSet: settings.ASRAPISecret != "",
		LLMKeySet:    settings.LLMAPIKey != "",
		Contacts:     settings.Contacts,
		Reminders:    settings.Reminders,
	})
}

// updateSettings merges the caregiver's edits into the stored document.
// Blank secret fields and nil collections keep their stored values.
func updateSettings(c echo.Context, store repositories.SettingsStore, logger *zap.Logger) error {
	var req SettingsUpdate
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	settings := store.Snapshot()
	if req.ASRAppID != nil {
		settings.ASRAppID = *req.ASRAppID
	}
	if req.ASRAPIKey != "" {
		settings.ASRAPIKey = req.ASRAPIKey
	}
	if req.ASRAPISecret != "" {
		settings.ASRAPISecret = req.ASRAPISecret
	}
	if req.LLMAPIKey != "" {
		settings.LLMAPIKey = req.LLMAPIKey
	}
	if req.AdminPassword != "" {
		settings.AdminPassword = req.AdminPassword
	}
	if req.Contacts != nil {
		settings.Contacts = req.Contacts
	}
	if req.Reminders != nil {
		for _, reminder := range req.Reminders {
			if err := reminder.Validate(); err != nil {
				return c.JSON(http.StatusBadRequest, ErrorResponse{
					Error:   "invalid_reminder",
					Message: err.Error(),
				})
			}
		}
		settings.Reminders = req.Reminders
	}

	if err := store.Save(settings); err != nil {
		logger.Error("Failed to save settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "save_failed",
		})
	}

	return getSettings(c, store)
}

// updateContacts replaces the contact directory wholesale.
func updateContacts(c echo.Context, store repositories.SettingsStore, logger *zap.Logger) error {
	var contacts map[string]string
	if err := c.Bind(&contacts); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Expected a name to number object",
		})
	}

	settings := store.Snapshot()
	settings.Contacts = contacts
	if err := store.Save(settings); err != nil {
		logger.Error("Failed to save contacts", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "save_failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"contacts": contacts})
}

// updateReminder replaces the elder screen's reminder slot.
func updateReminder(c echo.Context, store repositories.SettingsStore, logger *zap.Logger) error {
	var reminder entities.Reminder
	if err := c.Bind(&reminder); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if err := reminder.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_reminder",
			Message: err.Error(),
		})
	}

	settings := store.Snapshot()
	if len(settings.Reminders) == 0 {
		settings.Reminders = []entities.Reminder{reminder}
	} else {
		settings.Reminders[0] = reminder
	}
	if err := store.Save(settings); err != nil {
		logger.Error("Failed to save reminder", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "save_failed",
		})
	}

	return c.JSON(http.StatusOK, ReminderResponse{Reminder: &reminder})
}

// getInteractions serves the caregiver's recent conversation audit trail.
func getInteractions(c echo.Context, repo repositories.InteractionRepository, logger *zap.Logger) error {
	if repo == nil {
		return c.JSON(http.StatusOK, []*entities.Interaction{})
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be between 1 and 100",
			})
		}
		limit = parsed
	}

	interactions, err := repo.ListRecent(c.Request().Context(), limit)
	if err != nil {
		logger.Error("Failed to list interactions", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal_error",
		})
	}
	if interactions == nil {
		interactions = []*entities.Interaction{}
	}
	return c.JSON(http.StatusOK, interactions)
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	token := bearerToken(c)
	if token == "" {
		// Embedded devices often cannot set headers on the upgrade request.
		token = c.QueryParam("token")
	}
	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != auth.RoleDevice {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only device tokens are allowed for WebSocket connections",
		})
	}

	if claims.DeviceID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Device ID not found in token",
		})
	}

	return websocket.HandleWebSocketWithAuth(hub, c, claims.DeviceID, logger)
}
