package handlers

import (
	"errors"
	"net/http"
	"taskManager/internal/handlers/dto"
	"taskManager/internal/logger"
	"taskManager/internal/service"

	"go.uber.org/zap"
)

// handleError converts any error reaching the handler boundary into a response.
func handleError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	var schemaErr *dto.SchemaError
	if errors.As(err, &schemaErr) {
		logger.Warn("HTTP: schema validation failed",
			zap.String("operation", operation),
			zap.Any("fields", schemaErr.Fields),
			zap.String("client_ip", r.RemoteAddr))

		responseWithJSON(w, http.StatusUnprocessableEntity,
			toPayload("error", service.CodeSchemaValidation),
			toPayload("message", "request failed schema validation"),
			toPayload("fields", schemaErr.Fields),
		)
		return
	}

	var businessErr *service.BusinessError
	if errors.As(err, &businessErr) {
		statusCode := mapBusinessErrorToHTTP(businessErr.Code)

		if statusCode >= http.StatusInternalServerError {
			logger.Error("HTTP: service failure", err,
				zap.String("operation", operation),
				zap.String("error_code", businessErr.Code))
			responseWithError(w, statusCode, businessErr.Code, businessErr.Message)
			return
		}

		logger.Warn("HTTP: business error",
			zap.String("operation", operation),
			zap.String("error_code", businessErr.Code),
			zap.Int("http_status", statusCode))

		responseWithJSON(w, statusCode,
			toPayload("error", businessErr.Code),
			toPayload("message", businessErr.Message),
			toPayload("details", businessErr.Details),
		)
		return
	}

	logger.Error("HTTP: unexpected service error", err, zap.String("operation", operation))
	responseWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeSchemaValidation:
		return http.StatusUnprocessableEntity
	case service.CodeStorageFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
