package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ExportErrorBadInput          = "EXPORT_BAD_INPUT"
	ExportErrorRequestNotFound   = "EXPORT_REQUEST_NOT_FOUND"
	ExportErrorSenderNotFound    = "EXPORT_SENDER_NOT_FOUND"
	ExportErrorDuplicateInFlight = "EXPORT_DUPLICATE_IN_FLIGHT"
	ExportErrorGeneration        = "EXPORT_GENERATION_FAILED"
	ExportErrorDelivery          = "EXPORT_DELIVERY_FAILED"
	ExportErrorInternal          = "EXPORT_INTERNAL_ERROR"
)

func exportErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureExportErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "duplicate in-flight"):
		return newExportError(err.Error(), goerrors.CategoryConflict, ExportErrorDuplicateInFlight)
	case strings.Contains(msg, "export request not found"):
		return newExportError(err.Error(), goerrors.CategoryNotFound, ExportErrorRequestNotFound)
	case strings.Contains(msg, "sender not found"):
		return newExportError(err.Error(), goerrors.CategoryNotFound, ExportErrorSenderNotFound)
	case strings.Contains(msg, "webhook delivery"):
		return newExportError(err.Error(), goerrors.CategoryExternal, ExportErrorDelivery)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newExportError(err.Error(), goerrors.CategoryBadInput, ExportErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureExportErrorEnvelope(mapped)
}

func newExportError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureExportErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureExportErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = exportHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultExportTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultExportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ExportErrorBadInput
	case goerrors.CategoryNotFound:
		return ExportErrorRequestNotFound
	case goerrors.CategoryConflict:
		return ExportErrorDuplicateInFlight
	case goerrors.CategoryExternal:
		return ExportErrorDelivery
	default:
		return ExportErrorInternal
	}
}

func exportHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
