package service

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/noah-isme/office-scheduler/internal/models"
	appErrors "github.com/noah-isme/office-scheduler/pkg/errors"
)

func asAppError(err error) (*appErrors.Error, bool) {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func invalid(message string) error {
	return appErrors.Clone(appErrors.ErrValidation, message)
}

func invalidWrap(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func internal(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func locked(message string) error {
	return appErrors.Clone(appErrors.ErrLocked, message)
}

func forbidden(message string) error {
	return appErrors.Clone(appErrors.ErrForbidden, message)
}

// notFoundOr maps sql.ErrNoRows to a not found error and wraps anything else as internal.
func notFoundOr(err error, what, action string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return internal(err, action)
}

// conflictError carries the colliding events back to the caller as error details.
func conflictError(conflicts []models.ConflictingEvent) error {
	message := "schedule conflicts with an existing event"
	if len(conflicts) > 1 {
		message = fmt.Sprintf("schedule conflicts with %d existing events", len(conflicts))
	}
	domainErr := &models.EventConflictError{Message: message, Conflicts: conflicts}
	appErr := appErrors.Wrap(domainErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, message)
	appErr.Details = conflicts
	return appErr
}
