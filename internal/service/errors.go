package service

import (
	"database/sql"
	"errors"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/pkg/database"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
	"github.com/noah-isme/school-api/pkg/validation"
)

func validationError(err error, message string) *appErrors.Error {
	wrapped := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	if fields := validation.Fields(err); fields != nil {
		wrapped.Details = fields
	}
	return wrapped
}

func invalid(message string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrValidation, message)
}

func internalError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// missingRow reports a lookup that cannot match: no row, or an id the key column rejects.
func missingRow(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || database.IsInvalidText(err)
}

// loadError maps a repository read failure, turning a missing row into a 404.
func loadError(err error, what string) *appErrors.Error {
	if missingRow(err) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return internalError(err, "failed to load "+what)
}

// writeFailure maps a failed insert, update or delete of what.
func writeFailure(err error, what, action string) *appErrors.Error {
	switch {
	case missingRow(err):
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	case database.IsUniqueViolation(err):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, what+" already exists")
	case database.IsForeignKeyViolation(err):
		if action == "delete" {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, what+" is still referenced")
		}
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "referenced record not found")
	default:
		return internalError(err, "failed to "+action+" "+what)
	}
}

func conflict(message string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrConflict, message)
}

func notFound(what string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
}

func paginate(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
