package database

import (
	stderrors "errors"
	"strings"

	"gorm.io/gorm"

	"github.com/kbukum/shopstream/errors"
)

// FromDatabase maps a GORM error onto the AppError taxonomy. id names the
// looked-up record for NOT_FOUND and may be empty.
func FromDatabase(err error, resource, id string) *errors.AppError {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return errors.NotFound(resource, id).WithCause(err)
	case stderrors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return errors.AlreadyExists(resource).WithCause(err)
	default:
		if appErr := errors.FromContext(err); appErr != nil {
			return appErr
		}
		return errors.DatabaseError(err)
	}
}

// isUniqueViolation recognizes SQLite constraint errors that GORM does not
// translate without TranslateError.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
