package services

import (
	"errors"

	"sportsblock/internal/apperrors"

	"gorm.io/gorm"
)

// asNotFound maps gorm's record-not-found onto the API taxonomy and passes
// every other database error through untouched.
func asNotFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.CodeNotFound, message)
	}
	return err
}
