package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeengine/src/database"
	"tradeengine/src/model"
)

// ExceptionRepository handles persistence of system exceptions.
type ExceptionRepository struct {
	db *gorm.DB
}

// NewExceptionRepository creates a new repository instance.
func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *ExceptionRepository) WithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Capture records an error as an exception row, swallowing any persistence
// failure. Safe to call from error paths that must not themselves fail.
func (r *ExceptionRepository) Capture(ctx context.Context, module, method string, err error) {
	if err == nil {
		return
	}

	exc := &model.Exception{
		Service: "trade_engine",
		Module:  module,
		Method:  method,
		Message: err.Error(),
		Level:   "error",
	}
	if dbErr := r.db.WithContext(ctx).Create(exc).Error; dbErr != nil {
		logger.WithError(dbErr).
			WithField("module", module).
			Warn("Failed to persist exception")
	}
}
