package repository

import (
	"errors"
	"testing"

	"go-clinic-scheduling/internal/domain/entity"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError(t *testing.T) {
	exclusion := &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"}
	err := translateError(exclusion)
	assert.ErrorIs(t, err, entity.ErrConflict)

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr), "original error stays reachable")

	assert.ErrorIs(t, translateError(&pgconn.PgError{Code: "23514"}), entity.ErrValidation)

	plain := errors.New("connection reset")
	assert.Same(t, plain, translateError(plain))
	assert.NoError(t, translateError(nil))
}
