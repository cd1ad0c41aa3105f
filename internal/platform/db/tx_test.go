package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	serial := &pgconn.PgError{Code: "40001"}
	deadlock := &pgconn.PgError{Code: "40P01"}

	require.True(t, IsUniqueViolation(unique))
	require.False(t, IsSerializationFailure(unique))
	require.True(t, IsSerializationFailure(serial))
	require.True(t, IsSerializationFailure(deadlock))
	require.False(t, IsUniqueViolation(errors.New("plain")))
	require.False(t, IsSerializationFailure(nil))
}
