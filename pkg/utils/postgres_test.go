package utils

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func TestWithTx_RollbackOnError(t *testing.T) {
	// This test can't run without a real *sql.DB; keep it as a compile-time smoke test
	// for the helper signature.
	var _ = WithTx
	_ = context.Background()
	_ = &sql.DB{}
	_ = errors.New("x")
}

func TestWithConn_Signature(t *testing.T) {
	// Compile-time smoke test; WithConn needs a live pool to exercise.
	var _ = WithConn
}
