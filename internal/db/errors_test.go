package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/surrealdb/surrealdb.go"
)

func TestWrapQueryError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"already exists", &surrealdb.QueryError{Message: "Database record `product:a` already exists"}, ErrEntityAlreadyExists},
		{"conflict", &surrealdb.QueryError{Message: "Transaction conflict: retry"}, ErrTransactionConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, wrapQueryError(tt.err), tt.want)
		})
	}

	plain := errors.New("socket closed")
	assert.Equal(t, plain, wrapQueryError(plain))
	assert.NoError(t, wrapQueryError(nil))
}
