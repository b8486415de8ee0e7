package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidDSN(t *testing.T) {
	pool, err := New(context.Background(), Config{DSN: "host=localhost port=notaport"})
	require.Error(t, err)
	assert.Nil(t, pool)
	assert.Contains(t, err.Error(), "postgres.New")
}
