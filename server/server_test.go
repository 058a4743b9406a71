package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iskng/embed-star/db"
)

type fakeChecker struct {
	err   error
	stats db.PoolStats
}

func (f *fakeChecker) Health(context.Context) error { return f.err }
func (f *fakeChecker) Stats() db.PoolStats          { return f.stats }

func TestHealth_Healthy(t *testing.T) {
	checker := &fakeChecker{stats: db.PoolStats{Size: 3, Idle: 2, Active: 1, MaxSize: 10}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	handleHealth(rec, req, checker)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.Database.Connected)
	assert.Equal(t, 10, resp.Pool.MaxSize)
}

func TestHealth_UnhealthyReturns503(t *testing.T) {
	checker := &fakeChecker{err: errors.New("connection refused")}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	handleHealth(rec, req, checker)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.False(t, resp.Database.Connected)
}
