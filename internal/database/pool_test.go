package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer conn.Close()
	db := &DB{DB: conn}

	mock.ExpectPing()
	check := db.HealthCheck(context.Background())
	assert.Equal(t, StatusHealthy, check.Status)
	assert.True(t, check.Healthy())

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	check = db.HealthCheck(context.Background())
	assert.Equal(t, StatusUnhealthy, check.Status)
	assert.Equal(t, "connection refused", check.Error)
	assert.False(t, check.Healthy())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolSaturation(t *testing.T) {
	assert.False(t, poolStats(sql.DBStats{MaxOpenConnections: 0, InUse: 40}).saturated())
	assert.False(t, poolStats(sql.DBStats{MaxOpenConnections: 50, InUse: 45}).saturated())
	assert.True(t, poolStats(sql.DBStats{MaxOpenConnections: 50, InUse: 46}).saturated())
}
