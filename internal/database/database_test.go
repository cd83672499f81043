package database

import (
	"bytes"
	"context"
	"testing"
	"time"

	"wedding-manager/internal/config"
	"wedding-manager/internal/logger"
	"wedding-manager/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteAndPrepare(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:?cache=shared", AutoMigrate: true}

	bunDB, err := Connect(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer bunDB.Close()

	var logs bytes.Buffer
	require.NoError(t, Prepare(ctx, bunDB, cfg, logger.NewWithWriter(&logs)))
	assert.Contains(t, logs.String(), "[CREATE] events, tickets - schema ready")
	// idempotent
	require.NoError(t, CreateSchema(ctx, bunDB))

	event := &models.Event{
		ID:        "e1",
		Couple:    "Ana & Luis",
		Date:      time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
		Location:  "Lisbon",
		Photos:    []string{"a.png"},
		Status:    models.EventStatusDraft,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err = bunDB.NewInsert().Model(event).Exec(ctx)
	require.NoError(t, err)

	var got models.Event
	require.NoError(t, bunDB.NewSelect().Model(&got).Where("id = ?", "e1").Scan(ctx))
	assert.Equal(t, "Ana & Luis", got.Couple)
	assert.Equal(t, []string{"a.png"}, got.Photos)
}

func TestPrepareSkipsWhenAutoMigrateDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}

	bunDB, err := Connect(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer bunDB.Close()

	require.NoError(t, Prepare(ctx, bunDB, cfg, logger.Nop()))
	exists, err := bunDB.NewSelect().Model((*models.Event)(nil)).Exists(ctx)
	assert.Error(t, err)
	assert.False(t, exists)
}
