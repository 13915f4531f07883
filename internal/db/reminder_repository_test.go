package db

import (
	"testing"

	"github.com/zesbe/hallowa-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderRecordIsIdempotent(t *testing.T) {
	repo := NewReminderRepository(newTestDB(t).GetDB())

	fresh, err := repo.Record(models.NewReminderLog("user-1", models.ReminderPlanExpiry, 7))
	require.NoError(t, err)
	assert.True(t, fresh)

	// Same user, kind, and days-left: the hourly re-run must not re-send
	fresh, err = repo.Record(models.NewReminderLog("user-1", models.ReminderPlanExpiry, 7))
	require.NoError(t, err)
	assert.False(t, fresh)

	// A different days-left threshold is a new reminder
	fresh, err = repo.Record(models.NewReminderLog("user-1", models.ReminderPlanExpiry, 3))
	require.NoError(t, err)
	assert.True(t, fresh)

	logs, err := repo.ListByUser("user-1")
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestReminderRecordValidation(t *testing.T) {
	repo := NewReminderRepository(newTestDB(t).GetDB())

	_, err := repo.Record(nil)
	assert.Error(t, err)

	_, err = repo.ListByUser("")
	assert.Error(t, err)
}
