package db

import (
	"testing"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enqueueOne(t *testing.T, repo QueueRepository, deviceID string) *models.QueuedMessage {
	t.Helper()

	m := models.NewQueuedMessage("user-1", deviceID, "628123456789", "Halo!")
	require.NoError(t, repo.Enqueue([]*models.QueuedMessage{m}))
	return m
}

func TestQueueEnqueueValidation(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t).GetDB())

	assert.Error(t, repo.Enqueue(nil))
	assert.Error(t, repo.Enqueue([]*models.QueuedMessage{nil}))
}

func TestQueueEnqueueIsAtomic(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t).GetDB())

	good := models.NewQueuedMessage("user-1", "device-1", "628123456789", "Halo!")
	dup := *good // same primary key forces the insert to fail

	err := repo.Enqueue([]*models.QueuedMessage{good, &dup})
	require.Error(t, err)

	// The whole batch must have rolled back
	stored, err := repo.GetByID(good.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestQueueClaim(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t).GetDB())

	first := enqueueOne(t, repo, "device-1")
	second := enqueueOne(t, repo, "device-1")
	otherDevice := enqueueOne(t, repo, "device-2")

	claimed, err := repo.Claim("device-1", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	ids := []string{claimed[0].ID, claimed[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
	for _, m := range claimed {
		assert.Equal(t, models.QueueProcessing, m.Status)
		assert.Equal(t, 1, m.Attempts)
		assert.NotNil(t, m.ClaimedAt)
	}

	// A second poll finds nothing: the rows are already processing
	again, err := repo.Claim("device-1", 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	// The other device's row is untouched
	stored, err := repo.GetByID(otherDevice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, stored.Status)
}

func TestQueueClaimRespectsLimitAndBackoff(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t).GetDB())

	enqueueOne(t, repo, "device-1")
	enqueueOne(t, repo, "device-1")

	future := models.NewQueuedMessage("user-1", "device-1", "628123456789", "later")
	future.NextAttemptAt = time.Now().Unix() + 3600
	require.NoError(t, repo.Enqueue([]*models.QueuedMessage{future}))

	claimed, err := repo.Claim("device-1", 1)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)

	// The backed-off row stays pending even with room in the batch
	claimed, err = repo.Claim("device-1", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.NotEqual(t, future.ID, claimed[0].ID)
}

func TestQueueResolveSent(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t).GetDB())

	m := enqueueOne(t, repo, "device-1")
	_, err := repo.Claim("device-1", 1)
	require.NoError(t, err)

	resolved, err := repo.Resolve(m.ID, models.QueueSent, nil)
	require.NoError(t, err)
	assert.Equal(t, models.QueueSent, resolved.Status)
	assert.NotNil(t, resolved.SentAt)

	// Reporting twice is rejected: the row left the processing state
	_, err = repo.Resolve(m.ID, models.QueueSent, nil)
	assert.ErrorIs(t, err, ErrNotClaimable)
}

func TestQueueResolveFailedRetries(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t).GetDB())

	m := enqueueOne(t, repo, "device-1")
	_, err := repo.Claim("device-1", 1)
	require.NoError(t, err)

	sendErr := "connection reset"
	resolved, err := repo.Resolve(m.ID, models.QueueFailed, &sendErr)
	require.NoError(t, err)

	// First failure goes back to pending with a backoff
	assert.Equal(t, models.QueuePending, resolved.Status)
	assert.Equal(t, 1, resolved.Attempts)
	require.NotNil(t, resolved.LastError)
	assert.Equal(t, sendErr, *resolved.LastError)
	assert.Greater(t, resolved.NextAttemptAt, time.Now().Unix())
	assert.Nil(t, resolved.ClaimedAt)
}

func TestQueueResolveFailedExhaustsAttempts(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t).GetDB())

	m := models.NewQueuedMessage("user-1", "device-1", "628123456789", "Halo!")
	m.Attempts = m.MaxAttempts - 1 // next claim uses the last attempt
	require.NoError(t, repo.Enqueue([]*models.QueuedMessage{m}))

	_, err := repo.Claim("device-1", 1)
	require.NoError(t, err)

	sendErr := "number not on whatsapp"
	resolved, err := repo.Resolve(m.ID, models.QueueFailed, &sendErr)
	require.NoError(t, err)
	assert.Equal(t, models.QueueFailed, resolved.Status)
}

func TestQueueResolveValidation(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t).GetDB())

	_, err := repo.Resolve("", models.QueueSent, nil)
	assert.Error(t, err)

	_, err = repo.Resolve("missing", models.QueueSent, nil)
	assert.Error(t, err)

	m := enqueueOne(t, repo, "device-1")
	_, err = repo.Resolve(m.ID, "delivered", nil)
	assert.Error(t, err)

	// Reporting on a row that was never claimed
	_, err = repo.Resolve(m.ID, models.QueueSent, nil)
	assert.ErrorIs(t, err, ErrNotClaimable)
}

func TestQueueRequeueStuck(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t).GetDB())

	m := enqueueOne(t, repo, "device-1")
	exhausted := models.NewQueuedMessage("user-1", "device-1", "628987654321", "Halo!")
	exhausted.Attempts = exhausted.MaxAttempts - 1
	require.NoError(t, repo.Enqueue([]*models.QueuedMessage{exhausted}))

	claimed, err := repo.Claim("device-1", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	// Cutoff in the future treats both claims as abandoned
	requeued, err := repo.RequeueStuck(time.Now().Unix()+10, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), requeued)

	stored, err := repo.GetByID(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, stored.Status)
	assert.Nil(t, stored.ClaimedAt)

	stored, err = repo.GetByID(exhausted.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueFailed, stored.Status)

	// Fresh claims are left alone
	requeued, err = repo.RequeueStuck(time.Now().Unix()-3600, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, requeued)
}

func TestQueueCancelPendingByBroadcast(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t).GetDB())

	broadcastID := "broadcast-1"

	now := time.Now().Unix()
	inFlight := models.NewQueuedMessage("user-1", "device-1", "628987654321", "Halo!")
	inFlight.BroadcastID = &broadcastID
	inFlight.CreatedAt = now - 100 // claimed first
	pending := models.NewQueuedMessage("user-1", "device-1", "628123456789", "Halo!")
	pending.BroadcastID = &broadcastID
	pending.CreatedAt = now - 50
	unrelated := models.NewQueuedMessage("user-1", "device-1", "628111111111", "Halo!")
	require.NoError(t, repo.Enqueue([]*models.QueuedMessage{inFlight, pending, unrelated}))

	// Claim one of the broadcast rows so it is processing
	_, err := repo.Claim("device-1", 1)
	require.NoError(t, err)

	removed, err := repo.CancelPendingByBroadcast(broadcastID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// The claimed row survives; the bridge still owns it
	stored, err := repo.GetByID(inFlight.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.QueueProcessing, stored.Status)

	stored, err = repo.GetByID(pending.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	stored, err = repo.GetByID(unrelated.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestQueueStats(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t).GetDB())

	enqueueOne(t, repo, "device-1")
	m := enqueueOne(t, repo, "device-1")
	other := models.NewQueuedMessage("user-2", "device-9", "628999999999", "Halo!")
	require.NoError(t, repo.Enqueue([]*models.QueuedMessage{other}))

	_, err := repo.Claim("device-1", 10)
	require.NoError(t, err)
	_, err = repo.Resolve(m.ID, models.QueueSent, nil)
	require.NoError(t, err)

	stats, err := repo.Stats("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Processing)
	assert.Equal(t, int64(1), stats.Sent)
	assert.Zero(t, stats.Pending)
	assert.Zero(t, stats.Failed)
}

func TestQueueHistory(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t).GetDB())

	broadcastID := "broadcast-1"
	entries := []*models.MessageHistory{
		{UserID: "user-1", DeviceID: "device-1", BroadcastID: &broadcastID,
			Phone: "628123456789", Body: "Halo!", Direction: models.DirectionOutbound,
			Status: models.QueueSent, Timestamp: 100},
		{UserID: "user-1", DeviceID: "device-1",
			Phone: "628123456789", Body: "berapa harga?", Direction: models.DirectionInbound,
			Status: "received", Timestamp: 200},
		{UserID: "user-2", DeviceID: "device-9",
			Phone: "628999999999", Body: "x", Direction: models.DirectionOutbound,
			Status: models.QueueFailed, Timestamp: 300},
	}
	for _, e := range entries {
		require.NoError(t, repo.AppendHistory(e))
	}

	all, err := repo.ListHistory("user-1", "", "", "", 50, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first
	assert.Equal(t, models.DirectionInbound, all[0].Direction)

	inbound, err := repo.ListHistory("user-1", "", "", models.DirectionInbound, 50, 0)
	require.NoError(t, err)
	require.Len(t, inbound, 1)

	byBroadcast, err := repo.ListHistory("user-1", "", broadcastID, "", 50, 0)
	require.NoError(t, err)
	require.Len(t, byBroadcast, 1)
	assert.Equal(t, models.QueueSent, byBroadcast[0].Status)

	count, err := repo.CountHistory()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
