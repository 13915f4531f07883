package services

import (
	"testing"

	"github.com/zesbe/hallowa-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueueService(env *testEnv) *QueueService {
	return NewQueueService(env.queue, env.broadcasts)
}

func enqueueForDevice(t *testing.T, env *testEnv, user *models.User, device *models.Device, phones ...string) []*models.QueuedMessage {
	t.Helper()

	messages := make([]*models.QueuedMessage, 0, len(phones))
	for _, phone := range phones {
		messages = append(messages, models.NewQueuedMessage(user.ID, device.ID, phone, "Halo"))
	}
	require.NoError(t, env.queue.Enqueue(messages))
	return messages
}

func TestQueueServiceClaim(t *testing.T) {
	env := newTestEnv(t)
	svc := newQueueService(env)

	user := env.createUser(t, "budi", "password123")
	device := env.createDevice(t, user.ID, "Toko", true)
	enqueueForDevice(t, env, user, device, "628111111111", "628222222222")

	_, err := svc.Claim(nil, 10)
	assert.Error(t, err)

	claimed, err := svc.Claim(device, 10)
	require.NoError(t, err)
	assert.Len(t, claimed, 2)

	// The batch is gone until resolved or requeued
	again, err := svc.Claim(device, 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestQueueServiceClaimClampsLimit(t *testing.T) {
	env := newTestEnv(t)
	svc := newQueueService(env)

	user := env.createUser(t, "budi", "password123")
	device := env.createDevice(t, user.ID, "Toko", true)

	messages := make([]*models.QueuedMessage, 0, MaxClaimBatch+5)
	for i := 0; i < MaxClaimBatch+5; i++ {
		messages = append(messages, models.NewQueuedMessage(user.ID, device.ID, "628100000000", "Halo"))
	}
	require.NoError(t, env.queue.Enqueue(messages))

	claimed, err := svc.Claim(device, 0)
	require.NoError(t, err)
	assert.Len(t, claimed, MaxClaimBatch)

	claimed, err = svc.Claim(device, MaxClaimBatch*2)
	require.NoError(t, err)
	assert.Len(t, claimed, 5)
}

func TestQueueServiceResolveSent(t *testing.T) {
	env := newTestEnv(t)
	svc := newQueueService(env)

	user := env.createUser(t, "budi", "password123")
	device := env.createDevice(t, user.ID, "Toko", true)
	enqueueForDevice(t, env, user, device, "628111111111")

	claimed, err := svc.Claim(device, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	resolved, err := svc.Resolve(device, claimed[0].ID, models.QueueSent, nil)
	require.NoError(t, err)
	assert.Equal(t, models.QueueSent, resolved.Status)

	// Terminal outcome lands in history
	history, err := svc.History(user.ID, "", "", models.DirectionOutbound, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.QueueSent, history[0].Status)

	// Reporting twice is rejected
	_, err = svc.Resolve(device, claimed[0].ID, models.QueueSent, nil)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestQueueServiceResolveRetryStaysOutOfHistory(t *testing.T) {
	env := newTestEnv(t)
	svc := newQueueService(env)

	user := env.createUser(t, "budi", "password123")
	device := env.createDevice(t, user.ID, "Toko", true)
	enqueueForDevice(t, env, user, device, "628111111111")

	claimed, err := svc.Claim(device, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	sendErr := "rate limited"
	resolved, err := svc.Resolve(device, claimed[0].ID, models.QueueFailed, &sendErr)
	require.NoError(t, err)

	// First failure goes back to pending with backoff, not to history
	assert.Equal(t, models.QueuePending, resolved.Status)
	require.NotNil(t, resolved.LastError)
	assert.Equal(t, "rate limited", *resolved.LastError)

	history, err := svc.History(user.ID, "", "", "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestQueueServiceResolveRejectsWrongDevice(t *testing.T) {
	env := newTestEnv(t)
	svc := newQueueService(env)

	user := env.createUser(t, "budi", "password123")
	device := env.createDevice(t, user.ID, "Toko", true)
	intruder := env.createDevice(t, user.ID, "Gudang", true)
	enqueueForDevice(t, env, user, device, "628111111111")

	claimed, err := svc.Claim(device, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	_, err = svc.Resolve(intruder, claimed[0].ID, models.QueueSent, nil)
	assert.ErrorIs(t, err, ErrNotMessageDevice)

	_, err = svc.Resolve(device, "missing-id", models.QueueSent, nil)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = svc.Resolve(nil, claimed[0].ID, models.QueueSent, nil)
	assert.Error(t, err)
}

func TestQueueServiceResolveUpdatesBroadcastCounters(t *testing.T) {
	env := newTestEnv(t)
	svc := newQueueService(env)

	user := env.createUser(t, "budi", "password123")
	device := env.createDevice(t, user.ID, "Toko", true)

	broadcast := models.NewBroadcast(user.ID, device.ID, "Promo", "Halo")
	broadcast.Status = models.BroadcastProcessing
	broadcast.Recipients = 2
	require.NoError(t, env.broadcasts.Create(broadcast))

	messages := []*models.QueuedMessage{
		models.NewQueuedMessage(user.ID, device.ID, "628111111111", "Halo"),
		models.NewQueuedMessage(user.ID, device.ID, "628222222222", "Halo"),
	}
	for _, m := range messages {
		m.BroadcastID = &broadcast.ID
	}
	// Second recipient is on its last attempt so one failure is terminal
	messages[1].Attempts = messages[1].MaxAttempts - 1
	require.NoError(t, env.queue.Enqueue(messages))

	claimed, err := svc.Claim(device, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	first, second := claimed[0], claimed[1]
	if first.Phone != "628111111111" {
		first, second = second, first
	}

	_, err = svc.Resolve(device, first.ID, models.QueueSent, nil)
	require.NoError(t, err)

	mid, err := env.broadcasts.GetByID(broadcast.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, mid.SentCount)
	assert.Equal(t, models.BroadcastProcessing, mid.Status)

	sendErr := "blocked"
	resolved, err := svc.Resolve(device, second.ID, models.QueueFailed, &sendErr)
	require.NoError(t, err)
	assert.Equal(t, models.QueueFailed, resolved.Status)

	done, err := env.broadcasts.GetByID(broadcast.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, done.SentCount)
	assert.Equal(t, 1, done.FailedCount)
	assert.Equal(t, models.BroadcastPartial, done.Status)
	assert.NotNil(t, done.FinishedAt)
}

func TestQueueServiceHistoryValidatesDirection(t *testing.T) {
	env := newTestEnv(t)
	svc := newQueueService(env)

	user := env.createUser(t, "budi", "password123")

	_, err := svc.History(user.ID, "", "", "sideways", 10, 0)
	assert.Error(t, err)
}

func TestQueueServiceStats(t *testing.T) {
	env := newTestEnv(t)
	svc := newQueueService(env)

	user := env.createUser(t, "budi", "password123")
	device := env.createDevice(t, user.ID, "Toko", true)
	enqueueForDevice(t, env, user, device, "628111111111", "628222222222", "628333333333")

	claimed, err := svc.Claim(device, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	stats, err := svc.Stats(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Pending)
	assert.Equal(t, int64(1), stats.Processing)
}
