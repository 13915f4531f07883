package services

import (
	"context"
	"errors"
	"testing"

	"github.com/zesbe/hallowa-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatbotService(env *testEnv, ai *fakeAI) *ChatbotService {
	return NewChatbotService(env.chatbot, env.queue, NewAddonService(env.addons), ai)
}

func TestCreateRuleRequiresAddon(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatbotService(env, &fakeAI{})

	user := env.createUser(t, "budi", "password123")

	_, err := svc.CreateRule(user.ID, &models.CreateChatbotRuleRequest{
		Keyword: "harga",
		Reply:   "Harga mulai Rp 99.000",
	})
	assert.ErrorIs(t, err, ErrAddonRequired)

	env.grantAddon(t, user.ID, models.AddonAIChatbot)

	rule, err := svc.CreateRule(user.ID, &models.CreateChatbotRuleRequest{
		Keyword: "harga",
		Reply:   "Harga mulai Rp 99.000",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MatchContains, rule.MatchType)
	assert.True(t, rule.Active)

	_, err = svc.CreateRule(user.ID, &models.CreateChatbotRuleRequest{
		Keyword:   "harga",
		MatchType: "regex",
		Reply:     "x",
	})
	assert.Error(t, err)
}

func TestHandleInboundAlwaysLogsHistory(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatbotService(env, &fakeAI{reply: "should not fire"})

	user := env.createUser(t, "budi", "password123")
	device := env.createDevice(t, user.ID, "Toko", true)

	// No add-on: silent, but the inbound message is recorded
	reply, err := svc.HandleInbound(context.Background(), device, "08123456789", "halo")
	require.NoError(t, err)
	assert.Empty(t, reply)

	history, err := env.queue.ListHistory(user.ID, "", "", "", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.DirectionInbound, history[0].Direction)
	assert.Equal(t, "628123456789", history[0].Phone)
	assert.Equal(t, "halo", history[0].Body)

	// Nothing was queued either
	claimed, err := env.queue.Claim(device.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestHandleInboundKeywordRule(t *testing.T) {
	env := newTestEnv(t)
	ai := &fakeAI{reply: "AI fallback"}
	svc := newChatbotService(env, ai)

	user := env.createUser(t, "budi", "password123")
	device := env.createDevice(t, user.ID, "Toko", true)
	env.grantAddon(t, user.ID, models.AddonAIChatbot)

	low := models.NewChatbotRule(user.ID, "info", models.MatchContains, "Silakan cek katalog kami")
	low.Priority = 10
	require.NoError(t, env.chatbot.Create(low))

	high := models.NewChatbotRule(user.ID, "info harga", models.MatchContains, "Harga mulai Rp 99.000")
	high.Priority = 1
	require.NoError(t, env.chatbot.Create(high))

	reply, err := svc.HandleInbound(context.Background(), device, "628123456789", "mau info harga dong")
	require.NoError(t, err)
	assert.Equal(t, "Harga mulai Rp 99.000", reply)
	assert.Zero(t, ai.calls)

	// The reply is queued for the device to send
	claimed, err := env.queue.Claim(device.ID, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "Harga mulai Rp 99.000", claimed[0].Body)
	assert.Equal(t, "628123456789", claimed[0].Phone)
}

func TestHandleInboundExactRuleBeatsLooserMatch(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatbotService(env, &fakeAI{})

	user := env.createUser(t, "budi", "password123")
	device := env.createDevice(t, user.ID, "Toko", true)
	env.grantAddon(t, user.ID, models.AddonAIChatbot)

	// Same priority; the looser rule is older. Specificity decides.
	loose := models.NewChatbotRule(user.ID, "harga", models.MatchContains, "Cek katalog untuk harga")
	require.NoError(t, env.chatbot.Create(loose))

	exact := models.NewChatbotRule(user.ID, "harga", models.MatchExact, "Harga mulai Rp 99.000")
	require.NoError(t, env.chatbot.Create(exact))

	reply, err := svc.HandleInbound(context.Background(), device, "628123456789", "harga")
	require.NoError(t, err)
	assert.Equal(t, "Harga mulai Rp 99.000", reply)
}

func TestHandleInboundDeviceScopedRule(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatbotService(env, &fakeAI{err: errors.New("down")})

	user := env.createUser(t, "budi", "password123")
	deviceA := env.createDevice(t, user.ID, "Toko A", true)
	deviceB := env.createDevice(t, user.ID, "Toko B", true)
	env.grantAddon(t, user.ID, models.AddonAIChatbot)

	scoped := models.NewChatbotRule(user.ID, "alamat", models.MatchContains, "Jl. Sudirman 1")
	scoped.DeviceID = &deviceA.ID
	require.NoError(t, env.chatbot.Create(scoped))

	reply, err := svc.HandleInbound(context.Background(), deviceA, "628123456789", "alamat toko?")
	require.NoError(t, err)
	assert.Equal(t, "Jl. Sudirman 1", reply)

	// The other device does not see the scoped rule
	reply, err = svc.HandleInbound(context.Background(), deviceB, "628123456789", "alamat toko?")
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestHandleInboundAIFallback(t *testing.T) {
	env := newTestEnv(t)
	ai := &fakeAI{reply: "Halo! Ada yang bisa dibantu?"}
	svc := newChatbotService(env, ai)

	user := env.createUser(t, "budi", "password123")
	device := env.createDevice(t, user.ID, "Toko", true)
	env.grantAddon(t, user.ID, models.AddonAIChatbot)

	reply, err := svc.HandleInbound(context.Background(), device, "628123456789", "pertanyaan bebas")
	require.NoError(t, err)
	assert.Equal(t, "Halo! Ada yang bisa dibantu?", reply)
	assert.Equal(t, 1, ai.calls)
}

func TestHandleInboundAIFailureIsSilent(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatbotService(env, &fakeAI{err: errors.New("timeout")})

	user := env.createUser(t, "budi", "password123")
	device := env.createDevice(t, user.ID, "Toko", true)
	env.grantAddon(t, user.ID, models.AddonAIChatbot)

	reply, err := svc.HandleInbound(context.Background(), device, "628123456789", "halo")
	require.NoError(t, err)
	assert.Empty(t, reply)

	claimed, err := env.queue.Claim(device.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestHandleInboundRejectsBadSender(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatbotService(env, &fakeAI{})

	user := env.createUser(t, "budi", "password123")
	device := env.createDevice(t, user.ID, "Toko", true)

	_, err := svc.HandleInbound(context.Background(), device, "not-a-number", "halo")
	assert.Error(t, err)

	_, err = svc.HandleInbound(context.Background(), nil, "628123456789", "halo")
	assert.Error(t, err)
}

func TestRuleOwnershipAndLifecycle(t *testing.T) {
	env := newTestEnv(t)
	svc := newChatbotService(env, &fakeAI{})

	user := env.createUser(t, "budi", "password123")
	other := env.createUser(t, "sari", "password123")
	env.grantAddon(t, user.ID, models.AddonAIChatbot)

	rule, err := svc.CreateRule(user.ID, &models.CreateChatbotRuleRequest{
		Keyword:   "promo",
		MatchType: models.MatchPrefix,
		Reply:     "Promo bulan ini: gratis ongkir",
	})
	require.NoError(t, err)

	_, err = svc.GetRule(other.ID, rule.ID)
	assert.ErrorIs(t, err, ErrNotRuleOwner)
	_, err = svc.GetRule(user.ID, "missing")
	assert.ErrorIs(t, err, ErrRuleNotFound)

	updated, err := svc.UpdateRule(user.ID, rule.ID, &models.CreateChatbotRuleRequest{
		Keyword: "promo",
		Reply:   "Promo berakhir",
	})
	require.NoError(t, err)
	assert.Equal(t, "Promo berakhir", updated.Reply)
	assert.Equal(t, models.MatchPrefix, updated.MatchType)

	paused, err := svc.SetRuleActive(user.ID, rule.ID, false)
	require.NoError(t, err)
	assert.False(t, paused.Active)

	require.NoError(t, svc.DeleteRule(user.ID, rule.ID))
	_, err = svc.GetRule(user.ID, rule.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}
