package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/config"
	"github.com/zesbe/hallowa-sub001/internal/db"
	"github.com/zesbe/hallowa-sub001/internal/gateway"
	"github.com/zesbe/hallowa-sub001/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// testEnv wires real repositories over an in-memory database so service
// tests exercise the actual SQL semantics.
type testEnv struct {
	users      db.UserRepository
	devices    db.DeviceRepository
	contacts   db.ContactRepository
	templates  db.TemplateRepository
	broadcasts db.BroadcastRepository
	queue      db.QueueRepository
	payments   db.PaymentRepository
	addons     db.AddonRepository
	chatbot    db.ChatbotRepository
	reminders  db.ReminderRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	database, err := db.NewDatabase(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	conn := database.GetDB()
	return &testEnv{
		users:      db.NewUserRepository(conn),
		devices:    db.NewDeviceRepository(conn),
		contacts:   db.NewContactRepository(conn),
		templates:  db.NewTemplateRepository(conn),
		broadcasts: db.NewBroadcastRepository(conn),
		queue:      db.NewQueueRepository(conn),
		payments:   db.NewPaymentRepository(conn),
		addons:     db.NewAddonRepository(conn),
		chatbot:    db.NewChatbotRepository(conn),
		reminders:  db.NewReminderRepository(conn),
	}
}

func (e *testEnv) createUser(t *testing.T, username, password string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.NewUser(username, username+"@example.com", string(hash))
	require.NoError(t, e.users.Create(user))
	return user
}

func (e *testEnv) createDevice(t *testing.T, userID, name string, connected bool) *models.Device {
	t.Helper()

	device := models.NewDevice(userID, name)
	require.NoError(t, e.devices.Create(device))

	if connected {
		require.NoError(t, e.devices.UpdateStatus(device.ID, models.DeviceConnected, "628000000001", "jid@s.whatsapp.net"))
		reloaded, err := e.devices.GetByID(device.ID)
		require.NoError(t, err)
		return reloaded
	}

	return device
}

func (e *testEnv) grantAddon(t *testing.T, userID, code string) *models.Addon {
	t.Helper()

	addon, err := e.addons.GetByCode(code)
	require.NoError(t, err)
	if addon == nil {
		addon = models.NewAddon(code, code, decimal.NewFromInt(50000), 30)
		require.NoError(t, e.addons.Create(addon))
	}
	require.NoError(t, e.addons.Grant(models.NewUserAddon(userID, addon)))
	return addon
}

// fakeGateway is a PaymentGateway stub recording the requests it sees
type fakeGateway struct {
	tx      *gateway.Transaction
	err     error
	verify  bool
	lastReq *gateway.TransactionRequest
}

func (f *fakeGateway) CreateTransaction(_ context.Context, req *gateway.TransactionRequest) (*gateway.Transaction, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

func (f *fakeGateway) VerifyCallback(_ []byte, _ string) bool {
	return f.verify
}

// fakeAI is an AIResponder stub
type fakeAI struct {
	reply string
	err   error
	calls int
}

func (f *fakeAI) Reply(_ context.Context, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.TokenExpiry = time.Hour
	cfg.Security.EncryptionKey = "0123456789abcdef0123456789abcdef"
	cfg.Bridge.Token = "bridge-token"
	cfg.Scheduler.Enable = true
	cfg.Scheduler.StuckDeviceAfter = 10 * time.Minute
	cfg.Scheduler.ClaimTimeout = 5 * time.Minute
	cfg.Scheduler.ReminderDays = []int{7, 3, 1}
	return cfg
}
