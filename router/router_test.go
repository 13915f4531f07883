package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zesbe/hallowa-sub001/internal/config"
	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBridgeToken = "bridge-token"
	testDeviceKey   = "device-key-1"
)

type fakeDeviceService struct {
	device     *models.Device
	lastReport *models.DeviceStatusReport
	reportErr  error
}

func (f *fakeDeviceService) AuthenticateBridge(apiKey string) (*models.Device, error) {
	if f.device != nil && apiKey == f.device.APIKey {
		return f.device, nil
	}
	return nil, services.ErrDeviceNotFound
}

func (f *fakeDeviceService) HandleStatusReport(deviceID string, report *models.DeviceStatusReport) error {
	f.lastReport = report
	return f.reportErr
}

type fakeQueueService struct {
	messages   []*models.QueuedMessage
	claimLimit int
	resolveErr error
	resolved   *models.QueuedMessage
}

func (f *fakeQueueService) Claim(device *models.Device, limit int) ([]*models.QueuedMessage, error) {
	f.claimLimit = limit
	return f.messages, nil
}

func (f *fakeQueueService) Resolve(device *models.Device, messageID, status string, sendErr *string) (*models.QueuedMessage, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.resolved, nil
}

type fakeChatbotService struct {
	reply string
	err   error
	from  string
	body  string
}

func (f *fakeChatbotService) HandleInbound(_ context.Context, device *models.Device, from, body string) (string, error) {
	f.from = from
	f.body = body
	return f.reply, f.err
}

type bridgeEnv struct {
	router  *gin.Engine
	devices *fakeDeviceService
	queue   *fakeQueueService
	chatbot *fakeChatbotService
	device  *models.Device
}

func setupBridge(t *testing.T) *bridgeEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Bridge.Token = testBridgeToken

	device := models.NewDevice("user-1", "Toko")
	device.APIKey = testDeviceKey

	env := &bridgeEnv{
		devices: &fakeDeviceService{device: device},
		queue:   &fakeQueueService{},
		chatbot: &fakeChatbotService{},
		device:  device,
	}

	engine := gin.New()
	NewBridge(cfg, env.devices, env.queue, env.chatbot).Register(engine)
	env.router = engine
	return env
}

func (e *bridgeEnv) post(t *testing.T, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(http.MethodPost, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func bridgeHeaders() map[string]string {
	return map[string]string{
		"X-Bridge-Token": testBridgeToken,
		"X-Device-Key":   testDeviceKey,
	}
}

func TestBridgeAuthentication(t *testing.T) {
	env := setupBridge(t)
	claimBody := map[string]interface{}{"device_id": env.device.ID}

	testCases := []struct {
		name           string
		headers        map[string]string
		expectedStatus int
	}{
		{
			name:           "missing bridge token",
			headers:        map[string]string{"X-Device-Key": testDeviceKey},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong bridge token",
			headers:        map[string]string{"X-Bridge-Token": "wrong", "X-Device-Key": testDeviceKey},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing device key",
			headers:        map[string]string{"X-Bridge-Token": testBridgeToken},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unknown device key",
			headers:        map[string]string{"X-Bridge-Token": testBridgeToken, "X-Device-Key": "wrong"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "valid credentials",
			headers:        bridgeHeaders(),
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.post(t, "/bridge/queue/claim", claimBody, tc.headers)
			assert.Equal(t, tc.expectedStatus, w.Code)
		})
	}
}

func TestBridgeClaim(t *testing.T) {
	env := setupBridge(t)
	env.queue.messages = []*models.QueuedMessage{
		models.NewQueuedMessage("user-1", env.device.ID, "628111111111", "Halo"),
	}

	w := env.post(t, "/bridge/queue/claim", map[string]interface{}{
		"device_id": env.device.ID,
		"limit":     5,
	}, bridgeHeaders())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, env.queue.claimLimit)
	assert.Contains(t, w.Body.String(), "628111111111")

	// Claiming for another device with this key is forbidden
	w = env.post(t, "/bridge/queue/claim", map[string]interface{}{
		"device_id": "other-device",
	}, bridgeHeaders())
	assert.Equal(t, http.StatusForbidden, w.Code)

	// device_id is mandatory
	w = env.post(t, "/bridge/queue/claim", map[string]interface{}{}, bridgeHeaders())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBridgeResult(t *testing.T) {
	env := setupBridge(t)
	resolved := models.NewQueuedMessage("user-1", env.device.ID, "628111111111", "Halo")
	resolved.Status = models.QueueSent

	testCases := []struct {
		name           string
		resolveErr     error
		expectedStatus int
	}{
		{name: "sent", resolveErr: nil, expectedStatus: http.StatusOK},
		{name: "unknown message", resolveErr: services.ErrMessageNotFound, expectedStatus: http.StatusNotFound},
		{name: "foreign message", resolveErr: services.ErrNotMessageDevice, expectedStatus: http.StatusForbidden},
		{name: "duplicate report", resolveErr: services.ErrAlreadyResolved, expectedStatus: http.StatusConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env.queue.resolved = resolved
			env.queue.resolveErr = tc.resolveErr

			w := env.post(t, "/bridge/queue/"+resolved.ID+"/result", map[string]interface{}{
				"status": models.QueueSent,
			}, bridgeHeaders())

			assert.Equal(t, tc.expectedStatus, w.Code)
		})
	}

	// Missing status fails binding
	w := env.post(t, "/bridge/queue/"+resolved.ID+"/result", map[string]interface{}{}, bridgeHeaders())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBridgeDeviceStatus(t *testing.T) {
	env := setupBridge(t)

	w := env.post(t, "/bridge/devices/"+env.device.ID+"/status", models.DeviceStatusReport{
		Status: models.DeviceConnected,
		Phone:  "628123456789",
	}, bridgeHeaders())

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.devices.lastReport)
	assert.Equal(t, models.DeviceConnected, env.devices.lastReport.Status)

	// Reporting for a different device is forbidden
	w = env.post(t, "/bridge/devices/other-device/status", models.DeviceStatusReport{
		Status: models.DeviceConnected,
	}, bridgeHeaders())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBridgeInbound(t *testing.T) {
	env := setupBridge(t)
	env.chatbot.reply = "Harga mulai Rp 99.000"

	w := env.post(t, "/bridge/inbound", map[string]interface{}{
		"device_id": env.device.ID,
		"from":      "628123456789",
		"body":      "info harga",
	}, bridgeHeaders())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Harga mulai Rp 99.000")
	assert.Equal(t, "628123456789", env.chatbot.from)
	assert.Equal(t, "info harga", env.chatbot.body)

	// device_id mismatch is forbidden
	w = env.post(t, "/bridge/inbound", map[string]interface{}{
		"device_id": "other-device",
		"from":      "628123456789",
		"body":      "halo",
	}, bridgeHeaders())
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Incomplete payload fails binding
	w = env.post(t, "/bridge/inbound", map[string]interface{}{
		"device_id": env.device.ID,
	}, bridgeHeaders())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
