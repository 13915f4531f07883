package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/config"
	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserService is a mock implementation of UserServiceInterface
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateUser(username, email, password string) (*models.User, error) {
	args := m.Called(username, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(username, password, totpCode string) (*models.User, error) {
	args := m.Called(username, password, totpCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUser(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateUser(id string, req *models.UpdateUserRequest) (*models.User, error) {
	args := m.Called(id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) SetRole(id, role string) error {
	args := m.Called(id, role)
	return args.Error(0)
}

func (m *MockUserService) SetPlan(id, plan string, durationDays int) error {
	args := m.Called(id, plan, durationDays)
	return args.Error(0)
}

func (m *MockUserService) DeleteUser(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockUserService) ListUsers(limit, offset int) ([]*models.User, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserService) ChangePassword(id, oldPassword, newPassword string) error {
	args := m.Called(id, oldPassword, newPassword)
	return args.Error(0)
}

func (m *MockUserService) AdminSetPassword(id, newPassword string) error {
	args := m.Called(id, newPassword)
	return args.Error(0)
}

func (m *MockUserService) GenerateTOTPSecret(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *MockUserService) EnableTOTP(userID, totpCode string) error {
	args := m.Called(userID, totpCode)
	return args.Error(0)
}

func (m *MockUserService) DisableTOTP(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func handlerTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.TokenExpiry = time.Hour
	return cfg
}

func setupLoginRouter(svc UserServiceInterface) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewAuthHandler(handlerTestConfig(), svc)
	r.POST("/api/login", handler.Login)
	return r
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	user := models.NewUser("budi", "budi@example.com", "hash")
	user.ID = "user-1"

	testCases := []struct {
		name           string
		body           interface{}
		setupMock      func(*MockUserService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "missing credentials",
			body:           LoginRequest{Username: "budi"},
			setupMock:      func(m *MockUserService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Username and password are required",
		},
		{
			name: "invalid credentials",
			body: LoginRequest{Username: "budi", Password: "wrong"},
			setupMock: func(m *MockUserService) {
				m.On("Authenticate", "budi", "wrong", "").Return(nil, services.ErrInvalidCredentials)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "Invalid credentials",
		},
		{
			name: "locked account",
			body: LoginRequest{Username: "budi", Password: "password123"},
			setupMock: func(m *MockUserService) {
				m.On("Authenticate", "budi", "password123", "").Return(nil, services.ErrAccountLocked)
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name: "inactive account",
			body: LoginRequest{Username: "budi", Password: "password123"},
			setupMock: func(m *MockUserService) {
				m.On("Authenticate", "budi", "password123", "").Return(nil, services.ErrAccountInactive)
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name: "missing totp code",
			body: LoginRequest{Username: "budi", Password: "password123"},
			setupMock: func(m *MockUserService) {
				m.On("Authenticate", "budi", "password123", "").Return(nil, services.ErrInvalidTOTP)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "successful login",
			body: LoginRequest{Username: "budi", Password: "password123"},
			setupMock: func(m *MockUserService) {
				m.On("Authenticate", "budi", "password123", "").Return(user, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "token",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockSvc := new(MockUserService)
			tc.setupMock(mockSvc)
			router := setupLoginRouter(mockSvc)

			w := postJSON(t, router, "/api/login", tc.body)

			assert.Equal(t, tc.expectedStatus, w.Code)
			if tc.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tc.expectedBody)
			}
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestLoginRejectsMalformedJSON(t *testing.T) {
	router := setupLoginRouter(new(MockUserService))

	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request format")
}

func TestLoginResponseOmitsSensitiveFields(t *testing.T) {
	user := models.NewUser("budi", "budi@example.com", "secret-hash")
	user.ID = "user-1"

	mockSvc := new(MockUserService)
	mockSvc.On("Authenticate", "budi", "password123", "").Return(user, nil)
	router := setupLoginRouter(mockSvc)

	w := postJSON(t, router, "/api/login", LoginRequest{Username: "budi", Password: "password123"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-hash")
}
