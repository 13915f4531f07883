package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zesbe/hallowa-sub001/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "device not found", err: services.ErrDeviceNotFound, expected: http.StatusNotFound},
		{name: "foreign device masked as 404", err: services.ErrNotDeviceOwner, expected: http.StatusNotFound},
		{name: "foreign broadcast masked as 404", err: services.ErrNotBroadcastOwner, expected: http.StatusNotFound},
		{name: "quota exhausted", err: services.ErrQuotaExceeded, expected: http.StatusPaymentRequired},
		{name: "plan expired", err: services.ErrPlanExpired, expected: http.StatusPaymentRequired},
		{name: "addon missing", err: services.ErrAddonRequired, expected: http.StatusPaymentRequired},
		{name: "duplicate contact", err: services.ErrDuplicateContact, expected: http.StatusConflict},
		{name: "already resolved", err: services.ErrAlreadyResolved, expected: http.StatusConflict},
		{name: "not cancellable", err: services.ErrNotCancellable, expected: http.StatusConflict},
		{name: "anything else", err: errors.New("boom"), expected: http.StatusBadRequest},
		{name: "wrapped sentinel", err: fmt.Errorf("checking quota: %w", services.ErrQuotaExceeded), expected: http.StatusPaymentRequired},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, statusFor(tc.err))
		})
	}
}

func TestCurrentUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// No userID in context: 401 and handler stops
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	_, ok := currentUserID(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// With userID set by the auth middleware
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Set("userID", "user-1")
	id, ok := currentUserID(c)
	assert.True(t, ok)
	assert.Equal(t, "user-1", id)
}

func TestPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	testCases := []struct {
		name           string
		query          string
		expectedLimit  int
		expectedOffset int
	}{
		{name: "defaults", query: "", expectedLimit: 50, expectedOffset: 0},
		{name: "explicit values", query: "?limit=10&offset=20", expectedLimit: 10, expectedOffset: 20},
		{name: "garbage falls back", query: "?limit=abc&offset=-5", expectedLimit: 50, expectedOffset: 0},
		{name: "zero limit falls back", query: "?limit=0", expectedLimit: 50, expectedOffset: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/"+tc.query, nil)

			limit, offset := pagination(c)
			assert.Equal(t, tc.expectedLimit, limit)
			assert.Equal(t, tc.expectedOffset, offset)
		})
	}
}
