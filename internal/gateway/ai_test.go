package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aiClientFor(endpoint string) *AIClient {
	cfg := &config.Config{}
	cfg.Chatbot.AIEndpoint = endpoint
	cfg.Chatbot.Timeout = 5 * time.Second
	return NewAIClient(cfg)
}

func TestAIReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req aiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "628123456789", req.From)
		assert.Equal(t, "halo", req.Message)

		json.NewEncoder(w).Encode(aiResponse{Reply: "Halo! Ada yang bisa dibantu?"})
	}))
	defer server.Close()

	reply, err := aiClientFor(server.URL).Reply(context.Background(), "628123456789", "halo")
	require.NoError(t, err)
	assert.Equal(t, "Halo! Ada yang bisa dibantu?", reply)
}

func TestAIReplyEmptyMeansSilent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(aiResponse{Reply: ""})
	}))
	defer server.Close()

	reply, err := aiClientFor(server.URL).Reply(context.Background(), "628123456789", "halo")
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestAIReplyNotConfigured(t *testing.T) {
	_, err := aiClientFor("").Reply(context.Background(), "628123456789", "halo")
	assert.ErrorIs(t, err, ErrAINotConfigured)
}

func TestAIReplyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := aiClientFor(server.URL).Reply(context.Background(), "628123456789", "halo")
	assert.Error(t, err)
}
