package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "vision-test"}, DefaultProfile(), zap.NewNop())
}

func TestOpenAI_Extract(t *testing.T) {
	var captured map[string]any
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponse(`{"prospects":[{"Name":"Alice","PhoneNumber":"01712345678","Company":"","Email":"","Address":""}]}`)))
	})

	records, err := client.Extract(context.Background(), Image{Name: "p.png", MIMEType: "image/png", Data: []byte("abc")})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Alice", records[0].Name)
	assert.Equal(t, "01712345678", records[0].PhoneNumber)

	assert.Equal(t, "vision-test", captured["model"])
	messages := captured["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	imagePart := content[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "data:image/png;base64,YWJj", imagePart["url"])
}

func TestOpenAI_ExtractEmptyContent(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse("")))
	})

	records, err := client.Extract(context.Background(), Image{MIMEType: "image/jpeg", Data: []byte{1}})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestOpenAI_ExtractFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"schema mismatch", http.StatusOK, chatResponse(`{"prospects":[{"Email":"x@y.z"}]}`)},
		{"garbage content", http.StatusOK, chatResponse("sorry, no")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.payload))
			})

			_, err := client.Extract(context.Background(), Image{MIMEType: "image/png", Data: []byte{1}})
			assert.Error(t, err)
		})
	}
}

func TestOpenAI_ExtractRejectsEmptyImage(t *testing.T) {
	client := NewOpenAI(OpenAIConfig{APIKey: "k"}, DefaultProfile(), zap.NewNop())

	_, err := client.Extract(context.Background(), Image{MIMEType: "image/png"})
	assert.ErrorIs(t, err, ErrNoImageData)
}
