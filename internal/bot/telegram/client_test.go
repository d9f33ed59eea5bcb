package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient("test-token", WithBaseURL(srv.URL))
}

func TestSendMessage(t *testing.T) {
	var gotPath string

	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Write([]byte(`{"ok":true,"result":{"message_id":99,"chat":{"id":7}}}`))
	})

	msg, err := c.SendMessage(context.Background(), 7, "hello")
	require.NoError(t, err)

	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, float64(7), gotBody["chat_id"])
	assert.Equal(t, "hello", gotBody["text"])
	assert.Equal(t, int64(99), msg.MessageID)
}

func TestSendMessageAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	})

	_, err := c.SendMessage(context.Background(), 7, "hello")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "sendMessage", apiErr.Method)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Description, "chat not found")
}

func TestGetUpdates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(42), body["offset"])
		assert.Equal(t, float64(30), body["timeout"])

		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":43,"message":{"message_id":1,"text":"/start","chat":{"id":5},"from":{"id":9,"username":"alice"}}}
		]}`))
	})

	updates, err := c.GetUpdates(context.Background(), 42, 30*time.Second)
	require.NoError(t, err)

	require.Len(t, updates, 1)
	assert.Equal(t, int64(43), updates[0].UpdateID)
	assert.Equal(t, "/start", updates[0].Message.Text)
	assert.Equal(t, "alice", updates[0].Message.From.Username)
}

func TestSendAudioMultipart(t *testing.T) {
	dir := t.TempDir()

	audioPath := filepath.Join(dir, "My_Song.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("audio-bytes"), 0644))

	thumbPath := filepath.Join(dir, "thumb.jpg")
	require.NoError(t, os.WriteFile(thumbPath, []byte("jpeg"), 0644))

	var gotTitle, gotPerformer, gotDuration, gotAudioName, gotThumbName string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		gotTitle = r.FormValue("title")
		gotPerformer = r.FormValue("performer")
		gotDuration = r.FormValue("duration")

		if fhs := r.MultipartForm.File["audio"]; len(fhs) == 1 {
			gotAudioName = fhs[0].Filename
		}

		if fhs := r.MultipartForm.File["thumbnail"]; len(fhs) == 1 {
			gotThumbName = fhs[0].Filename
		}

		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})

	err := c.SendAudio(context.Background(), Audio{
		ChatID:        7,
		FilePath:      audioPath,
		Title:         "My Song",
		Performer:     "Someone",
		ThumbnailPath: thumbPath,
		Duration:      183,
	})
	require.NoError(t, err)

	assert.Equal(t, "My Song", gotTitle)
	assert.Equal(t, "Someone", gotPerformer)
	assert.Equal(t, "183", gotDuration)
	assert.Equal(t, "My_Song.mp3", gotAudioName)
	assert.Equal(t, "thumb.jpg", gotThumbName)
}

func TestSendAudioMissingFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected when the file is missing")
	})

	err := c.SendAudio(context.Background(), Audio{ChatID: 7, FilePath: "/does/not/exist.mp3"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to open audio file"))
}

func TestDeleteMessage(t *testing.T) {
	var gotPath string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		w.Write([]byte(`{"ok":true,"result":true}`))
	})

	require.NoError(t, c.DeleteMessage(context.Background(), 7, 99))
	assert.Equal(t, "/bottest-token/deleteMessage", gotPath)
}

func TestMalformedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	})

	_, err := c.GetMe(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Description, "malformed")
}
