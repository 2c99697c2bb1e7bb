package remote

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"chat-relay/errors"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestClient_Do(t *testing.T) {
	req := require.New(t)

	var gotPath, gotAgent, gotContentType, gotID, gotMsg string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		gotPath = r.URL.Path
		gotAgent = r.UserAgent()
		gotContentType = r.Header.Get("Content-Type")
		req.NoError(r.ParseForm())
		gotID = r.PostForm.Get("id")
		gotMsg = r.PostForm.Get("msg")
		_, _ = w.Write([]byte("win"))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, time.Second, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)

	// When sending a message
	body, err := client.Do(context.Background(), Request{
		Action:    ActionSend,
		UserAgent: userAgents[0],
		Form:      url.Values{"id": {"central2:abc"}, "msg": {"héllo & bye"}},
	})

	// Then the request is a form-encoded POST to the action endpoint
	req.NoError(err)
	req.Equal("win", string(body))
	req.Equal("/send", gotPath)
	req.Equal(userAgents[0], gotAgent)
	req.Equal(contentType, gotContentType)
	req.Equal("central2:abc", gotID)
	req.Equal("héllo & bye", gotMsg)
}

func TestClient_Do_UnexpectedStatus(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, time.Second, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)

	_, err = client.Do(context.Background(), Request{Action: ActionStart})
	req.True(stderrors.Is(err, errors.ErrProtocol))
	req.False(stderrors.Is(err, errors.ErrTimeout))
}

func TestClient_Do_Timeout(t *testing.T) {
	req := require.New(t)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient(server.URL, 50*time.Millisecond, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)

	// When the long-poll outlives the request timeout
	_, err = client.Do(context.Background(), Request{Action: ActionEvents, Form: url.Values{"id": {"x"}}})

	// Then it is reported as a timeout
	req.True(stderrors.Is(err, errors.ErrTimeout), "err=%v", err)
}

func TestNewClient_BasePath(t *testing.T) {
	req := require.New(t)
	client, err := NewClient("https://front1.example.com/api", time.Second, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)
	req.Equal("https://front1.example.com/api/events", client.baseURL.JoinPath(string(ActionEvents)).String())
}

func TestRandomUserAgent(t *testing.T) {
	req := require.New(t)
	for range 20 {
		req.Contains(userAgents, RandomUserAgent())
	}
}
