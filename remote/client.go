// Package remote talks to the paired-stranger chat service over its HTTP long-polling API.
package remote

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat-relay/errors"
)

type Action string

const (
	ActionStart      Action = "start"
	ActionEvents     Action = "events"
	ActionTyping     Action = "typing"
	ActionSend       Action = "send"
	ActionDisconnect Action = "disconnect"
)

const (
	contentType  = "application/x-www-form-urlencoded; charset=utf-8"
	maxBodyBytes = 1 << 20
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 6.1; WOW64; rv:14.0) Gecko/20100101 Firefox/14.0.1",
	"Mozilla/4.0 (compatible; MSIE 7.0; Windows NT 5.1; Trident/4.0; FDM; .NET CLR 2.0.50727; InfoPath.2; .NET CLR 1.1.4322)",
	"Mozilla/5.0 (Windows; U; Windows NT 6.1; es-AR; rv:1.9) Gecko/2008051206 Firefox/3.0",
}

// RandomUserAgent picks a User-Agent from the fixed pool. A session keeps the one it got.
func RandomUserAgent() string {
	return userAgents[rand.IntN(len(userAgents))]
}

// Request is one POST to the remote service.
type Request struct {
	Action    Action
	UserAgent string
	Form      url.Values
}

// Client issues form-encoded POST requests, one per action, each bounded by a timeout.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	log     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote base url: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{},
		timeout: timeout,
		log:     log,
	}, nil
}

// Do posts the request and returns the response body.
// A timeout is reported as ErrTimeout and any status other than 200 as ErrProtocol.
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.baseURL.JoinPath(string(r.Action))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(r.Form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrTimeout, r.Action)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: %s returned %d", errors.ErrProtocol, r.Action, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrTimeout, r.Action)
		}
		return nil, err
	}
	c.log.Debug("Remote call", "action", r.Action, "bytes", len(body))
	return body, nil
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
