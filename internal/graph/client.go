package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/graphmail/graphmail/internal/config"
	"github.com/graphmail/graphmail/internal/logging"
)

// TokenProvider supplies a valid access token for each request. The auth
// manager implements it.
type TokenProvider interface {
	GetValidToken(ctx context.Context) (string, error)
}

// Doer is the HTTP client surface the Graph client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Graph mail API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    Doer
	tokens  TokenProvider
	logger  *slog.Logger
}

// ClientOption adjusts Client construction.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL. Tests point it at a local server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPDoer overrides the HTTP client.
func WithHTTPDoer(d Doer) ClientOption {
	return func(c *Client) { c.http = d }
}

// NewClient builds a Graph client backed by the given token provider.
func NewClient(tokens TokenProvider, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: config.GraphBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resolve turns a path into a full request URL. Delta links arrive as
// absolute URLs and pass through untouched.
func (c *Client) resolve(pathOrURL string, query url.Values) string {
	u := pathOrURL
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = c.baseURL + "/" + strings.TrimLeft(pathOrURL, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

// do sends an authenticated request and decodes the response into out when
// out is non-nil. Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, pathOrURL string, query url.Values, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	fullURL := c.resolve(pathOrURL, query)
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, pathOrURL, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("graph request",
		"http_method", method,
		"path", pathOrURL,
		"status_code", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErrorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", pathOrURL, err)
	}
	return nil
}

// apiErrorFromResponse lifts the Graph error envelope into an APIError.
func apiErrorFromResponse(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("request-id"),
	}
	var envelope struct {
		Error struct {
			Code       string `json:"code"`
			Message    string `json:"message"`
			InnerError struct {
				RequestID string `json:"request-id"`
			} `json:"innerError"`
		} `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && json.Unmarshal(data, &envelope) == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		if apiErr.RequestID == "" {
			apiErr.RequestID = envelope.Error.InnerError.RequestID
		}
	}
	return apiErr
}

// Me returns the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListMessages lists messages in the folder, newest first, narrowed by the
// options. Sender exclusions are applied after the page comes back, since
// the service has no substring filter over sender fields.
func (c *Client) ListMessages(ctx context.Context, folder string, opts ListOptions) ([]Message, error) {
	path := fmt.Sprintf("/me/mailFolders/%s/messages", url.PathEscape(folder))

	var page graphMessagePage
	if err := c.do(ctx, http.MethodGet, path, opts.query(folder), nil, &page); err != nil {
		c.logger.Error("listing messages failed", logging.Folder(folder), logging.Err(err))
		return nil, err
	}

	msgs := make([]Message, 0, len(page.Value))
	for i := range page.Value {
		m := normalize(&page.Value[i])
		if matchesSender(&m, opts.ExcludeSenders) {
			continue
		}
		msgs = append(msgs, m)
	}

	c.logger.Debug("listed messages",
		logging.Folder(folder),
		"count", len(msgs),
		"excluded", len(page.Value)-len(msgs))
	return msgs, nil
}

// SearchMessages runs a free-text search over the folder. Search results
// come back in relevance order; date filters and ordering do not apply.
func (c *Client) SearchMessages(ctx context.Context, folder, term string, opts ListOptions) ([]Message, error) {
	opts.Search = term
	return c.ListMessages(ctx, folder, opts)
}

// GetMessage fetches a single message with its full body.
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	path := "/me/messages/" + url.PathEscape(id)
	query := url.Values{}
	query.Set("$select", strings.Join(append(append([]string(nil), selectFields...), "body"), ","))

	var gm graphMessage
	if err := c.do(ctx, http.MethodGet, path, query, nil, &gm); err != nil {
		return nil, err
	}
	m := normalize(&gm)
	return &m, nil
}

// ListAttachments describes the attachments of a message without
// downloading any content.
func (c *Client) ListAttachments(ctx context.Context, id string) ([]Attachment, error) {
	path := "/me/messages/" + url.PathEscape(id) + "/attachments"
	query := url.Values{}
	query.Set("$select", "id,name,contentType,size,isInline")

	var page struct {
		Value []Attachment `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, path, query, nil, &page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// SendMessage sends the message through the account's mailbox and saves a
// copy to the sent folder.
func (c *Client) SendMessage(ctx context.Context, out *OutgoingMessage) error {
	if len(out.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	if err := c.do(ctx, http.MethodPost, "/me/sendMail", nil, out.sendMailPayload(), nil); err != nil {
		c.logger.Error("sending message failed", logging.Err(err))
		return err
	}
	c.logger.Info("message sent", "recipients", len(out.To)+len(out.Cc)+len(out.Bcc))
	return nil
}

// MarkAsRead flags the message as read.
func (c *Client) MarkAsRead(ctx context.Context, id string) error {
	path := "/me/messages/" + url.PathEscape(id)
	return c.do(ctx, http.MethodPatch, path, nil, map[string]any{"isRead": true}, nil)
}
