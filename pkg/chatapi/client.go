// Package chatapi is the HTTP client for the dashchat message store.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dashchat/internal/credentials"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/httputil"
	"dashchat/internal/metrics"
	"dashchat/internal/models"
	"dashchat/internal/retry"
	"dashchat/internal/service"
	"dashchat/pkg/circuitbreaker"
	"dashchat/pkg/constants"

	"github.com/sirupsen/logrus"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

var (
	_ service.Directory       = (*Client)(nil)
	_ service.MessageAppender = (*Client)(nil)
)

// Client talks to the message store over HTTP. Reads are retried with backoff;
// every call goes through a circuit breaker that only counts transport and 5xx
// failures.
type Client struct {
	baseURL string
	tokens  credentials.TokenSource
	client  *http.Client
	logger  *logrus.Logger
	breaker *circuitbreaker.CircuitBreaker
	backoff *retry.Backoff
}

// NewClient creates a client with a warn level logger.
func NewClient(baseURL string, tokens credentials.TokenSource, httpClient *http.Client) *Client {
	return NewClientWithLogger(baseURL, tokens, httpClient, nil)
}

// NewClientWithLogger creates a client. tokens may be nil for a client that only logs in.
func NewClientWithLogger(baseURL string, tokens credentials.TokenSource, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: constants.DefaultHTTPTimeoutSec * time.Second,
		}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	breaker := circuitbreaker.New("message-store", circuitbreaker.Config{
		MaxFailures: constants.DefaultBreakerMaxFailures,
		Timeout:     constants.DefaultBreakerTimeoutSec * time.Second,
		IsFailure:   apperrors.IsRetryable,
	}, logger)

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tokens:  tokens,
		client:  httpClient,
		logger:  logger,
		breaker: breaker,
		backoff: retry.NewBackoff(retry.DefaultBackoffConfig()),
	}
}

// SetRetryConfig replaces the backoff used for reads.
func (c *Client) SetRetryConfig(cfg retry.BackoffConfig) {
	c.backoff = retry.NewBackoff(cfg)
}

// BreakerState exposes the circuit breaker state for diagnostics.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.GetState()
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	body, err := json.Marshal(models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to encode login request")
	}

	var resp models.LoginResponse
	err = c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "/auth/login",
		body:     body,
		anon:     true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListCompanies returns every company visible to the caller.
func (c *Client) ListCompanies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: "/companies"}, &companies); err != nil {
		return nil, err
	}
	return companies, nil
}

// ListUsers returns every user visible to the caller.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: "/users"}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListMessages returns the caller's messages exchanged with withUser, or all of
// them when withUser is empty.
func (c *Client) ListMessages(ctx context.Context, withUser string) ([]models.Message, error) {
	if withUser == "" {
		withUser = constants.WithUserAll
	}

	var messages []models.Message
	err := c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: "/messages",
		query:    url.Values{"withUser": []string{withUser}},
	}, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage appends a message to the store.
func (c *Client) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to encode message")
	}

	var msg models.Message
	if err := c.do(ctx, request{method: http.MethodPost, endpoint: "/messages", body: body}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateStatus reports a delivery status change for message id.
func (c *Client) UpdateStatus(ctx context.Context, id string, status models.DeliveryStatus) (*models.Message, error) {
	body, err := json.Marshal(models.StatusUpdateRequest{Status: status})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to encode status update")
	}

	var msg models.Message
	err = c.do(ctx, request{
		method:   http.MethodPatch,
		endpoint: "/messages/{id}/status",
		path:     "/messages/" + url.PathEscape(id) + "/status",
		body:     body,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead marks every message received from withUser as read and returns how
// many changed.
func (c *Client) MarkRead(ctx context.Context, withUser string) (int64, error) {
	body, err := json.Marshal(models.MarkReadRequest{WithUser: withUser})
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to encode mark read request")
	}

	var resp models.MarkReadResponse
	if err := c.do(ctx, request{method: http.MethodPost, endpoint: "/messages/read", body: body}, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

// ListDocuments returns the documents attached to a task.
func (c *Client) ListDocuments(ctx context.Context, taskID string) ([]models.TaskDocument, error) {
	var docs []models.TaskDocument
	err := c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: "/tasks/{taskId}/documents",
		path:     "/tasks/" + url.PathEscape(taskID) + "/documents",
	}, &docs)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// UploadDocument attaches a file to a task. The whole file is buffered so the
// request can be sent as a single multipart body.
func (c *Client) UploadDocument(ctx context.Context, taskID, filename, description string, r io.Reader) (*models.TaskDocument, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to create multipart file")
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "failed to read document").
			WithContext("filename", filename)
	}
	if description != "" {
		if err := mw.WriteField("description", description); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to write description")
		}
	}
	if err := mw.Close(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to finish multipart body")
	}

	var doc models.TaskDocument
	err = c.do(ctx, request{
		method:      http.MethodPost,
		endpoint:    "/tasks/{taskId}/documents",
		path:        "/tasks/" + url.PathEscape(taskID) + "/documents",
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
	}, &doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

type request struct {
	method string
	// endpoint is the route template, used for logs and metric labels
	endpoint    string
	path        string
	query       url.Values
	body        []byte
	contentType string
	anon        bool
}

func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	call := func() error {
		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.roundTrip(ctx, req, out)
		})
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return apperrors.Wrap(err, apperrors.ErrCodeStoreAPI, "message store unavailable").
				WithContext("endpoint", req.endpoint).
				WithUserMessage("The message store is temporarily unavailable")
		}
		return err
	}

	if req.method == http.MethodGet {
		return c.backoff.Retry(ctx, call)
	}
	return call()
}

func (c *Client) roundTrip(ctx context.Context, req request, out interface{}) error {
	path := req.path
	if path == "" {
		path = req.endpoint
	}
	target := c.baseURL + path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to create request").
			WithContext("endpoint", req.endpoint)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		contentType := req.contentType
		if contentType == "" {
			contentType = "application/json"
		}
		httpReq.Header.Set("Content-Type", contentType)
	}

	if !req.anon {
		token, err := c.token()
		if err != nil {
			return err
		}
		httputil.SetBearerToken(httpReq, token)
	}

	labels := map[string]string{"method": req.method, "endpoint": req.endpoint}
	metrics.IncrementCounter(metrics.StoreRequests, labels, "Requests sent to the message store")

	c.logger.WithFields(logrus.Fields{
		"method":   req.method,
		"endpoint": req.endpoint,
	}).Debug("Sending message store request")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		metrics.IncrementCounter(metrics.StoreRequestFailures, labels, "Failed message store requests")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperrors.NewAPIError(req.endpoint, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.IncrementCounter(metrics.StoreRequestFailures, labels, "Failed message store requests")
		return apperrors.NewAPIError(req.endpoint, 0, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode == http.StatusForbidden {
		c.logger.WithFields(logrus.Fields{
			"method":   req.method,
			"endpoint": req.endpoint,
		}).Warn("Message store denied access")
		metrics.IncrementCounter(metrics.StoreForbidden, labels, "Requests denied by the message store")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IncrementCounter(metrics.StoreRequestFailures, labels, "Failed message store requests")
		c.logger.WithFields(logrus.Fields{
			"method":      req.method,
			"endpoint":    req.endpoint,
			"status_code": resp.StatusCode,
		}).Debug("Message store returned error status")
		return apperrors.NewAPIError(req.endpoint, resp.StatusCode, errors.New(errorMessage(data, resp.Status)))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStoreAPI, "failed to decode message store response").
			WithContext("endpoint", req.endpoint)
	}
	return nil
}

func (c *Client) token() (string, error) {
	if c.tokens == nil {
		return "", apperrors.NewAuthError("no credentials configured")
	}
	token, err := c.tokens.Token()
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", apperrors.NewAuthError("not logged in")
	}
	return token, nil
}

// errorMessage extracts the message of a JSON error envelope, falling back to
// the HTTP status text.
func errorMessage(body []byte, status string) string {
	var envelope apperrors.HTTPErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return status
}
