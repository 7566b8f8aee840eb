package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dcdock/dcdock/internal/dock"
	"github.com/dcdock/dcdock/internal/users"
)

var errNotAuthenticated = errors.New("not authenticated, call Login first")

// APIError carries the status and body of a failed API call.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
}

// ConflictError reports a rejected stale write alongside the row that won.
type ConflictError struct {
	CurrentVersion  int64                 `json:"current_version"`
	ProvidedVersion int64                 `json:"provided_version"`
	CurrentData     dock.AssignmentDetail `json:"current_data"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: row is at version %d, update carried version %d",
		e.CurrentVersion, e.ProvidedVersion)
}

// Config describes how to reach the API server.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client is an authenticated consumer of the dock-scheduling API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// New constructs an API client. BaseURL defaults to the local server.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// Token returns the bearer token obtained at login.
func (c *Client) Token() string {
	return c.token
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Login exchanges credentials for a bearer token and returns the
// authenticated account.
func (c *Client) Login(ctx context.Context, email, password string) (*users.User, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, readAPIError(response)
	}

	var login loginResponse
	if err := json.NewDecoder(response.Body).Decode(&login); err != nil {
		return nil, err
	}
	c.token = login.AccessToken

	var account users.User
	if err := c.get(ctx, "/api/users/me", nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// ListAssignments returns assignments, optionally filtered by direction.
func (c *Client) ListAssignments(ctx context.Context, direction string) ([]dock.AssignmentDetail, error) {
	query := url.Values{}
	if direction != "" {
		query.Set("direction", direction)
	}
	var details []dock.AssignmentDetail
	if err := c.get(ctx, "/api/assignments", query, &details); err != nil {
		return nil, err
	}
	return details, nil
}

// GetAssignment returns one assignment with relations resolved.
func (c *Client) GetAssignment(ctx context.Context, id int64) (*dock.AssignmentDetail, error) {
	var detail dock.AssignmentDetail
	if err := c.get(ctx, fmt.Sprintf("/api/assignments/%d", id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// AssignmentCreate is the payload for CreateAssignment.
type AssignmentCreate struct {
	RampID   int64      `json:"ramp_id"`
	LoadID   int64      `json:"load_id"`
	StatusID int64      `json:"status_id"`
	EtaIn    *time.Time `json:"eta_in,omitempty"`
	EtaOut   *time.Time `json:"eta_out,omitempty"`
}

// CreateAssignment schedules a load onto a ramp.
func (c *Client) CreateAssignment(ctx context.Context, input AssignmentCreate) (*dock.AssignmentDetail, error) {
	var detail dock.AssignmentDetail
	if err := c.do(ctx, http.MethodPost, "/api/assignments", input, http.StatusCreated, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// AssignmentUpdate is the payload for UpdateAssignment. Version must carry
// the version the caller last observed.
type AssignmentUpdate struct {
	Version  int64      `json:"version"`
	RampID   *int64     `json:"ramp_id,omitempty"`
	LoadID   *int64     `json:"load_id,omitempty"`
	StatusID *int64     `json:"status_id,omitempty"`
	EtaIn    *time.Time `json:"eta_in,omitempty"`
	EtaOut   *time.Time `json:"eta_out,omitempty"`
}

// UpdateAssignment applies a guarded partial update. A stale version is
// reported as *ConflictError carrying the winning row.
func (c *Client) UpdateAssignment(ctx context.Context, id int64, input AssignmentUpdate) (*dock.Assignment, error) {
	var updated dock.Assignment
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/assignments/%d", id), input, http.StatusOK, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteAssignment removes an assignment.
func (c *Client) DeleteAssignment(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/assignments/%d", id), nil, http.StatusNoContent, nil)
}

// ListRamps returns all ramps.
func (c *Client) ListRamps(ctx context.Context) ([]dock.Ramp, error) {
	var ramps []dock.Ramp
	if err := c.get(ctx, "/api/ramps", nil, &ramps); err != nil {
		return nil, err
	}
	return ramps, nil
}

// ListLoads returns loads, optionally filtered by direction.
func (c *Client) ListLoads(ctx context.Context, direction string) ([]dock.Load, error) {
	query := url.Values{}
	if direction != "" {
		query.Set("direction", direction)
	}
	var loads []dock.Load
	if err := c.get(ctx, "/api/loads", query, &loads); err != nil {
		return nil, err
	}
	return loads, nil
}

// ListStatuses returns all statuses.
func (c *Client) ListStatuses(ctx context.Context) ([]dock.Status, error) {
	var statuses []dock.Status
	if err := c.get(ctx, "/api/statuses", nil, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if err := c.authorize(request); err != nil {
		return err
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return readAPIError(response)
	}
	return json.NewDecoder(response.Body).Decode(out)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, wantStatus int, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(request); err != nil {
		return err
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusConflict {
		var conflict ConflictError
		if err := json.NewDecoder(response.Body).Decode(&conflict); err != nil {
			return &APIError{StatusCode: http.StatusConflict, Detail: "version conflict"}
		}
		return &conflict
	}
	if response.StatusCode != wantStatus {
		return readAPIError(response)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(out)
}

func (c *Client) authorize(request *http.Request) error {
	if c.token == "" {
		return errNotAuthenticated
	}
	request.Header.Set("Authorization", "Bearer "+c.token)
	return nil
}

func readAPIError(response *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(response.Body, 4096))

	var body struct {
		Error string `json:"error"`
	}
	detail := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		detail = body.Error
	}
	return &APIError{StatusCode: response.StatusCode, Detail: detail}
}
