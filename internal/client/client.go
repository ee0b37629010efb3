// Package client is the HTTP client of the labsim API. It satisfies the
// session's profile dependency so a headless player can run against a
// remote server.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/service/laboratory"
	"github.com/heartmarshall/labsim/internal/service/profile"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultRetries   = 2
	defaultRetryWait = 500 * time.Millisecond
)

// Client calls the REST API on behalf of one signed-in player. The uid
// arguments of the profile methods are accepted for interface parity; the
// server derives the player from the bearer token.
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

// Option configures a Client.
type Option func(*resty.Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithRetries sets how many times transport failures are retried.
func WithRetries(n int) Option {
	return func(c *resty.Client) { c.SetRetryCount(n) }
}

// New creates a Client for baseURL authenticated with token.
func New(baseURL, token string, log *slog.Logger, opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetRetryCount(defaultRetries).
		SetRetryWaitTime(defaultRetryWait).
		SetRetryMaxWaitTime(4*defaultRetryWait).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc, log: log.With("component", "client")}
}

// apiError mirrors the server's error body.
type apiError struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

// do sends the request and converts non-2xx responses back into domain
// errors so callers can use errors.Is as they would in-process.
func (c *Client) do(ctx context.Context, method, path string, body, result any) (*resty.Response, error) {
	var apiErr apiError
	req := c.http.R().SetContext(ctx).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		c.log.DebugContext(ctx, "api error",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode()),
			slog.String("code", apiErr.Code),
		)
		return resp, toDomainError(resp.StatusCode(), apiErr)
	}
	return resp, nil
}

func toDomainError(status int, e apiError) error {
	var kind error
	switch status {
	case http.StatusBadRequest:
		kind = domain.ErrValidation
	case http.StatusUnauthorized:
		kind = domain.ErrUnauthorized
	case http.StatusForbidden:
		kind = domain.ErrForbidden
	case http.StatusNotFound:
		kind = domain.ErrNotFound
	case http.StatusConflict:
		kind = domain.ErrConflict
		if e.Code == "ALREADY_EXISTS" {
			kind = domain.ErrAlreadyExists
		}
	default:
		msg := e.Error
		if msg == "" {
			msg = http.StatusText(status)
		}
		return fmt.Errorf("server error %d: %s", status, msg)
	}
	if len(e.Fields) > 0 {
		return domain.NewValidationErrors(e.Fields)
	}
	if e.Error == "" {
		return kind
	}
	return &domain.DomainError{Msg: e.Error, Kind: kind}
}

// ---------------------------------------------------------------------------
// Profile
// ---------------------------------------------------------------------------

// CreateOrUpdateProfile signs the token holder in. id is ignored beyond
// logging: the server reads the identity from the token.
func (c *Client) CreateOrUpdateProfile(ctx context.Context, id auth.Identity) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/profile", nil, &p); err != nil {
		return nil, fmt.Errorf("client.CreateOrUpdateProfile: %w", err)
	}
	c.log.InfoContext(ctx, "signed in", slog.String("uid", p.ID), slog.String("requested_uid", id.UID))
	return &p, nil
}

func (c *Client) GetProfile(ctx context.Context, _ string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/profile", nil, &p); err != nil {
		return nil, fmt.Errorf("client.GetProfile: %w", err)
	}
	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, _ string, input profile.UpdateProfileInput) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if _, err := c.do(ctx, http.MethodPatch, "/api/v1/profile", input, &p); err != nil {
		return nil, fmt.Errorf("client.UpdateProfile: %w", err)
	}
	return &p, nil
}

func (c *Client) SetCurrentLaboratory(ctx context.Context, _ string, labID string) error {
	body := map[string]string{"laboratoryId": labID}
	if _, err := c.do(ctx, http.MethodPut, "/api/v1/profile/current-laboratory", body, nil); err != nil {
		return fmt.Errorf("client.SetCurrentLaboratory: %w", err)
	}
	return nil
}

func (c *Client) UpdateStatistics(ctx context.Context, _ string, partial profile.StatisticsUpdate) (*domain.Statistics, error) {
	var s domain.Statistics
	if _, err := c.do(ctx, http.MethodPatch, "/api/v1/profile/statistics", partial, &s); err != nil {
		return nil, fmt.Errorf("client.UpdateStatistics: %w", err)
	}
	return &s, nil
}

func (c *Client) AddExperience(ctx context.Context, _ string, amount int) (*profile.ExperienceResult, error) {
	var res profile.ExperienceResult
	body := map[string]int{"amount": amount}
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/profile/experience", body, &res); err != nil {
		return nil, fmt.Errorf("client.AddExperience: %w", err)
	}
	return &res, nil
}

func (c *Client) SaveSnapshot(ctx context.Context, _ string, snap domain.SaveGame) error {
	if _, err := c.do(ctx, http.MethodPut, "/api/v1/profile/save", snap, nil); err != nil {
		return fmt.Errorf("client.SaveSnapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns nil when the player has never saved.
func (c *Client) LoadSnapshot(ctx context.Context, _ string) (*domain.SaveGame, error) {
	var snap domain.SaveGame
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/profile/save", nil, &snap)
	if err != nil {
		return nil, fmt.Errorf("client.LoadSnapshot: %w", err)
	}
	if resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}
	return &snap, nil
}

func (c *Client) Leaderboard(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	var out []domain.UserProfile
	req := fmt.Sprintf("/api/v1/leaderboard?limit=%d", limit)
	if limit <= 0 {
		req = "/api/v1/leaderboard"
	}
	if _, err := c.do(ctx, http.MethodGet, req, nil, &out); err != nil {
		return nil, fmt.Errorf("client.Leaderboard: %w", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Laboratories
// ---------------------------------------------------------------------------

func (c *Client) CreateLaboratory(ctx context.Context, input laboratory.CreateInput) (*domain.Laboratory, error) {
	var lab domain.Laboratory
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/laboratories", input, &lab); err != nil {
		return nil, fmt.Errorf("client.CreateLaboratory: %w", err)
	}
	return &lab, nil
}

func (c *Client) GetLaboratory(ctx context.Context, labID string) (*domain.Laboratory, error) {
	var lab domain.Laboratory
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/laboratories/"+labID, nil, &lab); err != nil {
		return nil, fmt.Errorf("client.GetLaboratory: %w", err)
	}
	return &lab, nil
}

func (c *Client) ListLaboratories(ctx context.Context) ([]domain.Laboratory, error) {
	var labs []domain.Laboratory
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/laboratories", nil, &labs); err != nil {
		return nil, fmt.Errorf("client.ListLaboratories: %w", err)
	}
	return labs, nil
}

func (c *Client) JoinLaboratory(ctx context.Context, inviteCode string) (*domain.Laboratory, error) {
	var lab domain.Laboratory
	body := map[string]string{"inviteCode": inviteCode}
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/laboratories/join", body, &lab); err != nil {
		return nil, fmt.Errorf("client.JoinLaboratory: %w", err)
	}
	return &lab, nil
}

func (c *Client) LeaveLaboratory(ctx context.Context, labID string) error {
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/laboratories/"+labID+"/leave", nil, nil); err != nil {
		return fmt.Errorf("client.LeaveLaboratory: %w", err)
	}
	return nil
}

// IsRetryable reports whether err came from the transport or a 5xx rather
// than from a rejected request.
func IsRetryable(err error) bool {
	for _, kind := range []error{
		domain.ErrValidation, domain.ErrUnauthorized, domain.ErrForbidden,
		domain.ErrNotFound, domain.ErrConflict, domain.ErrAlreadyExists,
	} {
		if errors.Is(err, kind) {
			return false
		}
	}
	return err != nil
}
