// Package jira files and inspects issues through the JIRA REST API v2.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/philiph/saml-fedcheck/internal/adapters/driven/httpclient"
	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

var _ ports.IssueTracker = (*Client)(nil)

// maxErrorBody bounds how much of an error response ends up in an error.
const maxErrorBody = 512

// Config addresses a JIRA project.
type Config struct {
	BaseURL    string
	ProjectKey string
	IssueType  string
	// Username and Token authenticate with basic auth. Without Username
	// the token is sent as a bearer token.
	Username string
	Token    string
}

// Client is a JIRA issue tracker.
type Client struct {
	cfg    Config
	base   *url.URL
	http   *retryablehttp.Client
	logger *zap.Logger
}

// NewClient creates a client. hc and logger may be nil.
func NewClient(cfg Config, hc *retryablehttp.Client, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" || cfg.ProjectKey == "" {
		return nil, domain.ConfigError("jira base url and project key are required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, &domain.AppError{Code: domain.ErrCodeConfigMissing, Message: "invalid jira base url", Cause: err}
	}
	if cfg.IssueType == "" {
		cfg.IssueType = "Task"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if hc == nil {
		hc = httpclient.New(httpclient.Options{Logger: logger})
	}
	return &Client{cfg: cfg, base: base, http: hc, logger: logger}, nil
}

type idRef struct {
	ID string `json:"id,omitempty"`
}

type keyRef struct {
	Key string `json:"key"`
}

type nameRef struct {
	Name string `json:"name"`
}

type createRequest struct {
	Fields createFields `json:"fields"`
}

type createFields struct {
	Project     keyRef  `json:"project"`
	IssueType   nameRef `json:"issuetype"`
	Summary     string  `json:"summary"`
	Description string  `json:"description"`
	Priority    *idRef  `json:"priority,omitempty"`
}

type createResponse struct {
	Key string `json:"key"`
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Status idRef `json:"status"`
	} `json:"fields"`
}

type transitionsResponse struct {
	Transitions []struct {
		ID string `json:"id"`
		To idRef  `json:"to"`
	} `json:"transitions"`
}

type transitionRequest struct {
	Transition idRef `json:"transition"`
}

// CreateIssue files the issue and moves it to issue.StatusID when the
// project workflow created it in another status. A failed transition is
// logged; the key is returned since the issue exists.
func (c *Client) CreateIssue(ctx context.Context, issue ports.Issue) (string, error) {
	var req createRequest
	req.Fields.Project.Key = c.cfg.ProjectKey
	req.Fields.IssueType.Name = c.cfg.IssueType
	req.Fields.Summary = issue.Summary
	req.Fields.Description = issue.Description
	if issue.PriorityID != "" {
		req.Fields.Priority = &idRef{ID: issue.PriorityID}
	}

	var resp createResponse
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", req, &resp); err != nil {
		return "", err
	}
	if resp.Key == "" {
		return "", domain.ServiceError("jira create issue: response without key", nil)
	}

	if issue.StatusID != "" {
		if err := c.transitionTo(ctx, resp.Key, issue.StatusID); err != nil {
			c.logger.Warn("cannot move new issue to initial status",
				zap.String("issue_key", resp.Key),
				zap.String("status_id", issue.StatusID),
				zap.Error(err))
		}
	}
	return resp.Key, nil
}

// IssueStatusID returns the current status id of issueKey.
func (c *Client) IssueStatusID(ctx context.Context, issueKey string) (string, error) {
	var resp issueResponse
	path := "/rest/api/2/issue/" + url.PathEscape(issueKey) + "?fields=status"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	if resp.Fields.Status.ID == "" {
		return "", domain.ServiceError(fmt.Sprintf("jira issue %s: response without status", issueKey), nil)
	}
	return resp.Fields.Status.ID, nil
}

func (c *Client) transitionTo(ctx context.Context, issueKey, statusID string) error {
	current, err := c.IssueStatusID(ctx, issueKey)
	if err != nil {
		return err
	}
	if current == statusID {
		return nil
	}

	path := "/rest/api/2/issue/" + url.PathEscape(issueKey) + "/transitions"
	var transitions transitionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &transitions); err != nil {
		return err
	}
	for _, t := range transitions.Transitions {
		if t.To.ID == statusID {
			return c.do(ctx, http.MethodPost, path, transitionRequest{Transition: idRef{ID: t.ID}}, nil)
		}
	}
	return fmt.Errorf("no transition from status %s to %s", current, statusID)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", httpclient.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Token)
	} else if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ServiceError(fmt.Sprintf("jira %s %s", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.ServiceError(
			fmt.Sprintf("jira %s %s: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.ServiceError(fmt.Sprintf("jira %s %s: decode response", method, path), err)
	}
	return nil
}
