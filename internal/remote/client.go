// Package remote implements the client for the Asana-compatible task API.
//
// All list endpoints paginate via an opaque offset token; the client follows
// pagination to exhaustion before returning. Calls are issued one at a time
// by design: the sync engine's volumes are personal-scale and sequential
// requests keep ordering trivial to reason about.
package remote

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
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://app.asana.com/api/1.0"

const defaultTimeout = 30 * time.Second

// pageLimit is the page size requested from list endpoints.
const pageLimit = 100

// taskOptFields selects every task field the sync engine consumes.
const taskOptFields = "name,completed,due_on,notes,permalink_url," +
	"assignee.gid,assignee.name," +
	"memberships.project.gid,memberships.project.name," +
	"memberships.section.gid,memberships.section.name"

// ErrStatus marks any non-2xx API response.
var ErrStatus = errors.New("remote API error")

// Client talks to one API host with one access token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option mutates a Client during construction.
type Option func(*Client)

// WithBaseURL points the client at a different API root. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client authenticating with a personal access token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Me fetches the authenticated user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var user User

	err := c.get(ctx, "/users/me", nil, &user)
	if err != nil {
		return User{}, err
	}

	return user, nil
}

// VerifyCredentials reports whether the access token is usable. Failures
// surface as false, never as an error.
func (c *Client) VerifyCredentials(ctx context.Context) bool {
	_, err := c.Me(ctx)

	return err == nil
}

// Workspaces lists the workspaces visible to the token.
func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	var all []Workspace

	err := c.getPaged(ctx, "/workspaces", nil, func(data json.RawMessage) error {
		return appendPage(data, &all)
	})
	if err != nil {
		return nil, err
	}

	return all, nil
}

// Projects lists a workspace's projects, filtered on the archived flag.
func (c *Client) Projects(ctx context.Context, workspaceGID string, archived bool) ([]Project, error) {
	query := url.Values{}
	query.Set("archived", fmt.Sprintf("%t", archived))

	var all []Project

	err := c.getPaged(ctx, "/workspaces/"+workspaceGID+"/projects", query, func(data json.RawMessage) error {
		return appendPage(data, &all)
	})
	if err != nil {
		return nil, err
	}

	return all, nil
}

// Sections lists the sections of a project.
func (c *Client) Sections(ctx context.Context, projectGID string) ([]NamedRef, error) {
	var all []NamedRef

	err := c.getPaged(ctx, "/projects/"+projectGID+"/sections", nil, func(data json.RawMessage) error {
		return appendPage(data, &all)
	})
	if err != nil {
		return nil, err
	}

	return all, nil
}

// UserTaskListGID fetches the gid of a user's personal task list in a
// workspace.
func (c *Client) UserTaskListGID(ctx context.Context, userGID, workspaceGID string) (string, error) {
	query := url.Values{}
	query.Set("workspace", workspaceGID)

	var ref NamedRef

	err := c.get(ctx, "/users/"+userGID+"/user_task_list", query, &ref)
	if err != nil {
		return "", err
	}

	return ref.GID, nil
}

// ProjectTasks fetches every task of a project, following pagination.
func (c *Client) ProjectTasks(ctx context.Context, projectGID string) ([]Task, error) {
	return c.tasks(ctx, "/projects/"+projectGID+"/tasks")
}

// UserTaskListTasks fetches every task of a personal task list.
func (c *Client) UserTaskListTasks(ctx context.Context, listGID string) ([]Task, error) {
	return c.tasks(ctx, "/user_task_lists/"+listGID+"/tasks")
}

func (c *Client) tasks(ctx context.Context, path string) ([]Task, error) {
	query := url.Values{}
	query.Set("opt_fields", taskOptFields)

	var all []Task

	err := c.getPaged(ctx, path, query, func(data json.RawMessage) error {
		return appendPage(data, &all)
	})
	if err != nil {
		return nil, err
	}

	return all, nil
}

// SetCompleted updates a task's completion flag.
func (c *Client) SetCompleted(ctx context.Context, taskGID string, completed bool) error {
	body := dataEnvelope{Data: map[string]any{"completed": completed}}

	return c.do(ctx, http.MethodPut, "/tasks/"+taskGID, nil, &body, nil)
}

// NewTask describes a task to create under a project.
type NewTask struct {
	Name        string
	ProjectGID  string
	SectionGID  string // optional
	DueOn       string // optional, YYYY-MM-DD
	AssigneeGID string // optional
	Notes       string // optional
}

// CreateTask creates a task and, when a section is given, moves it there.
func (c *Client) CreateTask(ctx context.Context, nt NewTask) (Task, error) {
	fields := map[string]any{
		"name":     nt.Name,
		"projects": []string{nt.ProjectGID},
	}

	if nt.DueOn != "" {
		fields["due_on"] = nt.DueOn
	}

	if nt.AssigneeGID != "" {
		fields["assignee"] = nt.AssigneeGID
	}

	if nt.Notes != "" {
		fields["notes"] = nt.Notes
	}

	body := dataEnvelope{Data: fields}

	var created Task

	err := c.do(ctx, http.MethodPost, "/tasks", nil, &body, &created)
	if err != nil {
		return Task{}, err
	}

	if nt.SectionGID != "" {
		addBody := dataEnvelope{Data: map[string]any{"task": created.GID}}

		err = c.do(ctx, http.MethodPost, "/sections/"+nt.SectionGID+"/addTask", nil, &addBody, nil)
		if err != nil {
			return Task{}, fmt.Errorf("placing task %s in section: %w", created.GID, err)
		}
	}

	return created, nil
}

// dataEnvelope is the request/response wrapper the API uses everywhere.
type dataEnvelope struct {
	Data any `json:"data"`
}

type pageResponse struct {
	Data     json.RawMessage `json:"data"`
	NextPage *struct {
		Offset string `json:"offset"`
	} `json:"next_page"`
}

type errorResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// get fetches a single-object endpoint into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// getPaged fetches a list endpoint, invoking page for every data page until
// the API stops returning a continuation offset.
func (c *Client) getPaged(
	ctx context.Context, path string, query url.Values, page func(data json.RawMessage) error,
) error {
	if query == nil {
		query = url.Values{}
	}

	query.Set("limit", fmt.Sprintf("%d", pageLimit))

	for {
		var resp pageResponse

		err := c.doRaw(ctx, http.MethodGet, path, query, nil, &resp)
		if err != nil {
			return err
		}

		pageErr := page(resp.Data)
		if pageErr != nil {
			return pageErr
		}

		if resp.NextPage == nil || resp.NextPage.Offset == "" {
			return nil
		}

		query.Set("offset", resp.NextPage.Offset)
	}
}

// do issues one request. A non-nil out is decoded from the response's data
// envelope.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body *dataEnvelope, out any) error {
	var resp struct {
		Data json.RawMessage `json:"data"`
	}

	err := c.doRaw(ctx, method, path, query, body, &resp)
	if err != nil {
		return err
	}

	if out == nil || len(resp.Data) == 0 {
		return nil
	}

	decodeErr := json.Unmarshal(resp.Data, out)
	if decodeErr != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, decodeErr)
	}

	return nil
}

func (c *Client) doRaw(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s request: %w", method, path, err)
		}

		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("building %s %s request: %w", method, path, err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return apiError(method, path, resp)
	}

	if out == nil {
		return nil
	}

	decodeErr := json.NewDecoder(resp.Body).Decode(out)
	if decodeErr != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, decodeErr)
	}

	return nil
}

// apiError shapes a non-2xx response into a wrapped [ErrStatus], carrying the
// first server-provided message when one exists.
func apiError(method, path string, resp *http.Response) error {
	var parsed errorResponse

	_ = json.NewDecoder(resp.Body).Decode(&parsed)

	if len(parsed.Errors) > 0 && parsed.Errors[0].Message != "" {
		return fmt.Errorf("%w: %s %s: %s (%s)", ErrStatus, method, path, resp.Status, parsed.Errors[0].Message)
	}

	return fmt.Errorf("%w: %s %s: %s", ErrStatus, method, path, resp.Status)
}

// appendPage decodes one data page into the accumulator slice.
func appendPage[T any](data json.RawMessage, all *[]T) error {
	var chunk []T

	err := json.Unmarshal(data, &chunk)
	if err != nil {
		return fmt.Errorf("decoding page: %w", err)
	}

	*all = append(*all, chunk...)

	return nil
}
