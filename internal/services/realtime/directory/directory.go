// Package directory reads project, task, and user records from the
// collaboration resource service. The real-time core never owns this data;
// it only resolves recipients and display fields at event time.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/louisbranch/crewdeck/internal/platform/timeouts"
)

// ErrNotFound reports that the requested record does not exist.
var ErrNotFound = errors.New("directory: not found")

// Task is a work item inside one project.
type Task struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	AssigneeIDs []string `json:"assignee_ids"`
}

// Project is the collaboration unit users subscribe to.
type Project struct {
	ID            string   `json:"id"`
	OwnerID       string   `json:"owner_id"`
	Name          string   `json:"name"`
	TeamMemberIDs []string `json:"team_member_ids"`
}

// User is the slice of an account the real-time core needs: identity,
// display name for rendered notifications, and preferred locale.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Locale      string `json:"locale"`
}

// Reader resolves directory records by id.
type Reader interface {
	GetTask(ctx context.Context, taskID string) (Task, error)
	GetProject(ctx context.Context, projectID string) (Project, error)
	GetUser(ctx context.Context, userID string) (User, error)
	ListProjectIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// HTTPGateway reads directory records over the resource service's internal
// HTTP API, authenticated with the shared resource secret.
type HTTPGateway struct {
	baseURL        string
	resourceSecret string
	httpClient     *http.Client
}

// NewHTTPGateway builds a gateway against baseURL. It returns nil when the
// base URL or secret is blank so callers can treat the directory as absent.
func NewHTTPGateway(baseURL, resourceSecret string) *HTTPGateway {
	baseURL = strings.TrimSpace(baseURL)
	resourceSecret = strings.TrimSpace(resourceSecret)
	if baseURL == "" || resourceSecret == "" {
		return nil
	}
	return &HTTPGateway{
		baseURL:        strings.TrimRight(baseURL, "/"),
		resourceSecret: resourceSecret,
		httpClient:     &http.Client{Timeout: timeouts.DirectoryRequest},
	}
}

// GetTask resolves one task by id.
func (g *HTTPGateway) GetTask(ctx context.Context, taskID string) (Task, error) {
	var task Task
	if err := g.getJSON(ctx, "/internal/tasks/"+url.PathEscape(strings.TrimSpace(taskID)), &task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// GetProject resolves one project by id.
func (g *HTTPGateway) GetProject(ctx context.Context, projectID string) (Project, error) {
	var project Project
	if err := g.getJSON(ctx, "/internal/projects/"+url.PathEscape(strings.TrimSpace(projectID)), &project); err != nil {
		return Project{}, err
	}
	return project, nil
}

// GetUser resolves one user by id.
func (g *HTTPGateway) GetUser(ctx context.Context, userID string) (User, error) {
	var user User
	if err := g.getJSON(ctx, "/internal/users/"+url.PathEscape(strings.TrimSpace(userID)), &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ListProjectIDsForUser returns the ids of every project the user owns or
// belongs to. The handshake uses this to seed subscriptions.
func (g *HTTPGateway) ListProjectIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var payload struct {
		ProjectIDs []string `json:"project_ids"`
	}
	path := "/internal/users/" + url.PathEscape(strings.TrimSpace(userID)) + "/projects"
	if err := g.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	return payload.ProjectIDs, nil
}

func (g *HTTPGateway) getJSON(ctx context.Context, path string, target any) error {
	if g == nil || g.httpClient == nil {
		return errors.New("directory is not configured")
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeouts.DirectoryRequest)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build directory request: %w", err)
	}
	req.Header.Set("X-Resource-Secret", g.resourceSecret)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call directory: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("directory status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode directory response: %w", err)
	}
	return nil
}
