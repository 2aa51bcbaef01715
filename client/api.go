// Package client is the Go API surface a desktop shell embeds: a typed HTTP
// client for the backend plus the compose-form controller that owns the
// screenshot-analysis request lifecycle.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

type ProjectResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	WorkingDirectory string `json:"workingDirectory,omitempty"`
	ScreenCount      int64  `json:"screenCount"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

type ScreenResponse struct {
	ID             string `json:"id"`
	ProjectID      string `json:"projectId"`
	Name           string `json:"name"`
	Notes          string `json:"notes"`
	PreviewURL     string `json:"previewUrl,omitempty"`
	Analysis       string `json:"analysis,omitempty"`
	AnalysisStatus string `json:"analysisStatus"`
	AnalysisError  string `json:"analysisError,omitempty"`
	ProjectName    string `json:"projectName,omitempty"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

type ScreenDescriptionResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Model       string `json:"model"`
	CreatedAt   string `json:"createdAt"`
}

type CreateScreenRequest struct {
	ProjectID      string  `json:"projectId"`
	Name           string  `json:"name"`
	Notes          string  `json:"notes,omitempty"`
	PreviewURL     *string `json:"previewUrl,omitempty"`
	Analysis       *string `json:"analysis,omitempty"`
	AnalysisStatus string  `json:"analysisStatus,omitempty"`
	AnalysisError  *string `json:"analysisError,omitempty"`
}

type UpdateScreenRequest struct {
	ProjectID      *string `json:"projectId,omitempty"`
	Name           *string `json:"name,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	PreviewURL     *string `json:"previewUrl,omitempty"`
	Analysis       *string `json:"analysis,omitempty"`
	AnalysisStatus *string `json:"analysisStatus,omitempty"`
	AnalysisError  *string `json:"analysisError,omitempty"`
}

type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusNotFound
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

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) ListProjects(ctx context.Context) ([]ProjectResponse, error) {
	var out struct {
		Projects []ProjectResponse `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

func (c *Client) CreateProject(ctx context.Context, name, description, workingDirectory string) (*ProjectResponse, error) {
	body := map[string]string{"name": name, "description": description}
	if workingDirectory != "" {
		body["workingDirectory"] = workingDirectory
	}
	var out ProjectResponse
	if err := c.do(ctx, http.MethodPost, "/api/projects", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListScreens(ctx context.Context, projectID string) ([]ScreenResponse, error) {
	path := "/api/screens"
	if projectID != "" {
		path += "?projectId=" + url.QueryEscape(projectID)
	}
	var out struct {
		Screens []ScreenResponse `json:"screens"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Screens, nil
}

func (c *Client) CreateScreen(ctx context.Context, req CreateScreenRequest) (*ScreenResponse, error) {
	var out ScreenResponse
	if err := c.do(ctx, http.MethodPost, "/api/screens", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateScreen(ctx context.Context, id string, req UpdateScreenRequest) (*ScreenResponse, error) {
	var out ScreenResponse
	if err := c.do(ctx, http.MethodPatch, "/api/screens/"+url.PathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteScreen(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/screens/"+url.PathEscape(id), nil, nil)
}

func (c *Client) DescribeScreenshot(ctx context.Context, imageBase64, imageMimeType string) (*ScreenDescriptionResponse, error) {
	body := map[string]string{
		"imageBase64":   imageBase64,
		"imageMimeType": imageMimeType,
	}
	var out ScreenDescriptionResponse
	if err := c.do(ctx, http.MethodPost, "/api/screens/describe", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
