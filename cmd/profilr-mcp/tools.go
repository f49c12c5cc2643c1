package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/profilr/models"
	"github.com/use-agent/profilr/store"
)

// apiClient calls the profilr HTTP API.
type apiClient struct {
	baseURL string
	key     string
	client  *http.Client
}

func newAPIClient(baseURL, key string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		key:     key,
		client:  &http.Client{Timeout: timeout},
	}
}

// do sends a request and decodes the API's response envelope. Non-2xx
// statuses still carry an envelope with the error.
func (a *apiClient) do(ctx context.Context, method, path string, payload any) (*models.ProfileResponse, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", a.key)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var out models.ProfileResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	return &out, nil
}

func handleScrapeProfile(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		profileURL, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := models.ProfileRequest{
			URL:    profileURL,
			Save:   request.GetBool("save", false),
			MaxAge: request.GetInt("max_age", 0),
		}
		resp, err := api.do(ctx, http.MethodPost, "/api/v1/profile", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toolResult(resp, "scrape failed"), nil
	}
}

func handleGetSavedProfile(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		handle, err := request.RequireString("handle")
		if err != nil {
			return mcp.NewToolResultError("handle is required"), nil
		}
		if strings.Contains(handle, "/in/") {
			handle = store.HandleFromURL(handle)
		}

		resp, err := api.do(ctx, http.MethodGet, "/api/v1/profile/"+url.PathEscape(handle), nil)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toolResult(resp, "lookup failed"), nil
	}
}

// toolResult renders a summary header followed by the record as JSON.
func toolResult(resp *models.ProfileResponse, failure string) *mcp.CallToolResult {
	if !resp.Success || resp.Data == nil {
		msg := failure
		if resp.Error != nil {
			msg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
			if resp.Error.Snapshot != "" {
				msg += " (snapshot: " + resp.Error.Snapshot + ")"
			}
		}
		return mcp.NewToolResultError(msg)
	}

	rec := resp.Data
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\n", rec.DisplayName("(unknown)"))
	fmt.Fprintf(&sb, "Source: %s", resp.Source)
	if resp.CacheStatus != "" {
		fmt.Fprintf(&sb, " (cache %s)", resp.CacheStatus)
	}
	sb.WriteString("\n")
	if resp.SavedTo != "" {
		fmt.Fprintf(&sb, "Saved to: %s\n", resp.SavedTo)
	}
	fmt.Fprintf(&sb, "Experiences: %d, Education: %d, Skills: %d\n\n",
		len(rec.Experiences), len(rec.Education), len(rec.Skills))

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to render record: %v", err))
	}
	sb.Write(data)
	return mcp.NewToolResultText(sb.String())
}
