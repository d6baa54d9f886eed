// Package notion is the destination client: database creation, cursor
// queries, row inserts, and archive patches against the Notion API.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	httputil "github.com/clubboard/server/pkg/infrastructure/http"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"

	// notionVersion pins the API revision every request is made against.
	notionVersion = "2022-06-28"
)

// Client is a Notion API client authenticated with an integration token.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new Notion API client.
func NewClient(token string) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: defaultBaseURL,
	}
}

// CreateDatabase creates a database under the given parent page and returns
// its ID.
func (c *Client) CreateDatabase(ctx context.Context, parentPageID, title string, schema map[string]interface{}) (string, error) {
	payload := map[string]interface{}{
		"parent": map[string]interface{}{
			"type":    "page_id",
			"page_id": parentPageID,
		},
		"title": []interface{}{
			map[string]interface{}{"type": "text", "text": map[string]interface{}{"content": title}},
		},
		"properties": schema,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/databases", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return created.ID, nil
}

// QueryDatabase returns one page of rows from a database. Pass the
// NextCursor of the previous result to advance; an empty cursor starts from
// the beginning.
func (c *Client) QueryDatabase(ctx context.Context, databaseID, startCursor string, pageSize int) (*QueryResult, error) {
	payload := map[string]interface{}{
		"page_size": pageSize,
	}
	if startCursor != "" {
		payload["start_cursor"] = startCursor
	}

	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/databases/%s/query", databaseID), payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// CreatePage inserts one row into a database.
func (c *Client) CreatePage(ctx context.Context, databaseID string, properties map[string]interface{}) error {
	payload := map[string]interface{}{
		"parent":     map[string]interface{}{"database_id": databaseID},
		"properties": properties,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/pages", payload)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ArchivePage soft-deletes a row. The page remains recoverable in Notion's
// trash; it just stops appearing in the database.
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	payload := map[string]interface{}{"archived": true}

	resp, err := c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/pages/%s", pageID), payload)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// doRequest performs an authenticated JSON request and rejects non-2xx
// responses with a rich HTTP error.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", notionVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if err := httputil.ParseErrorResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp, nil
}
