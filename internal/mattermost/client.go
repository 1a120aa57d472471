package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	// requestTimeout bounds every API call except file uploads.
	requestTimeout = 10 * time.Second

	// uploadTimeout is the larger budget for the batched image upload.
	uploadTimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response is kept for
	// diagnostics.
	maxErrorBody = 4 << 10
)

// APIError is a non-success response from the Mattermost API. The body is
// retained so operators can diagnose delivery failures.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mattermost: API returned %d: %s", e.StatusCode, e.Body)
}

// User is a platform user as returned by the bulk username lookup.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// File is one attachment to upload.
type File struct {
	Name string
	Data []byte
}

// Attachment is the message attachment carried in the post props.
type Attachment struct {
	Fallback string `json:"fallback"`
	Color    string `json:"color"`
	Text     string `json:"text"`
}

// Client talks to one Mattermost instance through its v4 REST API. All
// calls carry the bearer credential and an explicit timeout.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the given server. The v4 API prefix is
// appended to the server URL.
func NewClient(serverURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(serverURL, "/") + "/api/v4",
		token:      token,
		httpClient: &http.Client{},
	}
}

// UsersByUsernames resolves usernames to platform users in one call.
// Unknown usernames are silently omitted by the platform.
func (c *Client) UsersByUsernames(ctx context.Context, usernames []string) ([]User, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.postJSON(ctx, "/users/usernames", usernames)
	if err != nil {
		return nil, fmt.Errorf("mattermost: lookup usernames: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var users []User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("mattermost: decode users: %w", err)
	}
	return users, nil
}

// AddChannelMember adds one user to a channel. The platform answers 201 on
// creation; anything else (permissions, already a member) is an error the
// caller may choose to tolerate.
func (c *Client) AddChannelMember(ctx context.Context, channelID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.postJSON(ctx, "/channels/"+channelID+"/members", map[string]string{"user_id": userID})
	if err != nil {
		return fmt.Errorf("mattermost: add channel member: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return apiError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// UploadFiles uploads all files in one multipart request and returns the
// platform-assigned file ids. With no files it returns immediately without
// touching the network. A response carrying fewer ids than files submitted
// is logged and tolerated; the ids that did come back are still returned.
func (c *Client) UploadFiles(ctx context.Context, channelID string, files []File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("channel_id", channelID); err != nil {
		return nil, fmt.Errorf("mattermost: build upload form: %w", err)
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("mattermost: build upload form: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("mattermost: build upload form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("mattermost: build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return nil, fmt.Errorf("mattermost: create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mattermost: upload files: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, apiError(resp)
	}

	var result struct {
		FileInfos []struct {
			ID string `json:"id"`
		} `json:"file_infos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("mattermost: decode upload response: %w", err)
	}

	ids := make([]string, 0, len(result.FileInfos))
	for _, fi := range result.FileInfos {
		ids = append(ids, fi.ID)
	}
	if len(ids) != len(files) {
		slog.Warn("some files failed to upload",
			"submitted", len(files),
			"returned", len(ids),
			"channel_id", channelID,
		)
	}
	return ids, nil
}

// CreatePost posts the status message: empty top-level text, the uploaded
// file ids, and a single attachment with the rendered body.
func (c *Client) CreatePost(ctx context.Context, channelID string, fileIDs []string, attachment Attachment) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	payload := map[string]any{
		"channel_id": channelID,
		"message":    "",
		"file_ids":   fileIDs,
		"props": map[string]any{
			"attachments": []Attachment{attachment},
		},
	}

	resp, err := c.postJSON(ctx, "/posts", payload)
	if err != nil {
		return fmt.Errorf("mattermost: create post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.httpClient.Do(req)
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
