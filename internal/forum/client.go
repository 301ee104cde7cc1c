package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const requestTimeout = 30 * time.Second

// Client talks to the forum platform API. It implements the subscriber
// resolution, content-state and content-lookup collaborators consumed by
// the fan-out and digest components.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		baseURL: baseURL,
		token:   token,
	}
}

func (c *Client) ForumSubscribers(ctx context.Context, forumID int64) ([]int64, error) {
	var result struct {
		UserIDs []int64 `json:"user_ids"`
	}

	path := fmt.Sprintf("/api/forums/%d/subscribers", forumID)
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}

	return result.UserIDs, nil
}

func (c *Client) TopicSubscribers(ctx context.Context, topicID int64) ([]int64, error) {
	var result struct {
		UserIDs []int64 `json:"user_ids"`
	}

	path := fmt.Sprintf("/api/topics/%d/subscribers", topicID)
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}

	return result.UserIDs, nil
}

func (c *Client) SubscriptionsActive(ctx context.Context) (bool, error) {
	var result struct {
		Active bool `json:"active"`
	}

	if err := c.getJSON(ctx, "/api/settings/subscriptions", &result); err != nil {
		return false, err
	}

	return result.Active, nil
}

func (c *Client) TopicPublished(ctx context.Context, topicID int64) (bool, error) {
	topic, err := c.topic(ctx, topicID)
	if err != nil {
		return false, err
	}

	return topic.Published, nil
}

func (c *Client) ReplyPublished(ctx context.Context, replyID int64) (bool, error) {
	var result struct {
		Published bool `json:"published"`
	}

	path := fmt.Sprintf("/api/replies/%d", replyID)
	if err := c.getJSON(ctx, path, &result); err != nil {
		return false, err
	}

	return result.Published, nil
}

func (c *Client) TopicTitle(ctx context.Context, topicID int64) (string, error) {
	topic, err := c.topic(ctx, topicID)
	if err != nil {
		return "", err
	}

	return topic.Title, nil
}

func (c *Client) TopicPermalink(ctx context.Context, topicID int64) (string, error) {
	topic, err := c.topic(ctx, topicID)
	if err != nil {
		return "", err
	}

	return topic.Permalink, nil
}

func (c *Client) ReplyPermalink(ctx context.Context, replyID int64) (string, error) {
	var result struct {
		Permalink string `json:"permalink"`
	}

	path := fmt.Sprintf("/api/replies/%d", replyID)
	if err := c.getJSON(ctx, path, &result); err != nil {
		return "", err
	}

	return result.Permalink, nil
}

func (c *Client) UserDisplayName(ctx context.Context, userID int64) (string, error) {
	user, err := c.user(ctx, userID)
	if err != nil {
		return "", err
	}

	return user.DisplayName, nil
}

func (c *Client) UserEmail(ctx context.Context, userID int64) (string, error) {
	user, err := c.user(ctx, userID)
	if err != nil {
		return "", err
	}

	return user.Email, nil
}

func (c *Client) SiteName(ctx context.Context) (string, error) {
	var result struct {
		Name string `json:"name"`
	}

	if err := c.getJSON(ctx, "/api/settings/site", &result); err != nil {
		return "", err
	}

	return result.Name, nil
}

type topicPayload struct {
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
	Published bool   `json:"published"`
}

type userPayload struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

func (c *Client) topic(ctx context.Context, topicID int64) (topicPayload, error) {
	var result topicPayload

	path := fmt.Sprintf("/api/topics/%d", topicID)
	if err := c.getJSON(ctx, path, &result); err != nil {
		return topicPayload{}, err
	}

	return result, nil
}

func (c *Client) user(ctx context.Context, userID int64) (userPayload, error) {
	var result userPayload

	path := fmt.Sprintf("/api/users/%d", userID)
	if err := c.getJSON(ctx, path, &result); err != nil {
		return userPayload{}, err
	}

	return result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(resp.Body)

		return fmt.Errorf("unexpected status %d from %s: %s",
			resp.StatusCode, path, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
