package bitrix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"b24-sync/internal/config"

	"go.uber.org/zap"
)

// Client talks to the Bitrix24 REST API. All calls are synchronous POSTs of
// form-encoded parameters to https://{domain}/rest/{method}.json with the
// bearer token appended as the auth parameter.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	log     *zap.Logger
}

func NewClient(cfg *config.Config, tokens TokenSource, log *zap.Logger) *Client {
	return &Client{
		baseURL: fmt.Sprintf("https://%s/rest", cfg.B24Domain),
		tokens:  tokens,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.Named("bitrix"),
	}
}

type apiResponse struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Next             *int            `json:"next"`
}

func (c *Client) call(ctx context.Context, method string, params url.Values) (*apiResponse, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}
	params.Set("auth", token)

	endpoint := fmt.Sprintf("%s/%s.json", c.baseURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("API request failed", zap.String("method", method), zap.Error(err))
		return nil, &APIError{Method: method, Status: 0, Description: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Method: method, Status: 0, Description: err.Error()}
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &APIError{Method: method, Status: resp.StatusCode, Description: "unparseable response body"}
	}

	if parsed.Error != "" || resp.StatusCode >= 400 {
		apiErr := &APIError{
			Method:      method,
			Status:      resp.StatusCode,
			Code:        parsed.Error,
			Description: parsed.ErrorDescription,
		}
		c.log.Error("API error",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
			zap.String("code", parsed.Error),
			zap.Duration("elapsed", time.Since(start)))
		return nil, apiErr
	}

	c.log.Debug("API response",
		zap.String("method", method),
		zap.Duration("elapsed", time.Since(start)))
	return &parsed, nil
}

// GetItem fetches one SPA item by ID.
func (c *Client) GetItem(ctx context.Context, entityTypeID int, id string) (Item, error) {
	params := url.Values{}
	params.Set("entityTypeId", strconv.Itoa(entityTypeID))
	params.Set("id", id)

	resp, err := c.call(ctx, "crm.item.get", params)
	if err != nil {
		return nil, err
	}

	var result struct {
		Item Item `json:"item"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("decode crm.item.get result: %w", err)
	}
	return result.Item, nil
}

// ListItems fetches all SPA items matching the filter, following the paging
// cursor until exhausted.
func (c *Client) ListItems(ctx context.Context, entityTypeID int, filter map[string]string, selectFields []string) ([]Item, error) {
	var all []Item
	start := 0

	for {
		params := url.Values{}
		params.Set("entityTypeId", strconv.Itoa(entityTypeID))
		params.Set("start", strconv.Itoa(start))
		for key, value := range filter {
			params.Set(fmt.Sprintf("filter[%s]", key), value)
		}
		for i, field := range selectFields {
			params.Set(fmt.Sprintf("select[%d]", i), field)
		}

		resp, err := c.call(ctx, "crm.item.list", params)
		if err != nil {
			return nil, err
		}

		var result struct {
			Items []Item `json:"items"`
		}
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return nil, fmt.Errorf("decode crm.item.list result: %w", err)
		}
		all = append(all, result.Items...)

		if resp.Next == nil {
			break
		}
		start = *resp.Next
	}

	return all, nil
}

// UpdateItem writes the given fields to one SPA item in a single call, so
// paired link/date fields are never observed half-updated. List values get
// the fields[key][i] encoding; an empty list must be sent as an explicit
// empty string or Bitrix leaves the field untouched.
func (c *Client) UpdateItem(ctx context.Context, entityTypeID int, id string, fields map[string]interface{}) error {
	params := url.Values{}
	params.Set("entityTypeId", strconv.Itoa(entityTypeID))
	params.Set("id", id)

	for key, value := range fields {
		switch v := value.(type) {
		case []string:
			if len(v) == 0 {
				params.Set(fmt.Sprintf("fields[%s]", key), "")
				continue
			}
			for i, item := range v {
				params.Set(fmt.Sprintf("fields[%s][%d]", key, i), item)
			}
		default:
			params.Set(fmt.Sprintf("fields[%s]", key), fmt.Sprintf("%v", v))
		}
	}

	_, err := c.call(ctx, "crm.item.update", params)
	return err
}

// GetContact fetches one contact. Contact fields use the classic REST shape
// (upper-case keys), which the Item accessors handle the same way.
func (c *Client) GetContact(ctx context.Context, id string) (Item, error) {
	params := url.Values{}
	params.Set("id", id)

	resp, err := c.call(ctx, "crm.contact.get", params)
	if err != nil {
		return nil, err
	}

	var contact Item
	if err := json.Unmarshal(resp.Result, &contact); err != nil {
		return nil, fmt.Errorf("decode crm.contact.get result: %w", err)
	}
	return contact, nil
}

// AddTimelineComment posts a human-readable audit note to an item's activity
// trail. Callers treat failures as non-fatal.
func (c *Client) AddTimelineComment(ctx context.Context, entityTypeID int, itemID, comment string) error {
	params := url.Values{}
	params.Set("fields[ENTITY_ID]", itemID)
	params.Set("fields[ENTITY_TYPE]", fmt.Sprintf("DYNAMIC_%d", entityTypeID))
	params.Set("fields[COMMENT]", comment)

	_, err := c.call(ctx, "crm.timeline.comment.add", params)
	return err
}
