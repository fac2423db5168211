// Package azure implements searchsvc.Service over the Azure Cognitive Search REST API.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/buger/jsonparser"

	"github.com/kailas-cloud/idxmigrate/internal/config"
	"github.com/kailas-cloud/idxmigrate/internal/domain"
	"github.com/kailas-cloud/idxmigrate/internal/metrics"
	"github.com/kailas-cloud/idxmigrate/internal/searchsvc"
	"github.com/kailas-cloud/idxmigrate/internal/version"
)

const maxErrorBody = 4 << 10

// Client talks to one search service. Safe for concurrent use.
type Client struct {
	label      string // metrics label: "source" / "target"
	baseURL    string
	apiKey     string
	apiVersion string
	http       *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the service described by cfg.
func New(label string, cfg config.ServiceConfig, opts ...Option) *Client {
	c := &Client{
		label:      label,
		baseURL:    cfg.BaseURL(),
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		http:       &http.Client{Timeout: cfg.Timeout()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ searchsvc.Service = (*Client)(nil)

// do executes one request and returns the response status and body.
// Statuses >= 400 become *searchsvc.Error.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body []byte) (int, []byte, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", c.apiVersion)
	u := c.baseURL + path + "?" + query.Encode()

	var reqBody io.Reader = http.NoBody
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return 0, nil, &searchsvc.Error{Op: op, Err: err}
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.SearchRequestDuration.WithLabelValues(c.label, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(c.label, op, "transport_error").Inc()
		return 0, nil, &searchsvc.Error{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.SearchRequestsTotal.WithLabelValues(c.label, op, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &searchsvc.Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		e := &searchsvc.Error{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
		if resp.StatusCode == http.StatusNotFound {
			e.Err = searchsvc.ErrNotFound
		}
		return resp.StatusCode, data, e
	}
	return resp.StatusCode, data, nil
}

// errorMessage extracts error.message from an OData error body, falling back to the raw text.
func errorMessage(body []byte) string {
	if msg, err := jsonparser.GetString(body, "error", "message"); err == nil {
		return msg
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(bytes.TrimSpace(body))
}

func indexPath(name string) string {
	return "/indexes/" + url.PathEscape(name)
}

func synonymPath(name string) string {
	return "/synonymmaps/" + url.PathEscape(name)
}

// ListIndexNames returns the names of all indexes on the service.
func (c *Client) ListIndexNames(ctx context.Context) ([]string, error) {
	q := url.Values{}
	q.Set("$select", "name")
	_, body, err := c.do(ctx, searchsvc.OpListIndexes, http.MethodGet, "/indexes", q, nil)
	if err != nil {
		return nil, err
	}

	names := []string{}
	_, err = jsonparser.ArrayEach(body, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		if name, err := jsonparser.GetString(value, "name"); err == nil {
			names = append(names, name)
		}
	}, "value")
	if err != nil {
		return nil, &searchsvc.Error{Op: searchsvc.OpListIndexes, Err: fmt.Errorf("decode response: %w", err)}
	}
	return names, nil
}

// Ping checks that the service answers an authenticated request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListIndexNames(ctx)
	return err
}

// GetIndex fetches an index definition with @odata annotations removed.
func (c *Client) GetIndex(ctx context.Context, name string) (domain.IndexSchema, error) {
	_, body, err := c.do(ctx, searchsvc.OpGetIndex, http.MethodGet, indexPath(name), nil, nil)
	if err != nil {
		return domain.IndexSchema{}, err
	}
	return domain.IndexSchema{Name: name, Raw: domain.StripAnnotations(body, "@odata.")}, nil
}

// CreateOrUpdateIndex applies a schema under its own name.
func (c *Client) CreateOrUpdateIndex(ctx context.Context, schema domain.IndexSchema) error {
	_, _, err := c.do(ctx, searchsvc.OpPutIndex, http.MethodPut, indexPath(schema.Name), nil, schema.Raw)
	return err
}

// DeleteIndex removes an index and all its documents.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	_, _, err := c.do(ctx, searchsvc.OpDeleteIndex, http.MethodDelete, indexPath(name), nil, nil)
	return err
}

// GetSynonymMap fetches a synonym map with @odata annotations removed.
func (c *Client) GetSynonymMap(ctx context.Context, name string) (domain.SynonymMap, error) {
	_, body, err := c.do(ctx, searchsvc.OpGetSynonyms, http.MethodGet, synonymPath(name), nil, nil)
	if err != nil {
		return domain.SynonymMap{}, err
	}
	return domain.SynonymMap{Name: name, Raw: domain.StripAnnotations(body, "@odata.")}, nil
}

// CreateOrUpdateSynonymMap applies a synonym map under its own name.
func (c *Client) CreateOrUpdateSynonymMap(ctx context.Context, m domain.SynonymMap) error {
	_, _, err := c.do(ctx, searchsvc.OpPutSynonyms, http.MethodPut, synonymPath(m.Name), nil, m.Raw)
	return err
}

// DeleteSynonymMap removes a synonym map.
func (c *Client) DeleteSynonymMap(ctx context.Context, name string) error {
	_, _, err := c.do(ctx, searchsvc.OpDeleteSynonym, http.MethodDelete, synonymPath(name), nil, nil)
	return err
}

type searchRequest struct {
	Search     string `json:"search"`
	SearchMode string `json:"searchMode"`
	Skip       int    `json:"skip"`
	Top        int    `json:"top"`
	Count      bool   `json:"count,omitempty"`
}

// Search runs a match-all query and returns one page of documents in service order.
func (c *Client) Search(ctx context.Context, index string, q *searchsvc.Query) (*searchsvc.SearchResult, error) {
	return c.search(ctx, searchsvc.OpSearch, index, q)
}

// Count returns the service-reported document count for an index.
func (c *Client) Count(ctx context.Context, index string) (int64, error) {
	res, err := c.search(ctx, searchsvc.OpCount, index, &searchsvc.Query{IncludeCount: true})
	if err != nil {
		return 0, err
	}
	if res.Count == nil {
		return 0, &searchsvc.Error{Op: searchsvc.OpCount, Message: "response has no @odata.count"}
	}
	return *res.Count, nil
}

func (c *Client) search(ctx context.Context, op, index string, q *searchsvc.Query) (*searchsvc.SearchResult, error) {
	search := q.Search
	if search == "" {
		search = "*"
	}
	reqBody, err := json.Marshal(searchRequest{
		Search:     search,
		SearchMode: "all",
		Skip:       q.Skip,
		Top:        q.Top,
		Count:      q.IncludeCount,
	})
	if err != nil {
		return nil, &searchsvc.Error{Op: op, Err: err}
	}

	_, body, err := c.do(ctx, op, http.MethodPost, indexPath(index)+"/docs/search", nil, reqBody)
	if err != nil {
		return nil, err
	}

	res := &searchsvc.SearchResult{}
	if n, err := jsonparser.GetInt(body, "@odata.count"); err == nil {
		res.Count = &n
	}
	_, err = jsonparser.ArrayEach(body, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		doc := domain.StripAnnotations(value, "@search.")
		res.Documents = append(res.Documents, append(json.RawMessage(nil), doc...))
	}, "value")
	if err != nil {
		return nil, &searchsvc.Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return res, nil
}

// UploadDocuments posts a {"value":[...]} payload to the index's bulk endpoint.
// A 207 response is not an error; rejected items are reported in the result.
func (c *Client) UploadDocuments(ctx context.Context, index string, payload []byte) (*searchsvc.UploadResult, error) {
	status, body, err := c.do(ctx, searchsvc.OpUpload, http.MethodPost, indexPath(index)+"/docs/index", nil, payload)
	if err != nil {
		return nil, err
	}

	res := &searchsvc.UploadResult{StatusCode: status}
	_, err = jsonparser.ArrayEach(body, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		ok, _ := jsonparser.GetBoolean(value, "status")
		if ok {
			res.Succeeded++
			return
		}
		key, _ := jsonparser.GetString(value, "key")
		msg, _ := jsonparser.GetString(value, "errorMessage")
		code, _ := jsonparser.GetInt(value, "statusCode")
		res.Failed = append(res.Failed, searchsvc.ItemError{Key: key, StatusCode: int(code), Message: msg})
	}, "value")
	if err != nil {
		return nil, &searchsvc.Error{Op: searchsvc.OpUpload, StatusCode: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return res, nil
}
