// Package rest implements a proxy over another trace access server's HTTP
// API. Queries naming several traces walk the selectors one after another,
// so a page token holds both the selector position and the upstream token.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
	"github.com/deepaksharma/otel-trace-access/internal/otlp/otlpjson"
	"github.com/deepaksharma/otel-trace-access/internal/proxy"
)

// parseConfig keeps numbers as json.Number for the OTLP-JSON views.
var parseConfig = jsoniter.Config{UseNumber: true}.Froze()

// Config defines the REST proxy settings.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the REST proxy defaults.
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second}
}

// Validate checks the REST proxy settings.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must be set")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be an http or https URL, got %q", c.BaseURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// Proxy forwards queries to an upstream server.
type Proxy struct {
	client  *resty.Client
	headers proxy.ResolverFunc[http.Header]
	logger  *zap.Logger
}

// NewProxy creates a REST proxy. headers supplies the request headers, such
// as credentials, for the caller attached to the query context.
func NewProxy(cfg Config, headers proxy.ResolverFunc[http.Header], logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if headers == nil {
		headers = proxy.StaticResolver[http.Header](nil)
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &Proxy{client: client, headers: headers, logger: logger}
}

// Client exposes the underlying HTTP client.
func (p *Proxy) Client() *resty.Client { return p.client }

// AuthorizationResolver forwards a string caller as the Authorization header
// on top of the static headers.
func AuthorizationResolver(static http.Header) proxy.ResolverFunc[http.Header] {
	return func(_ context.Context, caller any) (http.Header, error) {
		h := static.Clone()
		if h == nil {
			h = http.Header{}
		}
		if auth, ok := caller.(string); ok && auth != "" {
			h.Set("Authorization", auth)
		}
		return h, nil
	}
}

// QueryPage fetches one upstream page for the selector the token points at.
func (p *Proxy) QueryPage(ctx context.Context, q proxy.Query) otlp.Seq[proxy.Result] {
	return func(yield func(proxy.Result, error) bool) {
		selectors := q.Selectors
		if len(selectors) == 0 {
			selectors = []proxy.Selector{{}}
		}

		idx, upstream := DecodeToken(q.PageToken)
		if idx >= len(selectors) {
			yield(proxy.Result{}, fmt.Errorf("%w: selector %d of %d", proxy.ErrInvalidPageToken, idx, len(selectors)))
			return
		}

		headers, err := p.headers(ctx, proxy.CallerFrom(ctx))
		if err != nil {
			yield(proxy.Result{}, err)
			return
		}

		path := spansPath(selectors[idx])
		resp, err := p.client.R().
			SetContext(ctx).
			SetHeaderMultiValues(headers).
			SetQueryParamsFromValues(queryParams(q, upstream)).
			Get(path)
		if err != nil {
			if ctx.Err() != nil {
				yield(proxy.Result{}, ctx.Err())
				return
			}
			p.logger.Warn("Upstream request failed", zap.String("path", path), zap.Error(err))
			yield(proxy.Result{}, &proxy.BackendError{
				Status: http.StatusBadGateway,
				Code:   "backend_unavailable",
				Title:  "Upstream server unavailable",
			})
			return
		}
		if resp.IsError() {
			yield(proxy.Result{}, upstreamError(resp))
			return
		}

		pages, next, err := decodeResponse(resp.Body())
		if err != nil {
			yield(proxy.Result{}, err)
			return
		}
		p.logger.Debug("Upstream page received",
			zap.String("path", path),
			zap.Int("selector", idx),
			zap.Int("collections", len(pages)),
			zap.Bool("more", next != nil))

		for _, page := range pages {
			if !yield(proxy.Result{Spans: page}, nil) {
				return
			}
		}

		switch {
		case next != nil:
			yield(proxy.Result{Token: EncodeToken(idx, next)}, nil)
		case idx+1 < len(selectors):
			yield(proxy.Result{Token: EncodeToken(idx+1, nil)}, nil)
		}
	}
}

func spansPath(sel proxy.Selector) string {
	switch {
	case sel.TraceID == "":
		return "/v1/spans"
	case sel.SpanID == "":
		return "/v1/spans/" + url.PathEscape(sel.TraceID)
	default:
		return "/v1/spans/" + url.PathEscape(sel.TraceID) + "/" + url.PathEscape(sel.SpanID)
	}
}

func queryParams(q proxy.Query, upstream []byte) url.Values {
	params := url.Values{}
	if !q.From.IsZero() {
		params.Set("from_time", q.From.UTC().Format(time.RFC3339Nano))
	}
	if !q.To.IsZero() {
		params.Set("to_time", q.To.UTC().Format(time.RFC3339Nano))
	}
	addFilter(params, "resource_attributes", q.ResourceAttributes)
	addFilter(params, "scope_attributes", q.ScopeAttributes)
	addFilter(params, "span_attributes", q.SpanAttributes)
	if q.SpanName != "" {
		params.Set("span_name", q.SpanName)
	}
	if q.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if upstream != nil {
		params.Set("page_token", string(upstream))
	}
	return params
}

func addFilter(params url.Values, name string, f attribute.Filter) {
	tokens := f.Tokens()
	sort.Strings(tokens)
	for _, tok := range tokens {
		params.Add(name, tok)
	}
}

// decodeResponse reads the span collections and the upstream token out of
// a list response envelope. An empty token means the upstream is exhausted.
func decodeResponse(body []byte) ([]otlp.SpanCollection, []byte, error) {
	var doc map[string]any
	if err := parseConfig.Unmarshal(body, &doc); err != nil {
		return nil, nil, otlp.Malformedf("invalid upstream response: %v", err)
	}

	data, ok := doc["data"].([]any)
	if !ok && doc["data"] != nil {
		return nil, nil, otlp.Malformedf("upstream data must be a list")
	}
	pages := make([]otlp.SpanCollection, 0, len(data))
	for _, item := range data {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, nil, otlp.Malformedf("upstream data item must be an object")
		}
		page, err := otlpjson.New(obj["attributes"])
		if err != nil {
			return nil, nil, err
		}
		pages = append(pages, page)
	}

	meta, _ := doc["meta"].(map[string]any)
	page, _ := meta["page"].(map[string]any)
	switch next := page["next_page_token"].(type) {
	case nil:
		return pages, nil, nil
	case string:
		if next == "" {
			return pages, nil, nil
		}
		return pages, []byte(next), nil
	default:
		return nil, nil, otlp.Malformedf("upstream next_page_token must be a string, got %T", next)
	}
}

// upstreamError keeps the status and the first error's code and title.
func upstreamError(resp *resty.Response) error {
	err := &proxy.BackendError{
		Status: resp.StatusCode(),
		Code:   "upstream_error",
		Title:  http.StatusText(resp.StatusCode()),
	}
	var envelope struct {
		Errors []struct {
			Code  string `json:"code"`
			Title string `json:"title"`
		} `json:"errors"`
	}
	if parseConfig.Unmarshal(resp.Body(), &envelope) == nil && len(envelope.Errors) > 0 {
		if envelope.Errors[0].Code != "" {
			err.Code = envelope.Errors[0].Code
		}
		if envelope.Errors[0].Title != "" {
			err.Title = envelope.Errors[0].Title
		}
	}
	return err
}
