// Package api serves span queries over HTTP as JSON:API documents whose
// resources carry OTLP-JSON span collections.
package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
	"github.com/deepaksharma/otel-trace-access/internal/otlp/ss4o"
	"github.com/deepaksharma/otel-trace-access/internal/proxy"
)

// MediaType is the content type of every response.
const MediaType = "application/vnd.api+json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type server struct {
	proxy  proxy.Proxy
	logger *zap.Logger
}

// NewRouter builds the HTTP routes over p. metrics, when set, is served on
// /metrics.
func NewRouter(p proxy.Proxy, metrics http.Handler, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &server{proxy: p, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/v1/spans", s.handleSpans).Methods(http.MethodGet)
	r.HandleFunc("/v1/spans/{trace_id}", s.handleSpans).Methods(http.MethodGet)
	r.HandleFunc("/v1/spans/{trace_id}/{span_id}", s.handleSpans).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErrors(w, http.StatusNotFound, apiError{Code: "not_found", Title: "Not Found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErrors(w, http.StatusMethodNotAllowed, apiError{Code: "method_not_allowed", Title: "Method Not Allowed"})
	})
	return r
}

type resource struct {
	ID         string              `json:"id,omitempty"`
	Type       string              `json:"type"`
	Attributes jsoniter.RawMessage `json:"attributes,omitempty"`
	Links      map[string]string   `json:"links,omitempty"`
}

type links struct {
	Self  string  `json:"self"`
	First string  `json:"first,omitempty"`
	Next  *string `json:"next,omitempty"`
	Root  string  `json:"root,omitempty"`
}

type pageMeta struct {
	NextPageToken *string `json:"next_page_token"`
}

type document struct {
	Data  []resource           `json:"data"`
	Links links                `json:"links"`
	Meta  map[string]*pageMeta `json:"meta,omitempty"`
}

type apiError struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, document{
		Data: []resource{
			{ID: "get_spans", Type: "api_path", Links: map[string]string{"self": "/v1/spans"}},
		},
		Links: links{Self: r.URL.String()},
	})
}

func (s *server) handleSpans(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, tokens, err := parseQuery(r.URL.Query())
	if err != nil {
		writeErrors(w, http.StatusBadRequest, apiError{Code: "invalid_parameter", Title: "Invalid query parameter", Detail: err.Error()})
		return
	}
	vars := mux.Vars(r)
	if traceID := vars["trace_id"]; traceID != "" {
		q.Selectors = []proxy.Selector{{TraceID: traceID, SpanID: vars["span_id"]}}
	}

	ctx := r.Context()
	if auth := r.Header.Get("Authorization"); auth != "" {
		ctx = proxy.WithCaller(ctx, auth)
	}

	data, next, err := s.run(ctx, q, tokens)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	doc := document{
		Data:  data,
		Links: pageLinks(r.URL, next),
		Meta:  map[string]*pageMeta{"page": {NextPageToken: next}},
	}
	writeJSON(w, http.StatusOK, doc)

	s.logger.Debug("Served span query",
		zap.String("path", r.URL.Path),
		zap.Int("collections", len(data)),
		zap.Int("tokens", len(tokens)),
		zap.Bool("more", next != nil),
		zap.Duration("duration", time.Since(start)))
}

// run resumes every token and gathers all pages and follow-up tokens.
func (s *server) run(ctx context.Context, q proxy.Query, tokens []proxy.PageToken) ([]resource, *string, error) {
	data := []resource{}
	var next []proxy.PageToken
	for _, tok := range tokens {
		sub := q
		sub.PageToken = tok
		for res, err := range s.proxy.QueryPage(ctx, sub) {
			if err != nil {
				return nil, nil, err
			}
			if res.IsToken() {
				next = append(next, res.Token)
				continue
			}
			b, err := otlp.MarshalJSON(res.Spans)
			if err != nil {
				return nil, nil, err
			}
			data = append(data, resource{Type: "resourceSpans", Attributes: b})
		}
	}
	if len(next) == 0 {
		return data, nil, nil
	}
	text := proxy.EncodeTokens(next)
	return data, &text, nil
}

func parseQuery(params url.Values) (proxy.Query, []proxy.PageToken, error) {
	var q proxy.Query
	var err error

	if q.From, err = parseTime(params, "from_time"); err != nil {
		return q, nil, err
	}
	if q.To, err = parseTime(params, "to_time"); err != nil {
		return q, nil, err
	}
	if q.ResourceAttributes, err = attribute.ParseFilter(params["resource_attributes"]); err != nil {
		return q, nil, err
	}
	if q.ScopeAttributes, err = attribute.ParseFilter(params["scope_attributes"]); err != nil {
		return q, nil, err
	}
	if q.SpanAttributes, err = attribute.ParseFilter(params["span_attributes"]); err != nil {
		return q, nil, err
	}
	q.SpanName = params.Get("span_name")

	if v := params.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return q, nil, errors.New("page_size must be a positive integer")
		}
		q.PageSize = n
	}

	tokens, err := proxy.DecodeTokens(params.Get("page_token"))
	if err != nil {
		return q, nil, err
	}
	if len(tokens) == 0 {
		tokens = []proxy.PageToken{nil}
	}
	return q, tokens, nil
}

func parseTime(params url.Values, key string) (time.Time, error) {
	v := params.Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	ns, err := ss4o.ParseTime(v)
	if err != nil {
		return time.Time{}, errors.New(key + " must be an RFC 3339 timestamp")
	}
	return time.Unix(0, ns).UTC(), nil
}

func pageLinks(u *url.URL, next *string) links {
	params := u.Query()
	params.Del("page_token")
	first := url.URL{Path: u.Path, RawQuery: params.Encode()}

	l := links{Self: u.String(), First: first.String(), Root: "/"}
	if next != nil {
		params.Set("page_token", *next)
		n := url.URL{Path: u.Path, RawQuery: params.Encode()}
		text := n.String()
		l.Next = &text
	}
	return l
}

func (s *server) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	var backendErr *proxy.BackendError
	switch {
	case proxy.IsUserError(err):
		writeErrors(w, http.StatusBadRequest, apiError{Code: "invalid_request", Title: "Invalid request", Detail: err.Error()})
	case errors.As(err, &backendErr):
		s.logger.Warn("Backend query failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeErrors(w, backendErr.Status, apiError{Code: backendErr.Code, Title: backendErr.Title})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeErrors(w, http.StatusServiceUnavailable, apiError{Code: "cancelled", Title: "Request cancelled"})
	default:
		s.logger.Error("Span query failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeErrors(w, http.StatusInternalServerError, apiError{Code: "internal_error", Title: "Internal Server Error"})
	}
}

func writeErrors(w http.ResponseWriter, status int, errs ...apiError) {
	for i := range errs {
		errs[i].Status = strconv.Itoa(status)
	}
	writeJSON(w, status, map[string][]apiError{"errors": errs})
}

// writeJSON encodes v fully before writing, so an encoding failure can still
// produce an error response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, `{"errors":[{"status":"500","code":"internal_error","title":"Internal Server Error"}]}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", MediaType)
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
