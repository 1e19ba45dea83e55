package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v3"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/deepaksharma/otel-trace-access/internal/proxy"
)

// ErrIndexNotFound is returned by a Searcher when the queried index does not
// exist. The proxy treats it as an empty result.
var ErrIndexNotFound = errors.New("index not found")

// Searcher runs a search request body against an index and returns the raw
// _source of every hit, in order.
type Searcher interface {
	Search(ctx context.Context, index string, body []byte) ([][]byte, error)
}

// ClientConfig holds the connection settings of the search cluster.
type ClientConfig struct {
	Addresses          []string `mapstructure:"addresses"`
	Username           string   `mapstructure:"username"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
}

// Validate checks that at least one address is configured.
func (c *ClientConfig) Validate() error {
	if len(c.Addresses) == 0 {
		return fmt.Errorf("at least one opensearch address is required")
	}
	for _, addr := range c.Addresses {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("opensearch addresses must not be empty")
		}
	}
	return nil
}

type client struct {
	api *opensearchapi.Client
}

// NewClient creates a Searcher backed by an opensearch cluster.
func NewClient(cfg ClientConfig) (Searcher, error) {
	opts := opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	if cfg.InsecureSkipVerify {
		opts.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		}
	}

	api, err := opensearchapi.NewClient(opensearchapi.Config{Client: opts})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}
	return &client{api: api}, nil
}

func (c *client) Search(ctx context.Context, index string, body []byte) ([][]byte, error) {
	resp, err := c.api.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{index},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		var apiErr opensearchapi.Error
		if errors.As(err, &apiErr) && apiErr.Err.Type == "index_not_found_exception" {
			return nil, ErrIndexNotFound
		}
		return nil, ClassifyError(err)
	}

	sources := make([][]byte, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		sources = append(sources, hit.Source)
	}
	return sources, nil
}

// ClassifyError turns a search client failure into a *proxy.BackendError
// carrying only the status and error type. Messages from the cluster are
// dropped since they may reveal internal details. Context cancellation and
// errors that are already classified pass through unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrIndexNotFound) {
		return err
	}
	var backendErr *proxy.BackendError
	if errors.As(err, &backendErr) {
		return err
	}

	var apiErr opensearchapi.Error
	if errors.As(err, &apiErr) {
		return statusError(apiErr.Status, apiErr.Err.Type)
	}
	var stringErr opensearchapi.StringError
	if errors.As(err, &stringErr) {
		return statusError(stringErr.Status, "")
	}

	if isTimeout(err) {
		return &proxy.BackendError{Status: http.StatusInternalServerError, Code: "timeout", Title: "Search request timed out"}
	}
	return &proxy.BackendError{Status: http.StatusBadGateway, Code: "backend_unavailable", Title: "Search backend unavailable"}
}

func statusError(status int, code string) *proxy.BackendError {
	if code == "" {
		code = "search_error"
	}
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &proxy.BackendError{Status: status, Code: code, Title: titleFor(status)}
}

func titleFor(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "Authentication failed"
	case http.StatusForbidden:
		return "Access denied"
	case http.StatusNotFound:
		return "Not found"
	default:
		return "Search request failed"
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
