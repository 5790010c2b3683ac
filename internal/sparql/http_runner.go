package sparql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/config"
	"github.com/xkilldash9x/kao/internal/network"
)

// ErrNoEndpoint is returned when the runner has no endpoint for the request.
var ErrNoEndpoint = errors.New("sparql endpoint is not configured")

const errorBodyLimit = 512

// StatusError reports a non-2xx answer from the endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("sparql endpoint returned %d", e.StatusCode)
	}
	return fmt.Sprintf("sparql endpoint returned %d: %s", e.StatusCode, e.Body)
}

// HTTPRunner executes queries over the SPARQL 1.1 protocol. Context sets are
// sent as default-graph-uri parameters for queries and using-graph-uri for
// updates.
type HTTPRunner struct {
	endpoint       string
	updateEndpoint string
	client         *http.Client
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// NewHTTPRunner builds a runner from configuration. A nil client gets a
// transport tuned from cfg.
func NewHTTPRunner(cfg config.SPARQLConfig, client *http.Client, logger *zap.Logger) (*HTTPRunner, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = network.NewClient(network.ClientConfigFromSPARQL(cfg, logger.Named("http")))
	}
	r := &HTTPRunner{
		endpoint:       cfg.Endpoint,
		updateEndpoint: cfg.UpdateEndpoint,
		client:         client,
		logger:         logger.Named("SPARQLRunner"),
	}
	if r.updateEndpoint == "" {
		r.updateEndpoint = cfg.Endpoint
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return r, nil
}

// ExecuteQueryAsSingleResult returns the first solution, or nil when there is none.
func (r *HTTPRunner) ExecuteQueryAsSingleResult(ctx context.Context, query string, contexts schemas.ContextSet) (Solution, error) {
	res, err := r.ExecuteQueryAsIterator(ctx, query, contexts)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	if res.Next() {
		return res.Solution(), nil
	}
	return nil, res.Err()
}

// ExecuteQueryAsList returns every solution in order. The slice is never nil
// and is empty whenever an error is returned, even one hit mid-stream.
func (r *HTTPRunner) ExecuteQueryAsList(ctx context.Context, query string, contexts schemas.ContextSet) ([]Solution, error) {
	res, err := r.ExecuteQueryAsIterator(ctx, query, contexts)
	if err != nil {
		return []Solution{}, err
	}
	sols, err := Collect(res)
	if err != nil {
		return []Solution{}, err
	}
	return sols, nil
}

// ExecuteQueryAsIterator streams solutions from the response body. The caller
// must Close the result.
func (r *HTTPRunner) ExecuteQueryAsIterator(ctx context.Context, query string, contexts schemas.ContextSet) (Results, error) {
	resp, err := r.post(ctx, r.endpoint, queryForm("query", "default-graph-uri", query, contexts))
	if err != nil {
		return EmptyResults(), err
	}
	return newStreamResults(resp.Body), nil
}

// ExecuteBooleanQuery runs an ASK query.
func (r *HTTPRunner) ExecuteBooleanQuery(ctx context.Context, query string, contexts schemas.ContextSet) (bool, error) {
	resp, err := r.post(ctx, r.endpoint, queryForm("query", "default-graph-uri", query, contexts))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return decodeBoolean(resp.Body)
}

// ExecuteUpdateQuery runs a SPARQL update. The endpoint applies it atomically.
func (r *HTTPRunner) ExecuteUpdateQuery(ctx context.Context, update string, contexts schemas.ContextSet) (bool, error) {
	if r.updateEndpoint == "" {
		return false, ErrNoEndpoint
	}
	resp, err := r.post(ctx, r.updateEndpoint, queryForm("update", "using-graph-uri", update, contexts))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return true, nil
}

func queryForm(key, graphKey, text string, contexts schemas.ContextSet) url.Values {
	form := url.Values{}
	form.Set(key, text)
	for _, g := range contexts.Strings() {
		form.Add(graphKey, g)
	}
	return form
}

// post sends the form and returns a 2xx response whose body the caller owns.
func (r *HTTPRunner) post(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", MediaTypeResultsJSON)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("SPARQL request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("sparql request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		r.logger.Warn("SPARQL endpoint rejected request",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	return resp, nil
}
