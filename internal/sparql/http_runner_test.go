package sparql

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/config"
)

const selectResponse = `{
  "head": {"vars": ["s", "name", "age", "b"]},
  "results": {
    "bindings": [
      {
        "s": {"type": "uri", "value": "http://ex.org/Bob"},
        "name": {"type": "literal", "value": "Bob", "xml:lang": "EN"},
        "age": {"type": "literal", "value": "41", "datatype": "http://www.w3.org/2001/XMLSchema#integer"}
      },
      {
        "s": {"type": "uri", "value": "http://ex.org/Alice"},
        "b": {"type": "bnode", "value": "b0"},
        "name": {"type": "typed-literal", "value": "Alice", "datatype": "http://www.w3.org/2001/XMLSchema#string"}
      }
    ]
  }
}`

// recordedRequest captures what the endpoint saw.
type recordedRequest struct {
	contentType string
	accept      string
	form        url.Values
}

func newEndpoint(t *testing.T, status int, body string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.contentType = r.Header.Get("Content-Type")
		rec.accept = r.Header.Get("Accept")
		raw, _ := io.ReadAll(r.Body)
		rec.form, _ = url.ParseQuery(string(raw))
		w.Header().Set("Content-Type", MediaTypeResultsJSON)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func newRunner(t *testing.T, endpoint string) *HTTPRunner {
	t.Helper()
	r, err := NewHTTPRunner(config.SPARQLConfig{Endpoint: endpoint, Timeout: 5 * time.Second}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	return r
}

func TestHTTPRunner_QueryList(t *testing.T) {
	server, rec := newEndpoint(t, http.StatusOK, selectResponse)
	runner := newRunner(t, server.URL)

	contexts := schemas.NewContextSet("http://ex.org/g1", "http://ex.org/g2")
	sols, err := runner.ExecuteQueryAsList(context.Background(), "SELECT * WHERE { ?s ?p ?o }", contexts)
	require.NoError(t, err)

	assert.Equal(t, "application/x-www-form-urlencoded", rec.contentType)
	assert.Equal(t, MediaTypeResultsJSON, rec.accept)
	assert.Equal(t, "SELECT * WHERE { ?s ?p ?o }", rec.form.Get("query"))
	assert.Equal(t, []string{"http://ex.org/g1", "http://ex.org/g2"}, rec.form["default-graph-uri"])

	require.Len(t, sols, 2)
	assert.Equal(t, schemas.NewIRITerm("http://ex.org/Bob"), sols[0]["s"])
	assert.Equal(t, schemas.NewLangLiteral("Bob", "en"), sols[0]["name"])
	assert.Equal(t, schemas.NewTypedLiteral("41", "http://www.w3.org/2001/XMLSchema#integer"), sols[0]["age"])
	_, bound := sols[0].Term("b")
	assert.False(t, bound)

	assert.Equal(t, schemas.NewBlankNode("b0"), sols[1]["b"])
	assert.Equal(t, schemas.NewLiteral("Alice"), sols[1]["name"], "xsd:string collapses to a plain literal")
}

func TestHTTPRunner_SingleResult(t *testing.T) {
	server, _ := newEndpoint(t, http.StatusOK, selectResponse)
	sol, err := newRunner(t, server.URL).ExecuteQueryAsSingleResult(context.Background(), "SELECT ?s WHERE {}", schemas.EmptyContexts())
	require.NoError(t, err)
	assert.Equal(t, schemas.NewIRITerm("http://ex.org/Bob"), sol["s"])

	empty, _ := newEndpoint(t, http.StatusOK, `{"head":{"vars":["s"]},"results":{"bindings":[]}}`)
	sol, err = newRunner(t, empty.URL).ExecuteQueryAsSingleResult(context.Background(), "SELECT ?s WHERE {}", schemas.EmptyContexts())
	require.NoError(t, err)
	assert.Nil(t, sol)
}

func TestHTTPRunner_IteratorStreams(t *testing.T) {
	server, _ := newEndpoint(t, http.StatusOK, selectResponse)
	res, err := newRunner(t, server.URL).ExecuteQueryAsIterator(context.Background(), "SELECT * WHERE {}", schemas.EmptyContexts())
	require.NoError(t, err)

	require.True(t, res.Next())
	assert.Equal(t, schemas.IRI("http://ex.org/Bob"), schemas.IRI(res.Solution()["s"].Value))
	require.True(t, res.Next())
	assert.False(t, res.Next())
	assert.False(t, res.Next(), "exhausted iterators stay exhausted")
	assert.NoError(t, res.Err())
	assert.NoError(t, res.Close())
	assert.NoError(t, res.Close())
}

func TestHTTPRunner_MalformedResults(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"truncated", `{"results":{"bindings":[{"s":{"type":"uri","value":"http://ex.org/a"}},`},
		{"unknown term type", `{"results":{"bindings":[{"s":{"type":"quoted","value":"x"}}]}}`},
		{"bindings not an array", `{"results":{"bindings":{}}}`},
		{"bad binding after a good one", `{"results":{"bindings":[{"s":{"type":"uri","value":"http://ex.org/a"}},{"s":{"type":"bogus","value":"x"}}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newEndpoint(t, http.StatusOK, tt.body)
			sols, err := newRunner(t, server.URL).ExecuteQueryAsList(context.Background(), "SELECT * {}", schemas.EmptyContexts())
			assert.Error(t, err)
			assert.NotNil(t, sols)
			assert.Empty(t, sols, "solutions decoded before the error are dropped")
		})
	}

	server, _ := newEndpoint(t, http.StatusOK, `{"head":{"vars":[]}}`)
	sols, err := newRunner(t, server.URL).ExecuteQueryAsList(context.Background(), "SELECT * {}", schemas.EmptyContexts())
	require.NoError(t, err, "a document without results has no solutions")
	assert.Empty(t, sols)
}

func TestHTTPRunner_Boolean(t *testing.T) {
	server, rec := newEndpoint(t, http.StatusOK, `{"head":{},"boolean":true}`)
	ok, err := newRunner(t, server.URL).ExecuteBooleanQuery(context.Background(), "ASK { ?s ?p ?o }", schemas.NewContextSet("http://ex.org/g1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"http://ex.org/g1"}, rec.form["default-graph-uri"])

	missing, _ := newEndpoint(t, http.StatusOK, `{"head":{}}`)
	_, err = newRunner(t, missing.URL).ExecuteBooleanQuery(context.Background(), "ASK {}", schemas.EmptyContexts())
	assert.Error(t, err)
}

func TestHTTPRunner_Update(t *testing.T) {
	queries, _ := newEndpoint(t, http.StatusOK, "")
	updates, rec := newEndpoint(t, http.StatusNoContent, "")

	runner, err := NewHTTPRunner(config.SPARQLConfig{Endpoint: queries.URL, UpdateEndpoint: updates.URL}, nil, nil)
	require.NoError(t, err)

	ok, err := runner.ExecuteUpdateQuery(context.Background(), "INSERT DATA { <a> <b> <c> }", schemas.NewContextSet("http://ex.org/g1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "INSERT DATA { <a> <b> <c> }", rec.form.Get("update"))
	assert.Equal(t, []string{"http://ex.org/g1"}, rec.form["using-graph-uri"])
}

func TestHTTPRunner_StatusError(t *testing.T) {
	server, _ := newEndpoint(t, http.StatusBadRequest, "  Parse error: unexpected '}'  ")
	runner := newRunner(t, server.URL)

	res, err := runner.ExecuteQueryAsIterator(context.Background(), "SELECT", schemas.EmptyContexts())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "Parse error: unexpected '}'", statusErr.Body)
	require.NotNil(t, res, "failed iterators are empty, never nil")
	assert.False(t, res.Next())

	sols, err := runner.ExecuteQueryAsList(context.Background(), "SELECT", schemas.EmptyContexts())
	assert.Error(t, err)
	assert.NotNil(t, sols)

	ok, err := runner.ExecuteUpdateQuery(context.Background(), "DROP ALL", schemas.EmptyContexts())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestHTTPRunner_RateLimit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"boolean":true}`)
	}))
	defer server.Close()

	runner, err := NewHTTPRunner(config.SPARQLConfig{Endpoint: server.URL, RateLimit: 0.001, Burst: 1}, nil, nil)
	require.NoError(t, err)

	_, err = runner.ExecuteBooleanQuery(context.Background(), "ASK {}", schemas.EmptyContexts())
	require.NoError(t, err, "burst allows the first request")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = runner.ExecuteBooleanQuery(ctx, "ASK {}", schemas.EmptyContexts())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "rate limiter"))
	assert.Equal(t, int32(1), hits.Load())
}

func TestNewHTTPRunner_RequiresEndpoint(t *testing.T) {
	_, err := NewHTTPRunner(config.SPARQLConfig{}, nil, nil)
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestSliceResults(t *testing.T) {
	res := NewSliceResults(Solution{"s": schemas.NewIRITerm("a")}, Solution{"s": schemas.NewIRITerm("b")})
	assert.Nil(t, res.Solution(), "no current solution before Next")

	sols, err := Collect(res)
	require.NoError(t, err)
	assert.Len(t, sols, 2)
	assert.Nil(t, res.Solution())

	empty, err := Collect(EmptyResults())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
