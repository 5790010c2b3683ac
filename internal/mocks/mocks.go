// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/config"
	"github.com/xkilldash9x/kao/internal/sparql"
	"github.com/xkilldash9x/kao/internal/store"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Store() config.StoreConfig {
	args := m.Called()
	return args.Get(0).(config.StoreConfig)
}

func (m *MockConfig) SPARQL() config.SPARQLConfig {
	args := m.Called()
	return args.Get(0).(config.SPARQLConfig)
}

func (m *MockConfig) KAO() config.KAOConfig {
	args := m.Called()
	return args.Get(0).(config.KAOConfig)
}

func (m *MockConfig) Metrics() config.MetricsConfig {
	args := m.Called()
	return args.Get(0).(config.MetricsConfig)
}

func (m *MockConfig) SetStoreBackend(backend string) {
	m.Called(backend)
}

func (m *MockConfig) SetKAODefaultContexts(contexts []string) {
	m.Called(contexts)
}

// -- Store Mocks --

// MockRepository mocks store.Repository.
type MockRepository struct {
	mock.Mock
}

var _ store.Repository = (*MockRepository)(nil)

func (m *MockRepository) Connection(ctx context.Context) (store.Connection, error) {
	args := m.Called(ctx)
	var conn store.Connection
	if c := args.Get(0); c != nil {
		conn = c.(store.Connection)
	}
	return conn, args.Error(1)
}

func (m *MockRepository) Close() error {
	return m.Called().Error(0)
}

// MockConnection mocks store.Connection. Lifecycle calls are recorded so tests
// can assert that a connection was released.
type MockConnection struct {
	mock.Mock
}

var _ store.Connection = (*MockConnection)(nil)

func (m *MockConnection) SetAutoCommit(ctx context.Context, autoCommit bool) error {
	return m.Called(ctx, autoCommit).Error(0)
}

func (m *MockConnection) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConnection) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConnection) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConnection) Add(ctx context.Context, contexts schemas.ContextSet, statements ...schemas.Statement) error {
	return m.Called(ctx, contexts, statements).Error(0)
}

func (m *MockConnection) Remove(ctx context.Context, pattern schemas.Pattern, contexts schemas.ContextSet) (int64, error) {
	args := m.Called(ctx, pattern, contexts)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConnection) Statements(ctx context.Context, pattern schemas.Pattern, contexts schemas.ContextSet) ([]schemas.Statement, error) {
	args := m.Called(ctx, pattern, contexts)
	var sts []schemas.Statement
	if s := args.Get(0); s != nil {
		sts = s.([]schemas.Statement)
	}
	return sts, args.Error(1)
}

func (m *MockConnection) Has(ctx context.Context, pattern schemas.Pattern, contexts schemas.ContextSet) (bool, error) {
	args := m.Called(ctx, pattern, contexts)
	return args.Bool(0), args.Error(1)
}

// -- Query Runner Mock --

// MockQueryRunner mocks the access object's query runner.
type MockQueryRunner struct {
	mock.Mock
}

func (m *MockQueryRunner) ExecuteQueryAsSingleResult(ctx context.Context, query string, contexts schemas.ContextSet) (sparql.Solution, error) {
	args := m.Called(ctx, query, contexts)
	var sol sparql.Solution
	if s := args.Get(0); s != nil {
		sol = s.(sparql.Solution)
	}
	return sol, args.Error(1)
}

func (m *MockQueryRunner) ExecuteQueryAsList(ctx context.Context, query string, contexts schemas.ContextSet) ([]sparql.Solution, error) {
	args := m.Called(ctx, query, contexts)
	var sols []sparql.Solution
	if s := args.Get(0); s != nil {
		sols = s.([]sparql.Solution)
	}
	return sols, args.Error(1)
}

func (m *MockQueryRunner) ExecuteQueryAsIterator(ctx context.Context, query string, contexts schemas.ContextSet) (sparql.Results, error) {
	args := m.Called(ctx, query, contexts)
	var res sparql.Results
	if r := args.Get(0); r != nil {
		res = r.(sparql.Results)
	}
	return res, args.Error(1)
}

func (m *MockQueryRunner) ExecuteBooleanQuery(ctx context.Context, query string, contexts schemas.ContextSet) (bool, error) {
	args := m.Called(ctx, query, contexts)
	return args.Bool(0), args.Error(1)
}

func (m *MockQueryRunner) ExecuteUpdateQuery(ctx context.Context, query string, contexts schemas.ContextSet) (bool, error) {
	args := m.Called(ctx, query, contexts)
	return args.Bool(0), args.Error(1)
}
