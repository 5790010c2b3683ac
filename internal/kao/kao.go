// Package kao implements the knowledge access object: a facade bound to one
// entity type that offers CRUD and raw query operations over a statement
// store. Every CRUD call runs in its own transactional session; raw queries go
// straight to the query runner.
//
// Context policy. CRUD operations are scoped to the explicit contexts passed
// in, or to the object's current contexts when none are given. Raw queries
// resolve their graphs as follows:
//
//	ExecuteSPARQLQuerySingleResult  graphs named in the query text
//	ExecuteSPARQLQueryResultList    explicit contexts, else the query text
//	ExecuteQueryAsIterator          explicit contexts plus the query text
//	ExecuteBooleanQuery             graphs named in the query text
//	ExecuteSPARQLUpdateQuery        graphs named in the query text
//
// No operation changes the object's current contexts.
package kao

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/config"
	"github.com/xkilldash9x/kao/internal/metrics"
	"github.com/xkilldash9x/kao/internal/operations"
	"github.com/xkilldash9x/kao/internal/sparql"
	"github.com/xkilldash9x/kao/internal/store"
)

// ErrNoRunner is returned by query operations on an object built without a runner.
var ErrNoRunner = errors.New("no query runner configured")

// QueryRunner executes raw queries scoped to a context set.
type QueryRunner interface {
	ExecuteQueryAsSingleResult(ctx context.Context, query string, contexts schemas.ContextSet) (sparql.Solution, error)
	ExecuteQueryAsList(ctx context.Context, query string, contexts schemas.ContextSet) ([]sparql.Solution, error)
	ExecuteQueryAsIterator(ctx context.Context, query string, contexts schemas.ContextSet) (sparql.Results, error)
	ExecuteBooleanQuery(ctx context.Context, query string, contexts schemas.ContextSet) (bool, error)
	ExecuteUpdateQuery(ctx context.Context, query string, contexts schemas.ContextSet) (bool, error)
}

var _ QueryRunner = (*sparql.HTTPRunner)(nil)

// Query kinds used as metric labels.
const (
	querySingle   = "single"
	queryList     = "list"
	queryIterator = "iterator"
	queryBoolean  = "boolean"
	queryUpdate   = "update"
)

// KAO is a knowledge access object. It is safe for concurrent use.
type KAO struct {
	mu       sync.RWMutex
	class    schemas.EntityType
	contexts schemas.ContextSet

	repo      store.Repository
	runner    QueryRunner
	creator   *operations.Creator
	// uniqueIDAttempts overrides the creator's bound when positive.
	uniqueIDAttempts int
	retriever operations.Retriever
	updater   *operations.Updater
	remover   operations.Remover

	logger  *zap.Logger
	metrics *metrics.Registry
}

// Option configures a KAO.
type Option func(*KAO)

// WithLogger sets the parent logger.
func WithLogger(logger *zap.Logger) Option {
	return func(k *KAO) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithMetrics records sessions and queries in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(k *KAO) { k.metrics = reg }
}

// WithContexts sets the initial current contexts.
func WithContexts(ids ...schemas.IRI) Option {
	return func(k *KAO) { k.contexts = schemas.NewContextSet(ids...) }
}

// WithCreator supplies the create helper, e.g. to control generated
// identifiers. The object works on its own copy of c.
func WithCreator(c *operations.Creator) Option {
	return func(k *KAO) {
		if c != nil {
			k.creator = c
		}
	}
}

// WithConfig applies the kao configuration section.
func WithConfig(cfg config.KAOConfig) Option {
	return func(k *KAO) {
		k.contexts = schemas.ContextsFromStrings(cfg.DefaultContexts)
		if cfg.UniqueIDAttempts > 0 {
			k.uniqueIDAttempts = cfg.UniqueIDAttempts
		}
	}
}

// New binds an access object to class. The repository is shared; a
// connection is taken from it for each CRUD call. runner may be nil when raw
// queries are not needed.
func New(class schemas.EntityType, repo store.Repository, runner QueryRunner, opts ...Option) *KAO {
	k := &KAO{
		class:    class,
		contexts: schemas.EmptyContexts(),
		repo:     repo,
		runner:   runner,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.logger = k.logger.Named("kao")

	if k.creator == nil {
		k.creator = operations.NewCreator(k.uniqueIDAttempts, k.logger)
	} else {
		owned := *k.creator
		if k.uniqueIDAttempts > 0 {
			owned.MaxAttempts = k.uniqueIDAttempts
		}
		k.creator = &owned
	}
	k.updater = operations.NewUpdater(k.logger)
	return k
}

// -- Binding and contexts --

// SetClass rebinds the object. Operations already running keep the old class.
func (k *KAO) SetClass(class schemas.EntityType) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.class = class
}

// Class returns the bound entity type.
func (k *KAO) Class() schemas.EntityType {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.class
}

// Contexts returns the current context set.
func (k *KAO) Contexts() schemas.ContextSet {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.contexts
}

// SetContexts replaces the current context set. No arguments clears it.
func (k *KAO) SetContexts(ids ...schemas.IRI) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.contexts = schemas.NewContextSet(ids...)
}

// RetrieveContexts returns the graphs named in the query text.
func (k *KAO) RetrieveContexts(query string) schemas.ContextSet {
	return ExtractContexts(query)
}

// snapshot reads the binding and resolves the CRUD scope in one step, so a
// concurrent rebind never splits an operation.
func (k *KAO) snapshot(explicit []schemas.IRI) (schemas.EntityType, schemas.ContextSet) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	scope := schemas.NewContextSet(explicit...)
	if scope.IsEmpty() {
		scope = k.contexts
	}
	return k.class, scope
}

func (k *KAO) session() session {
	return session{repo: k.repo, log: k.logger, metrics: k.metrics}
}

func sessionFields(class schemas.EntityType, scope schemas.ContextSet, extra ...zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("class", class.String()),
		zap.Strings("contexts", scope.Strings()),
	}, extra...)
}

// -- CRUD --

// Create creates an instance at baseURI+name.
func (k *KAO) Create(ctx context.Context, baseURI, name string, contexts ...schemas.IRI) (*schemas.Instance, error) {
	return k.create(ctx, "create", schemas.IRI(baseURI+name), contexts)
}

// CreateAt creates an instance at uri.
func (k *KAO) CreateAt(ctx context.Context, uri schemas.IRI, contexts ...schemas.IRI) (*schemas.Instance, error) {
	return k.create(ctx, "create_at", uri, contexts)
}

func (k *KAO) create(ctx context.Context, op string, iri schemas.IRI, contexts []schemas.IRI) (*schemas.Instance, error) {
	class, scope := k.snapshot(contexts)
	return runInSession(ctx, k.session(), op, sessionFields(class, scope, zap.String("iri", string(iri))),
		func(ctx context.Context, conn store.Connection) (*schemas.Instance, error) {
			return k.creator.Create(ctx, conn, class, iri, scope)
		})
}

// CreateWithUniqueID creates an instance named baseURI+prefix+<generated id>
// whose IRI is not used by any other instance of the bound class.
func (k *KAO) CreateWithUniqueID(ctx context.Context, baseURI, prefix string, contexts ...schemas.IRI) (*schemas.Instance, error) {
	class, scope := k.snapshot(contexts)
	return runInSession(ctx, k.session(), "create_unique", sessionFields(class, scope, zap.String("prefix", baseURI+prefix)),
		func(ctx context.Context, conn store.Connection) (*schemas.Instance, error) {
			return k.creator.CreateWithUniqueID(ctx, conn, class, baseURI, prefix, scope)
		})
}

// Delete removes every statement about baseURI+name. Deleting an instance
// that does not exist succeeds.
func (k *KAO) Delete(ctx context.Context, baseURI, name string, contexts ...schemas.IRI) error {
	return k.delete(ctx, "delete", schemas.IRI(baseURI+name), contexts)
}

// DeleteInstance removes every statement about inst.
func (k *KAO) DeleteInstance(ctx context.Context, inst *schemas.Instance, contexts ...schemas.IRI) error {
	return k.delete(ctx, "delete_instance", schemas.IRI(inst.String()), contexts)
}

func (k *KAO) delete(ctx context.Context, op string, iri schemas.IRI, contexts []schemas.IRI) error {
	class, scope := k.snapshot(contexts)
	_, err := runInSession(ctx, k.session(), op, sessionFields(class, scope, zap.String("iri", string(iri))),
		func(ctx context.Context, conn store.Connection) (int64, error) {
			return k.remover.Remove(ctx, conn, iri, scope)
		})
	return err
}

// RetrieveInstance returns the instance at baseURI+name, or nil when it is not
// visible in the contexts.
func (k *KAO) RetrieveInstance(ctx context.Context, baseURI, name string, contexts ...schemas.IRI) (*schemas.Instance, error) {
	class, scope := k.snapshot(contexts)
	iri := schemas.IRI(baseURI + name)
	return runInSession(ctx, k.session(), "retrieve", sessionFields(class, scope, zap.String("iri", string(iri))),
		func(ctx context.Context, conn store.Connection) (*schemas.Instance, error) {
			return k.retriever.Retrieve(ctx, conn, class, iri, scope)
		})
}

// RetrieveAllInstances returns every instance of the bound class in the
// contexts, ordered by IRI. The slice is never nil.
func (k *KAO) RetrieveAllInstances(ctx context.Context, contexts ...schemas.IRI) ([]*schemas.Instance, error) {
	class, scope := k.snapshot(contexts)
	all, err := runInSession(ctx, k.session(), "retrieve_all", sessionFields(class, scope),
		func(ctx context.Context, conn store.Connection) ([]*schemas.Instance, error) {
			return k.retriever.RetrieveAll(ctx, conn, class, scope)
		})
	if all == nil {
		all = []*schemas.Instance{}
	}
	return all, err
}

// Update merges the detached instance into the store and returns the stored
// result.
func (k *KAO) Update(ctx context.Context, inst *schemas.Instance, contexts ...schemas.IRI) (*schemas.Instance, error) {
	class, scope := k.snapshot(contexts)
	return runInSession(ctx, k.session(), "update", sessionFields(class, scope, zap.String("iri", inst.String())),
		func(ctx context.Context, conn store.Connection) (*schemas.Instance, error) {
			return k.updater.Update(ctx, conn, class, inst, scope)
		})
}

// -- Raw queries --

// ExecuteSPARQLQuerySingleResult returns the first solution of query, scoped
// to the graphs the query names. A query without solutions returns nil.
func (k *KAO) ExecuteSPARQLQuerySingleResult(ctx context.Context, query string) (sparql.Solution, error) {
	if k.runner == nil {
		return nil, ErrNoRunner
	}
	scope := ExtractContexts(query)
	sol, err := k.runner.ExecuteQueryAsSingleResult(ctx, query, scope)
	return sol, k.queryDone(querySingle, scope, err)
}

// ExecuteSPARQLQueryResultList returns every solution of query. The slice is
// never nil.
func (k *KAO) ExecuteSPARQLQueryResultList(ctx context.Context, query string, contexts ...schemas.IRI) ([]sparql.Solution, error) {
	if k.runner == nil {
		return []sparql.Solution{}, ErrNoRunner
	}
	scope := schemas.NewContextSet(contexts...)
	if scope.IsEmpty() {
		scope = ExtractContexts(query)
	}
	sols, err := k.runner.ExecuteQueryAsList(ctx, query, scope)
	if sols == nil || err != nil {
		sols = []sparql.Solution{}
	}
	return sols, k.queryDone(queryList, scope, err)
}

// ExecuteQueryAsIterator streams the solutions of query. The result is never
// nil and must be closed.
func (k *KAO) ExecuteQueryAsIterator(ctx context.Context, query string, contexts ...schemas.IRI) (sparql.Results, error) {
	if k.runner == nil {
		return sparql.EmptyResults(), ErrNoRunner
	}
	scope := schemas.MergeContexts(schemas.NewContextSet(contexts...), ExtractContexts(query))
	res, err := k.runner.ExecuteQueryAsIterator(ctx, query, scope)
	if err != nil || res == nil {
		if res != nil {
			_ = res.Close()
		}
		res = sparql.EmptyResults()
	}
	return res, k.queryDone(queryIterator, scope, err)
}

// ExecuteBooleanQuery answers an ASK query. It is false on error.
func (k *KAO) ExecuteBooleanQuery(ctx context.Context, query string) (bool, error) {
	if k.runner == nil {
		return false, ErrNoRunner
	}
	scope := ExtractContexts(query)
	ok, err := k.runner.ExecuteBooleanQuery(ctx, query, scope)
	if err != nil {
		ok = false
	}
	return ok, k.queryDone(queryBoolean, scope, err)
}

// ExecuteSPARQLUpdateQuery runs a write query. The runner applies it in its
// own transaction. It reports false on error.
func (k *KAO) ExecuteSPARQLUpdateQuery(ctx context.Context, query string) (bool, error) {
	if k.runner == nil {
		return false, ErrNoRunner
	}
	scope := ExtractContexts(query)
	ok, err := k.runner.ExecuteUpdateQuery(ctx, query, scope)
	if err != nil {
		ok = false
	}
	return ok, k.queryDone(queryUpdate, scope, err)
}

func (k *KAO) queryDone(kind string, scope schemas.ContextSet, err error) error {
	k.metrics.ObserveQuery(kind, err)
	if err == nil {
		return nil
	}
	k.logger.Error("Query failed",
		zap.String("kind", kind),
		zap.Strings("contexts", scope.Strings()),
		zap.Error(err))
	return fmt.Errorf("kao %s query: %w", kind, err)
}
