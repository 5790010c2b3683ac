package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/config"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

const (
	g1 schemas.IRI = "http://ex.org/g1"
	g2 schemas.IRI = "http://ex.org/g2"

	bob    schemas.IRI = "http://ex.org/Bob"
	alice  schemas.IRI = "http://ex.org/Alice"
	person schemas.IRI = "http://ex.org/Person"
	name   schemas.IRI = "http://ex.org/name"
)

func typeStatement(subject schemas.IRI) schemas.Statement {
	return schemas.Statement{Subject: subject, Predicate: schemas.RDFType, Object: schemas.NewIRITerm(person)}
}

func nameStatement(subject schemas.IRI, value string) schemas.Statement {
	return schemas.Statement{Subject: subject, Predicate: name, Object: schemas.NewLiteral(value)}
}

func newMemory(t *testing.T, max int64) *MemoryRepository {
	t.Helper()
	return NewMemoryRepository(config.MemoryConfig{MaxConnections: max}, zaptest.NewLogger(t))
}

func TestMemoryRepository_AutoCommitWrites(t *testing.T) {
	ctx := context.Background()
	repo := newMemory(t, 0)

	conn, err := repo.Connection(ctx)
	require.NoError(t, err)
	defer conn.Close(ctx)

	require.NoError(t, conn.Add(ctx, schemas.NewContextSet(g1, g2), typeStatement(bob)))
	assert.Equal(t, 2, repo.Len(), "one copy per context")

	sts, err := conn.Statements(ctx, schemas.Pattern{Subject: bob}, schemas.NewContextSet(g2))
	require.NoError(t, err)
	require.Len(t, sts, 1)
	assert.Equal(t, g2, sts[0].Context)

	all, err := conn.Statements(ctx, schemas.Pattern{Subject: bob}, schemas.EmptyContexts())
	require.NoError(t, err)
	assert.Len(t, all, 2, "empty scope reads every graph")
}

func TestMemoryRepository_AddWithoutContextsUsesDefaultGraph(t *testing.T) {
	ctx := context.Background()
	repo := newMemory(t, 0)
	conn, err := repo.Connection(ctx)
	require.NoError(t, err)
	defer conn.Close(ctx)

	require.NoError(t, conn.Add(ctx, schemas.EmptyContexts(), typeStatement(bob)))
	sts, err := conn.Statements(ctx, schemas.Pattern{}, schemas.EmptyContexts())
	require.NoError(t, err)
	require.Len(t, sts, 1)
	assert.Equal(t, schemas.IRI(""), sts[0].Context)
}

func TestMemoryRepository_TransactionIsolationAndCommit(t *testing.T) {
	ctx := context.Background()
	repo := newMemory(t, 0)

	writer, err := repo.Connection(ctx)
	require.NoError(t, err)
	defer writer.Close(ctx)
	reader, err := repo.Connection(ctx)
	require.NoError(t, err)
	defer reader.Close(ctx)

	require.NoError(t, writer.SetAutoCommit(ctx, false))
	require.NoError(t, writer.Add(ctx, schemas.NewContextSet(g1), typeStatement(bob), nameStatement(bob, "Bob")))

	// Read-your-writes inside the transaction.
	has, err := writer.Has(ctx, schemas.Pattern{Subject: bob}, schemas.NewContextSet(g1))
	require.NoError(t, err)
	assert.True(t, has)

	// Nothing leaks before commit.
	has, err = reader.Has(ctx, schemas.Pattern{Subject: bob}, schemas.EmptyContexts())
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, writer.Commit(ctx))
	has, err = reader.Has(ctx, schemas.Pattern{Subject: bob}, schemas.EmptyContexts())
	require.NoError(t, err)
	assert.True(t, has)
}

func TestMemoryRepository_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	repo := newMemory(t, 0)

	conn, err := repo.Connection(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.SetAutoCommit(ctx, false))
	require.NoError(t, conn.Add(ctx, schemas.NewContextSet(g1), typeStatement(bob)))
	require.NoError(t, conn.Rollback(ctx))
	require.NoError(t, conn.Commit(ctx))
	require.NoError(t, conn.Close(ctx))

	assert.Equal(t, 0, repo.Len())
}

func TestMemoryRepository_CloseDiscardsUncommitted(t *testing.T) {
	ctx := context.Background()
	repo := newMemory(t, 0)

	conn, err := repo.Connection(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.SetAutoCommit(ctx, false))
	require.NoError(t, conn.Add(ctx, schemas.NewContextSet(g1), typeStatement(bob)))
	require.NoError(t, conn.Close(ctx))
	require.NoError(t, conn.Close(ctx), "second close is a no-op")

	assert.Equal(t, 0, repo.Len())
	assert.Equal(t, int64(0), repo.OpenConnections())

	assert.ErrorIs(t, conn.Commit(ctx), ErrConnectionClosed)
	_, err = conn.Statements(ctx, schemas.Pattern{}, schemas.EmptyContexts())
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestMemoryRepository_RemoveScopedToContexts(t *testing.T) {
	ctx := context.Background()
	repo := newMemory(t, 0)
	conn, err := repo.Connection(ctx)
	require.NoError(t, err)
	defer conn.Close(ctx)

	require.NoError(t, conn.Add(ctx, schemas.NewContextSet(g1, g2), typeStatement(bob), nameStatement(bob, "Bob")))
	require.NoError(t, conn.Add(ctx, schemas.NewContextSet(g1), typeStatement(alice)))

	n, err := conn.Remove(ctx, schemas.Pattern{Subject: bob}, schemas.NewContextSet(g1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	remaining, err := conn.Statements(ctx, schemas.Pattern{Subject: bob}, schemas.EmptyContexts())
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	for _, st := range remaining {
		assert.Equal(t, g2, st.Context)
	}

	n, err = conn.Remove(ctx, schemas.Pattern{Subject: "http://ex.org/nobody"}, schemas.EmptyContexts())
	require.NoError(t, err)
	assert.Zero(t, n, "removing nothing is not an error")
}

func TestMemoryRepository_RemoveInsideTransactionSeesPendingAdds(t *testing.T) {
	ctx := context.Background()
	repo := newMemory(t, 0)
	conn, err := repo.Connection(ctx)
	require.NoError(t, err)
	defer conn.Close(ctx)

	require.NoError(t, conn.SetAutoCommit(ctx, false))
	require.NoError(t, conn.Add(ctx, schemas.NewContextSet(g1), nameStatement(bob, "Bob")))
	n, err := conn.Remove(ctx, schemas.Pattern{Subject: bob, Predicate: name}, schemas.NewContextSet(g1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, conn.Add(ctx, schemas.NewContextSet(g1), nameStatement(bob, "Robert")))
	require.NoError(t, conn.Commit(ctx))

	sts, err := conn.Statements(ctx, schemas.Pattern{Subject: bob}, schemas.EmptyContexts())
	require.NoError(t, err)
	require.Len(t, sts, 1)
	assert.Equal(t, "Robert", sts[0].Object.Value)
}

func TestMemoryRepository_RejectsUnboundRemoveAndIncompleteStatements(t *testing.T) {
	ctx := context.Background()
	repo := newMemory(t, 0)
	conn, err := repo.Connection(ctx)
	require.NoError(t, err)
	defer conn.Close(ctx)

	_, err = conn.Remove(ctx, schemas.Pattern{}, schemas.EmptyContexts())
	assert.ErrorIs(t, err, ErrUnboundRemove)

	err = conn.Add(ctx, schemas.EmptyContexts(), schemas.Statement{Subject: bob, Predicate: name})
	assert.Error(t, err)
}

func TestMemoryRepository_ConnectionLimits(t *testing.T) {
	ctx := context.Background()
	repo := newMemory(t, 1)

	first, err := repo.Connection(ctx)
	require.NoError(t, err)

	_, err = repo.Connection(ctx)
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.ErrorIs(t, err, ErrConnection)

	require.NoError(t, first.Close(ctx))
	second, err := repo.Connection(ctx)
	require.NoError(t, err, "slot is reusable after close")
	require.NoError(t, second.Close(ctx))

	require.NoError(t, repo.Close())
	_, err = repo.Connection(ctx)
	assert.ErrorIs(t, err, ErrRepositoryClosed)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestMemoryRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newMemory(t, 0).Connection(ctx)
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryRepository_ConcurrentSessions(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	repo := newMemory(t, 0)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := repo.Connection(ctx)
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close(ctx)
			_ = conn.SetAutoCommit(ctx, false)
			subject := schemas.IRI("http://ex.org/p" + string(rune('a'+i)))
			assert.NoError(t, conn.Add(ctx, schemas.NewContextSet(g1), typeStatement(subject), nameStatement(subject, "x")))
			assert.NoError(t, conn.Commit(ctx))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, workers*2, repo.Len())
	assert.Equal(t, int64(0), repo.OpenConnections())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, config.StoreConfig{Backend: config.BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)

	repo, err = Open(ctx, config.StoreConfig{
		Backend:  config.BackendPostgres,
		Postgres: config.PostgresConfig{URL: "postgres://localhost/kao"},
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &PostgresRepository{}, repo)

	_, err = Open(ctx, config.StoreConfig{Backend: config.BackendPostgres}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, config.StoreConfig{Backend: "oracle"}, nil)
	assert.Error(t, err)
}
