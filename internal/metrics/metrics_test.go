package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ObserveSession(t *testing.T) {
	r := NewRegistry("kao_test")

	r.ObserveSession("create", OutcomeCommitted, 5*time.Millisecond)
	r.ObserveSession("create", OutcomeCommitted, time.Millisecond)
	r.ObserveSession("create", OutcomeRolledBack, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.SessionsTotal.WithLabelValues("create", OutcomeCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SessionsTotal.WithLabelValues("create", OutcomeRolledBack)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.SessionDuration))
}

func TestRegistry_ObserveQuery(t *testing.T) {
	r := NewRegistry("kao_test")

	r.ObserveQuery("list", nil)
	r.ObserveQuery("list", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.QueriesTotal.WithLabelValues("list", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.QueriesTotal.WithLabelValues("list", OutcomeError)))

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveSession("create", OutcomeCommitted, time.Millisecond)
		r.ObserveQuery("list", nil)
	})
}
