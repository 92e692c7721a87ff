//go:build integration

package migrations_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circulation/migrations"
	"circulation/pkg/testutil/containers"
)

func TestApplyIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()

	var before int
	require.NoError(t, pg.DB.GetContext(ctx, &before, `SELECT count(*) FROM schema_migrations`))
	require.Positive(t, before)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = migrations.Apply(ctx, pg.DB, nil)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}

	var after int
	require.NoError(t, pg.DB.GetContext(ctx, &after, `SELECT count(*) FROM schema_migrations`))
	assert.Equal(t, before, after)

	var exists bool
	require.NoError(t, pg.DB.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'circulation_outbox')`))
	assert.True(t, exists)
}
