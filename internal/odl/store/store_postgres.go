package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"circulation/internal/odl/models"
	"circulation/pkg/platform/sentinel"
	"circulation/pkg/platform/tx"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var dialect = goqu.Dialect("postgres")

const (
	lockLicensesQuery = `
		SELECT id, identifier, license_pool_id, status, checkouts_left,
		       checkouts_available, terms_concurrency, expires
		FROM licenses
		WHERE license_pool_id = $1
		ORDER BY id
		FOR UPDATE`

	poolForUpdateQuery = `
		SELECT id, collection_id, identifier, licenses_owned, licenses_available,
		       licenses_reserved, patrons_in_hold_queue, open_access, unlimited_access
		FROM license_pools
		WHERE id = $1
		FOR UPDATE`

	updatePoolQuery = `
		UPDATE license_pools
		SET licenses_owned = $2, licenses_available = $3,
		    licenses_reserved = $4, patrons_in_hold_queue = $5
		WHERE id = $1`

	updateHoldQuery   = `UPDATE holds SET position = $2, "end" = $3 WHERE id = $1`
	deleteHoldQuery   = `DELETE FROM holds WHERE id = $1`
	markNotifiedQuery = `UPDATE holds SET patron_last_notified = $2 WHERE id = $1`
	collectionQuery   = `SELECT id, name, protocol, default_reservation_period FROM collections WHERE id = $1`

	collectionsByProtocol = `
		SELECT id, name, protocol, default_reservation_period
		FROM collections
		WHERE protocol = ANY($1)
		ORDER BY id`

	libraryQuery = `SELECT id, short_name, name FROM libraries WHERE id = $1`
	patronQuery  = `SELECT id, library_id, authorization_identifier FROM patrons WHERE id = $1`

	poolQuery = `
		SELECT id, collection_id, identifier, licenses_owned, licenses_available,
		       licenses_reserved, patrons_in_hold_queue, open_access, unlimited_access
		FROM license_pools
		WHERE id = $1`
)

// PostgresStore persists licenses, pools and holds in PostgreSQL.
// Locking reads require a transaction opened through RunInTx.
type PostgresStore struct {
	*tx.SQLRunner
	db *sqlx.DB
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sqlx.DB, txTimeout time.Duration) *PostgresStore {
	return &PostgresStore{
		SQLRunner: tx.NewSQLRunner(db, txTimeout),
		db:        db,
	}
}

// queryer returns the transaction in ctx, falling back to the pool for
// non-locking reads.
func (s *PostgresStore) queryer(ctx context.Context) sqlx.ExtContext {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) lockingTx(ctx context.Context) (*sqlx.Tx, error) {
	t, ok := tx.From(ctx)
	if !ok {
		return nil, sentinel.ErrNoTransaction
	}
	return t, nil
}

func (s *PostgresStore) LockLicenses(ctx context.Context, poolID int64) ([]models.License, error) {
	t, err := s.lockingTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock licenses: %w", err)
	}
	var licenses []models.License
	if err := t.SelectContext(ctx, &licenses, lockLicensesQuery, poolID); err != nil {
		return nil, fmt.Errorf("lock licenses for pool %d: %w", poolID, err)
	}
	return licenses, nil
}

func (s *PostgresStore) GetLicensePoolForUpdate(ctx context.Context, poolID int64) (*models.LicensePool, error) {
	t, err := s.lockingTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("get license pool for update: %w", err)
	}
	var pool models.LicensePool
	if err := t.GetContext(ctx, &pool, poolForUpdateQuery, poolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("license pool %d: %w", poolID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get license pool %d: %w", poolID, err)
	}
	return &pool, nil
}

func (s *PostgresStore) UpdateLicensePoolAvailability(ctx context.Context, pool *models.LicensePool) error {
	res, err := s.queryer(ctx).ExecContext(ctx, updatePoolQuery,
		pool.ID, pool.LicensesOwned, pool.LicensesAvailable, pool.LicensesReserved, pool.PatronsInHoldQueue)
	if err != nil {
		return fmt.Errorf("update license pool %d: %w", pool.ID, err)
	}
	return requireRow(res, "license pool", pool.ID)
}

// holdsDataset selects hold rows joined with the owning patron's library.
func holdsDataset() *goqu.SelectDataset {
	return dialect.From(goqu.T("holds").As("h")).
		Join(goqu.T("patrons").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("h.patron_id")))).
		Select(
			goqu.I("h.id"),
			goqu.I("h.patron_id"),
			goqu.I("p.library_id"),
			goqu.I("h.license_pool_id"),
			goqu.I("h.position"),
			goqu.I("h.start"),
			goqu.I("h.end"),
			goqu.I("h.patron_last_notified"),
		).
		Prepared(true)
}

func (s *PostgresStore) selectHolds(ctx context.Context, ds *goqu.SelectDataset) ([]models.Hold, error) {
	t, err := s.lockingTx(ctx)
	if err != nil {
		return nil, err
	}
	query, args, err := ds.ForUpdate(exp.Wait, goqu.T("h")).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build hold query: %w", err)
	}
	var holds []models.Hold
	if err := t.SelectContext(ctx, &holds, query, args...); err != nil {
		return nil, err
	}
	return holds, nil
}

func (s *PostgresStore) ActiveHoldsForUpdate(ctx context.Context, poolID int64, now time.Time) ([]models.Hold, error) {
	ds := holdsDataset().
		Where(
			goqu.I("h.license_pool_id").Eq(poolID),
			goqu.Or(goqu.I("h.end").IsNull(), goqu.I("h.end").Gte(now)),
		).
		Order(goqu.I("h.start").Asc(), goqu.I("h.id").Asc())
	holds, err := s.selectHolds(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("active holds for pool %d: %w", poolID, err)
	}
	return holds, nil
}

func (s *PostgresStore) ExpiredPoolHoldsForUpdate(ctx context.Context, poolID int64, now time.Time) ([]models.Hold, error) {
	ds := holdsDataset().
		Where(
			goqu.I("h.license_pool_id").Eq(poolID),
			goqu.I("h.position").Eq(0),
			goqu.I("h.end").Lt(now),
		).
		Order(goqu.I("h.id").Asc())
	holds, err := s.selectHolds(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("expired holds for pool %d: %w", poolID, err)
	}
	return holds, nil
}

func (s *PostgresStore) ExpiredHoldsForUpdate(ctx context.Context, collectionID int64, now time.Time, limit int) ([]models.Hold, error) {
	ds := holdsDataset().
		Join(goqu.T("license_pools").As("lp"), goqu.On(goqu.I("lp.id").Eq(goqu.I("h.license_pool_id")))).
		Where(
			goqu.I("lp.collection_id").Eq(collectionID),
			goqu.I("h.position").Eq(0),
			goqu.I("h.end").Lt(now),
		).
		Order(goqu.I("h.id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	holds, err := s.selectHolds(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("expired holds for collection %d: %w", collectionID, err)
	}
	return holds, nil
}

func (s *PostgresStore) GetHoldForUpdate(ctx context.Context, holdID int64) (*models.Hold, error) {
	holds, err := s.selectHolds(ctx, holdsDataset().Where(goqu.I("h.id").Eq(holdID)))
	if err != nil {
		return nil, fmt.Errorf("get hold %d: %w", holdID, err)
	}
	if len(holds) == 0 {
		return nil, fmt.Errorf("hold %d: %w", holdID, sentinel.ErrNotFound)
	}
	return &holds[0], nil
}

func (s *PostgresStore) UpdateHold(ctx context.Context, hold models.Hold) error {
	res, err := s.queryer(ctx).ExecContext(ctx, updateHoldQuery, hold.ID, hold.Position, hold.End)
	if err != nil {
		return fmt.Errorf("update hold %d: %w", hold.ID, err)
	}
	return requireRow(res, "hold", hold.ID)
}

func (s *PostgresStore) DeleteHold(ctx context.Context, holdID int64) error {
	res, err := s.queryer(ctx).ExecContext(ctx, deleteHoldQuery, holdID)
	if err != nil {
		return fmt.Errorf("delete hold %d: %w", holdID, err)
	}
	return requireRow(res, "hold", holdID)
}

func (s *PostgresStore) MarkPatronNotified(ctx context.Context, holdID int64, at time.Time) error {
	res, err := s.queryer(ctx).ExecContext(ctx, markNotifiedQuery, holdID, at)
	if err != nil {
		return fmt.Errorf("mark hold %d notified: %w", holdID, err)
	}
	return requireRow(res, "hold", holdID)
}

func (s *PostgresStore) GetCollection(ctx context.Context, collectionID int64) (*models.Collection, error) {
	var c models.Collection
	if err := sqlx.GetContext(ctx, s.queryer(ctx), &c, collectionQuery, collectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("collection %d: %w", collectionID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get collection %d: %w", collectionID, err)
	}
	return &c, nil
}

func (s *PostgresStore) LicensePoolIDsWithHolds(ctx context.Context, collectionID, afterID int64, limit int) ([]int64, error) {
	ds := dialect.From(goqu.T("license_pools").As("lp")).
		Join(goqu.T("holds").As("h"), goqu.On(goqu.I("h.license_pool_id").Eq(goqu.I("lp.id")))).
		Select(goqu.I("lp.id")).
		Distinct().
		Where(
			goqu.I("lp.collection_id").Eq(collectionID),
			goqu.I("lp.id").Gt(afterID),
		).
		Order(goqu.I("lp.id").Asc()).
		Prepared(true)
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build pool batch query: %w", err)
	}
	var ids []int64
	if err := sqlx.SelectContext(ctx, s.queryer(ctx), &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list pools with holds for collection %d: %w", collectionID, err)
	}
	return ids, nil
}

func (s *PostgresStore) ResolveEvent(ctx context.Context, event models.CirculationEvent) (*models.ResolvedEvent, error) {
	q := s.queryer(ctx)
	resolved := &models.ResolvedEvent{Type: event.Type, OccurredAt: event.OccurredAt}

	if err := sqlx.GetContext(ctx, q, &resolved.Library, libraryQuery, event.LibraryID); err != nil {
		return nil, notFoundOr(err, "library", event.LibraryID)
	}
	if err := sqlx.GetContext(ctx, q, &resolved.LicensePool, poolQuery, event.LicensePoolID); err != nil {
		return nil, notFoundOr(err, "license pool", event.LicensePoolID)
	}
	var patron models.Patron
	err := sqlx.GetContext(ctx, q, &patron, patronQuery, event.PatronID)
	switch {
	case err == nil:
		resolved.Patron = &patron
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("resolve patron %d: %w", event.PatronID, err)
	}
	return resolved, nil
}

func (s *PostgresStore) ListCollections(ctx context.Context, protocols []string) ([]models.Collection, error) {
	var collections []models.Collection
	if err := sqlx.SelectContext(ctx, s.queryer(ctx), &collections, collectionsByProtocol, pq.Array(protocols)); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return collections, nil
}

func notFoundOr(err error, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", entity, id, sentinel.ErrNotFound)
	}
	return fmt.Errorf("resolve %s %d: %w", entity, id, err)
}

// requireRow maps a zero-row update to ErrStale: the row vanished between the
// locking read and the write.
func requireRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d rows affected: %w", entity, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, sentinel.ErrStale)
	}
	return nil
}
