package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/beam"
	"github.com/xraph/wormhole/channel"
	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/id"
	wormholestore "github.com/xraph/wormhole/store"
	"github.com/xraph/wormhole/user"
)

// compile-time interface check
var _ wormholestore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("wormhole/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("wormhole/sqlite: %w: %w", wormhole.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Beam Store ====================

func (s *Store) CreateBeam(ctx context.Context, b *beam.Beam) error {
	res, err := s.sdb.NewInsert(toBeamModel(b)).
		OnConflict("(name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, wormhole.ErrBeamExists)
}

func (s *Store) GetBeam(ctx context.Context, name string) (*beam.Beam, error) {
	m := new(beamModel)
	err := s.sdb.NewSelect(m).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, wormhole.ErrBeamNotFound
		}
		return nil, err
	}
	return fromBeamModel(m)
}

func (s *Store) UpdateBeam(ctx context.Context, b *beam.Beam) error {
	m := toBeamModel(b)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, wormhole.ErrBeamNotFound)
}

func (s *Store) ListBeams(ctx context.Context) ([]*beam.Beam, error) {
	var models []beamModel
	if err := s.sdb.NewSelect(&models).
		OrderExpr("name ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*beam.Beam, len(models))
	for i := range models {
		b, err := fromBeamModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

// ==================== Wormhole Store ====================

func (s *Store) CreateWormhole(ctx context.Context, w *channel.Wormhole) error {
	res, err := s.sdb.NewInsert(toWormholeModel(w)).
		OnConflict("(channel_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, wormhole.ErrWormholeExists)
}

func (s *Store) GetWormhole(ctx context.Context, channelID string) (*channel.Wormhole, error) {
	m := new(wormholeModel)
	err := s.sdb.NewSelect(m).
		Where("channel_id = ?", channelID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, wormhole.ErrWormholeNotFound
		}
		return nil, err
	}
	return fromWormholeModel(m)
}

func (s *Store) UpdateWormhole(ctx context.Context, w *channel.Wormhole) error {
	m := toWormholeModel(w)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, wormhole.ErrWormholeNotFound)
}

func (s *Store) DeleteWormhole(ctx context.Context, channelID string) error {
	res, err := s.sdb.NewDelete((*wormholeModel)(nil)).
		Where("channel_id = ?", channelID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, wormhole.ErrWormholeNotFound)
}

func (s *Store) ListWormholes(ctx context.Context, beamName string) ([]*channel.Wormhole, error) {
	var models []wormholeModel
	q := s.sdb.NewSelect(&models)
	if beamName != "" {
		q = q.Where("beam = ?", beamName)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*channel.Wormhole, len(models))
	for i := range models {
		w, err := fromWormholeModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = w
	}
	return result, nil
}

func (s *Store) IncrementMessages(ctx context.Context, channelID string) error {
	res, err := s.sdb.NewUpdate((*wormholeModel)(nil)).
		Set("messages = messages + 1").
		Where("channel_id = ?", channelID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, wormhole.ErrWormholeNotFound)
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	taken, err := s.nicknameTaken(ctx, u.Nickname, u.AccountID)
	if err != nil {
		return err
	}
	if taken {
		return wormhole.ErrNicknameTaken
	}

	res, err := s.sdb.NewInsert(toUserModel(u)).
		OnConflict("(account_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, wormhole.ErrUserExists)
}

func (s *Store) GetUser(ctx context.Context, accountID int64) (*user.User, error) {
	m := new(userModel)
	err := s.sdb.NewSelect(m).
		Where("account_id = ?", accountID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, wormhole.ErrUserNotFound
		}
		return nil, err
	}
	return fromUserModel(m)
}

func (s *Store) GetUserByNickname(ctx context.Context, nickname string) (*user.User, error) {
	m := new(userModel)
	err := s.sdb.NewSelect(m).
		Where("nickname = ?", nickname).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, wormhole.ErrUserNotFound
		}
		return nil, err
	}
	return fromUserModel(m)
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	taken, err := s.nicknameTaken(ctx, u.Nickname, u.AccountID)
	if err != nil {
		return err
	}
	if taken {
		return wormhole.ErrNicknameTaken
	}

	m := toUserModel(u)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, wormhole.ErrUserNotFound)
}

func (s *Store) DeleteUser(ctx context.Context, accountID int64) error {
	res, err := s.sdb.NewDelete((*userModel)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, wormhole.ErrUserNotFound)
}

func (s *Store) ListUsers(ctx context.Context) ([]*user.User, error) {
	var models []userModel
	if err := s.sdb.NewSelect(&models).
		OrderExpr("account_id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*user.User, len(models))
	for i := range models {
		u, err := fromUserModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = u
	}
	return result, nil
}

// nicknameTaken reports whether another account already holds nickname.
func (s *Store) nicknameTaken(ctx context.Context, nickname string, owner int64) (bool, error) {
	count, err := s.sdb.NewSelect((*userModel)(nil)).
		Where("nickname = ?", nickname).
		Where("account_id != ?", owner).
		Count(ctx)
	return count > 0, err
}

// ==================== Failure Store ====================

func (s *Store) RecordFailure(ctx context.Context, entry *failure.Entry) error {
	_, err := s.sdb.NewInsert(toFailureModel(entry)).Exec(ctx)
	return err
}

func (s *Store) GetFailure(ctx context.Context, failureID id.ID) (*failure.Entry, error) {
	m := new(failureModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", failureID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, wormhole.ErrFailureNotFound
		}
		return nil, err
	}
	return fromFailureModel(m)
}

func (s *Store) ListFailures(ctx context.Context, opts failure.ListOpts) ([]*failure.Entry, error) {
	var models []failureModel
	q := s.sdb.NewSelect(&models)

	if opts.Beam != "" {
		q = q.Where("beam = ?", opts.Beam)
	}
	if opts.ChannelID != "" {
		q = q.Where("channel_id = ?", opts.ChannelID)
	}
	if opts.From != nil {
		q = q.Where("failed_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("failed_at <= ?", *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("failed_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*failure.Entry, len(models))
	for i := range models {
		entry, err := fromFailureModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = entry
	}
	return result, nil
}

func (s *Store) CountFailures(ctx context.Context) (int64, error) {
	count, err := s.sdb.NewSelect((*failureModel)(nil)).
		Count(ctx)
	return count, err
}

func (s *Store) PurgeFailures(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*failureModel)(nil)).
		Where("failed_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// rowsAffected is satisfied by the results of grove write queries.
type rowsAffected interface {
	RowsAffected() (int64, error)
}

// expectRow returns missing when res affected no rows.
func expectRow(res rowsAffected, missing error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return missing
	}
	return nil
}
