package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/id"
)

// RecordFailure appends an entry to the failure log.
func (s *Store) RecordFailure(ctx context.Context, entry *failure.Entry) error {
	m := toFailureModel(entry)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("wormhole/mongo: record failure: %w", err)
	}

	return nil
}

// GetFailure returns a failure entry by ID.
func (s *Store) GetFailure(ctx context.Context, failureID id.ID) (*failure.Entry, error) {
	var m failureModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": failureID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, wormhole.ErrFailureNotFound
		}

		return nil, fmt.Errorf("wormhole/mongo: get failure: %w", err)
	}

	return fromFailureModel(&m)
}

// ListFailures returns entries newest first, optionally filtered.
func (s *Store) ListFailures(ctx context.Context, opts failure.ListOpts) ([]*failure.Entry, error) {
	var models []failureModel

	filter := bson.M{}
	if opts.Beam != "" {
		filter["beam"] = opts.Beam
	}
	if opts.ChannelID != "" {
		filter["channel_id"] = opts.ChannelID
	}

	failedAt := bson.M{}
	if opts.From != nil {
		failedAt["$gte"] = *opts.From
	}
	if opts.To != nil {
		failedAt["$lte"] = *opts.To
	}
	if len(failedAt) > 0 {
		filter["failed_at"] = failedAt
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "failed_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("wormhole/mongo: list failures: %w", err)
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

// CountFailures returns the total number of failure entries.
func (s *Store) CountFailures(ctx context.Context) (int64, error) {
	count, err := s.mdb.NewFind((*failureModel)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("wormhole/mongo: count failures: %w", err)
	}

	return count, nil
}

// PurgeFailures deletes entries older than a threshold.
func (s *Store) PurgeFailures(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*failureModel)(nil)).
		Many().
		Filter(bson.M{"failed_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("wormhole/mongo: purge failures: %w", err)
	}

	return res.DeletedCount(), nil
}
