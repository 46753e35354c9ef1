package monitor

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/opspulse/internal/domain"
	"gorm.io/gorm"
)

// ErrNoData is returned when the snapshot series is empty.
var ErrNoData = errors.New("no metric data")

// QueryFilter narrows a history query to a time range. Nil bounds are open.
type QueryFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
}

var sortableColumns = map[string]string{
	"timestamp":  "timestamp",
	"id":         "id",
	"created_at": "created_at",
}

// Store is the append-only persistence boundary for snapshots. Rows are
// inserted once and never updated.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Save inserts one snapshot. The error is reported to the caller; the
// collector decides the drop policy.
func (s *Store) Save(snap *domain.MetricSnapshot) error {
	if err := s.db.Create(snap).Error; err != nil {
		return errors.Wrap(err, "save metric snapshot")
	}
	return nil
}

// Latest returns the most recent snapshot, or ErrNoData.
func (s *Store) Latest() (*domain.MetricSnapshot, error) {
	var snap domain.MetricSnapshot
	err := s.db.Order("timestamp DESC").First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, errors.Wrap(err, "query latest snapshot")
	}
	return &snap, nil
}

// RangeSince returns snapshots with timestamp >= start in ascending order.
func (s *Store) RangeSince(start time.Time) ([]domain.MetricSnapshot, error) {
	var snaps []domain.MetricSnapshot
	err := s.db.Where("timestamp >= ?", start).Order("timestamp ASC").Find(&snaps).Error
	if err != nil {
		return nil, errors.Wrap(err, "query snapshot range")
	}
	return snaps, nil
}

// Query returns a filtered, sorted, paginated page plus the total matching
// count. sortBy is whitelisted; unknown columns fall back to timestamp.
func (s *Store) Query(filter QueryFilter, limit, skip int, sortBy, sortOrder string) ([]domain.MetricSnapshot, int64, error) {
	query := s.db.Model(&domain.MetricSnapshot{})
	if filter.StartDate != nil {
		query = query.Where("timestamp >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("timestamp <= ?", *filter.EndDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count snapshots")
	}

	column, ok := sortableColumns[strings.ToLower(sortBy)]
	if !ok {
		column = "timestamp"
	}
	order := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		order = "ASC"
	}

	var snaps []domain.MetricSnapshot
	err := query.Order(column + " " + order).Limit(limit).Offset(skip).Find(&snaps).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "query snapshots")
	}
	return snaps, total, nil
}

// PurgeBefore deletes snapshots older than cutoff and returns the number
// of rows removed. Retention is the only path that deletes from the series.
func (s *Store) PurgeBefore(cutoff time.Time) (int64, error) {
	res := s.db.Where("timestamp < ?", cutoff).Delete(&domain.MetricSnapshot{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "purge snapshots")
	}
	return res.RowsAffected, nil
}
