// Package store is the embedded, single-process persistence layer: a typed,
// indexed jobs table keyed by the content fingerprint, plus a small metadata
// table for running counters (spec.md §3, §4.3).
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RequestKey identifies the semantic tuple that two requests must share to
// demand equal output (spec.md §3.1).
type RequestKey struct {
	VideoID    string
	Lang       string
	TargetLang string
	Track      string
	Fmt        string
}

// Store wraps the embedded SQLite database.
type Store struct {
	db *gorm.DB
}

// Connect opens (creating if absent) the embedded database at path, with
// write-ahead logging and foreign keys enabled per spec.md §4.3.
func Connect(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_synchronous=NORMAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Migrate creates the jobs and metadata tables if they do not already exist.
func Migrate(s *Store) error {
	return s.db.AutoMigrate(&Job{}, &Metadata{})
}

var ErrNoActiveJob = errors.New("store: no active job")

// FindActive returns the active (non-done, non-failed) job for
// (RequestKey, sourceHash), if one exists.
func (s *Store) FindActive(key RequestKey, sourceHash string) (*Job, error) {
	var job Job
	err := s.db.Where(
		"video_id = ? AND lang = ? AND target_lang = ? AND track = ? AND fmt = ? AND source_hash = ? AND status IN ?",
		key.VideoID, key.Lang, key.TargetLang, key.Track, key.Fmt, sourceHash,
		[]string{StatusPending, StatusTranslating},
	).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveJob
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreatePending upserts a new pending job row for (RequestKey, sourceHash).
// The composite unique index makes duplicate creation harmless: a concurrent
// racer's insert is absorbed without creating a second active job.
func (s *Store) CreatePending(key RequestKey, sourceHash string, ttl time.Duration) (*Job, error) {
	now := nowMs()
	job := &Job{
		ID:         uuid.New().String(),
		VideoID:    key.VideoID,
		Lang:       key.Lang,
		TargetLang: key.TargetLang,
		Track:      key.Track,
		Fmt:        key.Fmt,
		SourceHash: sourceHash,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now + ttl.Milliseconds(),
	}

	err := s.db.Where(
		"video_id = ? AND lang = ? AND target_lang = ? AND track = ? AND fmt = ? AND source_hash = ?",
		key.VideoID, key.Lang, key.TargetLang, key.Track, key.Fmt, sourceHash,
	).FirstOrCreate(job).Error
	if err != nil {
		return nil, err
	}
	return job, nil
}

// MostRecentDone returns the most recent done, unexpired row for a
// RequestKey, regardless of sourceHash (spec.md §4.4).
func (s *Store) MostRecentDone(key RequestKey) (*Job, error) {
	var job Job
	err := s.db.Where(
		"video_id = ? AND lang = ? AND target_lang = ? AND track = ? AND fmt = ? AND status = ? AND expires_at >= ?",
		key.VideoID, key.Lang, key.TargetLang, key.Track, key.Fmt, StatusDone, nowMs(),
	).Order("updated_at DESC").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveJob
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkTranslating transitions a job from pending to translating.
func (s *Store) MarkTranslating(id string) error {
	return s.db.Model(&Job{}).Where("id = ?", id).Updates(map[string]any{
		"status":     StatusTranslating,
		"updated_at": nowMs(),
	}).Error
}

// MarkDone transitions a job to done with its rendered bilingual output.
func (s *Store) MarkDone(id, bilingual string) error {
	return s.db.Model(&Job{}).Where("id = ?", id).Updates(map[string]any{
		"status":     StatusDone,
		"bilingual":  bilingual,
		"updated_at": nowMs(),
	}).Error
}

// MarkFailed records a failed attempt and schedules the next retry, or
// leaves the job in the terminal failed state if retries are exhausted
// (spec.md §4.7).
func (s *Store) MarkFailed(id string, retryCount int, nextStatus string, nextRetryAt *int64, errCode, errMsg string) error {
	return s.db.Model(&Job{}).Where("id = ?", id).Updates(map[string]any{
		"status":        nextStatus,
		"retry_count":   retryCount,
		"next_retry_at": nextRetryAt,
		"error_code":    errCode,
		"error_message": errMsg,
		"updated_at":    nowMs(),
	}).Error
}

// DueForRetry returns pending jobs whose nextRetryAt has elapsed or was never
// set, oldest first.
func (s *Store) DueForRetry(limit int) ([]Job, error) {
	var jobs []Job
	now := nowMs()
	err := s.db.Where("status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)", StatusPending, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// DeleteExpired deletes rows whose expiresAt has elapsed; it never touches
// live rows (spec.md §3.2).
func (s *Store) DeleteExpired() (int64, error) {
	result := s.db.Where("expires_at < ?", nowMs()).Delete(&Job{})
	return result.RowsAffected, result.Error
}

// IncrCounter atomically increments a metadata counter, creating it at 1 if
// absent.
func (s *Store) IncrCounter(key string) error {
	return s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, '1') ON CONFLICT(key) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)",
		key,
	).Error
}

// GetCounter returns a metadata counter's current value.
func (s *Store) GetCounter(key string) (int64, error) {
	var m Metadata
	err := s.db.Where("key = ?", key).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v int64
	_, err = fmt.Sscanf(m.Value, "%d", &v)
	return v, err
}

// CountByStatus returns the number of jobs in the given status, for health
// introspection (spec.md §6 "/health").
func (s *Store) CountByStatus(status string) (int64, error) {
	var count int64
	err := s.db.Model(&Job{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// RecentByVideo returns the most recent jobs for a video id, for admin
// introspection (spec.md §6 "/admin/stats").
func (s *Store) RecentByVideo(videoID string, limit int) ([]Job, error) {
	var jobs []Job
	err := s.db.Where("video_id = ?", videoID).Order("created_at DESC").Limit(limit).Find(&jobs).Error
	return jobs, err
}

// Recent returns the most recently created jobs across all videos.
func (s *Store) Recent(limit int) ([]Job, error) {
	var jobs []Job
	err := s.db.Order("created_at DESC").Limit(limit).Find(&jobs).Error
	return jobs, err
}

// Ping verifies database connectivity for health checks.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
