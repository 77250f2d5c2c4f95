package store

import "time"

// Status values for the jobs state machine (spec.md §4.7).
const (
	StatusPending     = "pending"
	StatusTranslating = "translating"
	StatusDone        = "done"
	StatusFailed      = "failed"
)

// Job is one row of the jobs table (spec.md §3.1).
type Job struct {
	ID string `gorm:"type:text;primaryKey" json:"id"`

	VideoID    string `gorm:"size:16;not null;uniqueIndex:idx_jobs_key" json:"videoId"`
	Lang       string `gorm:"size:16;not null;uniqueIndex:idx_jobs_key" json:"lang"`
	TargetLang string `gorm:"size:16;not null;uniqueIndex:idx_jobs_key" json:"targetLang"`
	Track      string `gorm:"size:16;not null;uniqueIndex:idx_jobs_key" json:"track"`
	Fmt        string `gorm:"size:16;not null;uniqueIndex:idx_jobs_key" json:"fmt"`
	SourceHash string `gorm:"size:32;not null;uniqueIndex:idx_jobs_key" json:"sourceHash"`

	Status string `gorm:"size:16;not null;index:idx_jobs_status_retry,priority:1" json:"status"`

	RetryCount  int    `json:"retryCount"`
	NextRetryAt *int64 `gorm:"index:idx_jobs_status_retry,priority:2" json:"nextRetryAt"`

	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`

	Bilingual string `json:"bilingual"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
	ExpiresAt int64 `gorm:"index:idx_jobs_expires" json:"expiresAt"`
}

func (Job) TableName() string { return "jobs" }

// Metadata holds the small key->string counters table (spec.md §3.1).
type Metadata struct {
	Key   string `gorm:"primaryKey;size:64" json:"key"`
	Value string `json:"value"`
}

func (Metadata) TableName() string { return "metadata" }

const (
	CounterCacheHits   = "cache_hits"
	CounterCacheMisses = "cache_misses"
	CounterCacheVer    = "cache_version"
)

func nowMs() int64 {
	return time.Now().UnixMilli()
}
