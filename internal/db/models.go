package db

import "time"

// Article maps clip.articles. The dedup columns are all text: simhash is the
// decimal form of an unsigned 64-bit fingerprint (empty when the article had
// no tokens) and published_at is an RFC3339 UTC string (empty when the feed
// date was unparseable). Rows are append-only; id preserves insertion order
// and is what the recent-fingerprint window is cut from.
type Article struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PublishedAt  string    `gorm:"column:published_at;type:text;not null;default:''"`
	Source       string    `gorm:"column:source;type:text;not null"`
	Title        string    `gorm:"column:title;type:text;not null"`
	URL          string    `gorm:"column:url;type:text;not null"`
	URLCanonical string    `gorm:"column:url_canonical;type:text;not null"`
	Tags         string    `gorm:"column:tags;type:text;not null;default:''"`
	TitleHash    string    `gorm:"column:title_hash;type:text;not null"`
	Simhash      string    `gorm:"column:simhash;type:text;not null;default:''"`
	DuplicateOf  string    `gorm:"column:duplicate_of;type:text;not null;default:''"`
	Summary      string    `gorm:"column:summary;type:text;not null;default:''"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "clip.articles" }

// RunMeta maps clip.run_meta, the key-value store for pipeline settings and
// last-run bookkeeping.
type RunMeta struct {
	Key       string    `gorm:"column:key;type:text;primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (RunMeta) TableName() string { return "clip.run_meta" }

// IngestRun maps clip.ingest_runs, the per-run ledger.
type IngestRun struct {
	RunID          int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	StartedAt      time.Time  `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt     *time.Time `gorm:"column:finished_at;type:timestamptz"`
	Status         string     `gorm:"column:status;type:text;not null;default:running"`
	SourcesScanned int        `gorm:"column:sources_scanned;type:integer;not null;default:0"`
	ItemsSeen      int        `gorm:"column:items_seen;type:integer;not null;default:0"`
	ItemsInserted  int        `gorm:"column:items_inserted;type:integer;not null;default:0"`
	NearDuplicates int        `gorm:"column:near_duplicates;type:integer;not null;default:0"`
	ErrorMessage   *string    `gorm:"column:error_message;type:text"`
}

func (IngestRun) TableName() string { return "clip.ingest_runs" }

func autoMigrateModels() []any {
	return []any{
		&Article{},
		&RunMeta{},
		&IngestRun{},
	}
}
