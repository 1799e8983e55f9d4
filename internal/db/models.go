package db

import (
	"encoding/json"
	"time"
)

// ScrapedRecord maps agg.scraped_records: one source's view of one entity,
// keyed by (entity_type, source_code, source_external_id).
type ScrapedRecord struct {
	ScrapedRecordID   int64           `gorm:"column:scraped_record_id;primaryKey;autoIncrement"`
	ScrapedRecordUUID string          `gorm:"column:scraped_record_uuid;type:uuid;not null;unique"`
	EntityType        string          `gorm:"column:entity_type;type:text;not null"`
	SourceCode        string          `gorm:"column:source_code;type:text;not null"`
	SourceExternalID  string          `gorm:"column:source_external_id;type:text;not null"`
	Fields            json.RawMessage `gorm:"column:fields;type:jsonb;not null"`
	RawPayload        json.RawMessage `gorm:"column:raw_payload;type:jsonb;not null"`
	HasChanges        bool            `gorm:"column:has_changes;type:boolean;not null;default:false"`
	Changes           json.RawMessage `gorm:"column:changes;type:jsonb"`
	FirstSeenAt       time.Time       `gorm:"column:first_seen_at;type:timestamptz;not null"`
	LastSeenAt        time.Time       `gorm:"column:last_seen_at;type:timestamptz;not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (ScrapedRecord) TableName() string { return "agg.scraped_records" }

// UnifiedEntity maps agg.unified_entities: the canonical, merged record.
type UnifiedEntity struct {
	EntityID     int64           `gorm:"column:entity_id;primaryKey;autoIncrement"`
	EntityUUID   string          `gorm:"column:entity_uuid;type:uuid;not null;unique"`
	EntityType   string          `gorm:"column:entity_type;type:text;not null"`
	Fields       json.RawMessage `gorm:"column:fields;type:jsonb;not null"`
	FieldSources json.RawMessage `gorm:"column:field_sources;type:jsonb;not null"`
	Status       *string         `gorm:"column:status;type:text"`
	CreatedBy    string          `gorm:"column:created_by;type:text;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (UnifiedEntity) TableName() string { return "agg.unified_entities" }

// SourceLink maps agg.source_links: the matched relation between one scraped
// record and one unified entity, carrying match confidence.
type SourceLink struct {
	SourceLinkID    int64     `gorm:"column:source_link_id;primaryKey;autoIncrement"`
	EntityID        int64     `gorm:"column:entity_id;type:bigint;not null"`
	ScrapedRecordID int64     `gorm:"column:scraped_record_id;type:bigint;not null;unique"`
	SourceCode      string    `gorm:"column:source_code;type:text;not null"`
	Confidence      float64   `gorm:"column:confidence;type:double precision;not null"`
	IsPrimary       bool      `gorm:"column:is_primary;type:boolean;not null;default:false"`
	MatchedAt       time.Time `gorm:"column:matched_at;type:timestamptz;not null"`
}

func (SourceLink) TableName() string { return "agg.source_links" }

// AuditLogEntry maps agg.audit_logs. Append-only.
type AuditLogEntry struct {
	AuditLogID  int64           `gorm:"column:audit_log_id;primaryKey;autoIncrement"`
	EntityType  string          `gorm:"column:entity_type;type:text;not null"`
	EntityID    int64           `gorm:"column:entity_id;type:bigint;not null"`
	Action      string          `gorm:"column:action;type:text;not null"`
	Changes     json.RawMessage `gorm:"column:changes;type:jsonb"`
	PerformedBy string          `gorm:"column:performed_by;type:text;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (AuditLogEntry) TableName() string { return "agg.audit_logs" }

// EventStateHistory maps agg.event_state_history: one row per executed
// status transition, written in the same transaction as the status update.
type EventStateHistory struct {
	HistoryID  int64     `gorm:"column:history_id;primaryKey;autoIncrement"`
	EntityID   int64     `gorm:"column:entity_id;type:bigint;not null"`
	FromStatus string    `gorm:"column:from_status;type:text;not null"`
	ToStatus   string    `gorm:"column:to_status;type:text;not null"`
	Actor      string    `gorm:"column:actor;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (EventStateHistory) TableName() string { return "agg.event_state_history" }

// ScrapeRun maps agg.scrape_runs: bookkeeping for one orchestrated run.
type ScrapeRun struct {
	RunID          int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID        string     `gorm:"column:run_uuid;type:uuid;not null;unique"`
	Sources        string     `gorm:"column:sources;type:text;not null"`
	StartedAt      time.Time  `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt     *time.Time `gorm:"column:finished_at;type:timestamptz"`
	Status         string     `gorm:"column:status;type:text;not null;default:running"`
	RecordsFetched int        `gorm:"column:records_fetched;type:integer;not null;default:0"`
	Inserted       int        `gorm:"column:inserted;type:integer;not null;default:0"`
	Updated        int        `gorm:"column:updated;type:integer;not null;default:0"`
	Linked         int        `gorm:"column:linked;type:integer;not null;default:0"`
	Created        int        `gorm:"column:created;type:integer;not null;default:0"`
	ErrorCount     int        `gorm:"column:error_count;type:integer;not null;default:0"`
	ErrorMessage   *string    `gorm:"column:error_message;type:text"`
}

func (ScrapeRun) TableName() string { return "agg.scrape_runs" }

func autoMigrateModels() []any {
	return []any{
		&ScrapedRecord{},
		&UnifiedEntity{},
		&SourceLink{},
		&AuditLogEntry{},
		&EventStateHistory{},
		&ScrapeRun{},
	}
}
