package ingest

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SkippedRecord archives a usage record a run could not process, with
// the raw payload, so operators can replay or inspect it later.
type SkippedRecord struct {
	ID        snowflake.ID      `json:"id" gorm:"primaryKey"`
	Kind      string            `json:"kind" gorm:"type:text;not null;index"`
	Reason    string            `json:"reason" gorm:"type:text;not null"`
	Detail    string            `json:"detail" gorm:"type:text"`
	Record    datatypes.JSONMap `json:"record"`
	CreatedAt time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (SkippedRecord) TableName() string { return "skipped_records" }
