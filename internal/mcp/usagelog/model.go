package usagelog

import (
	"time"

	gutils "github.com/Laisky/go-utils/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status enumerations for recorded tool calls.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Record persists a single tool invocation.
type Record struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ToolName       string    `gorm:"type:varchar(64);not null;index"`
	Status         string    `gorm:"type:varchar(16);not null;index"`
	ErrorKind      string    `gorm:"type:varchar(32);index"`
	DurationMillis int64     `gorm:"type:bigint"`
	Parameters     []byte    `gorm:"type:jsonb"`
	ErrorMessage   string    `gorm:"type:text"`
	OccurredAt     time.Time `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BeforeCreate ensures a UUID primary key is assigned before persistence.
func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = gutils.UUID7Bytes()
	}
	return nil
}

// RecordInput captures the information required to persist a tool invocation.
type RecordInput struct {
	ToolName     string
	Status       string
	ErrorKind    string
	Duration     time.Duration
	Parameters   map[string]any
	ErrorMessage string
	OccurredAt   time.Time
}
