// Package domain holds the per-kind usage tables and the adapter
// contract the ingest runner drives them through.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CloudVMConfig describes a flavor-based cloud VM. Rows are immutable; a
// resized instance gets a new row because its flavor changes.
type CloudVMConfig struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	OrderlineID snowflake.ID `gorm:"not null;uniqueIndex:ux_cloudvm_configs,priority:1"`
	Server      string       `gorm:"type:text;not null;uniqueIndex:ux_cloudvm_configs,priority:2"`
	Hypervisor  string       `gorm:"type:text"`
	Flavor      string       `gorm:"type:text;not null;uniqueIndex:ux_cloudvm_configs,priority:3"`
	VCPUs       int          `gorm:"column:vcpus;not null"`
	RAM         int          `gorm:"not null"`
	Disk        int          `gorm:"not null"`
	Ephemeral   int          `gorm:"not null"`
	Date        int64        `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CloudVMConfig) TableName() string { return "cloudvm_configs" }

// CloudVMUsage is the observed lifetime of a cloud VM within a window.
type CloudVMUsage struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	OrderlineID snowflake.ID `gorm:"not null;uniqueIndex:ux_cloudvm_usage,priority:1"`
	Start       int64        `gorm:"not null;uniqueIndex:ux_cloudvm_usage,priority:2"`
	End         int64        `gorm:"not null;uniqueIndex:ux_cloudvm_usage,priority:3"`
	Span        int64        `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CloudVMUsage) TableName() string { return "cloudvm_usage" }

// HostedVMConfig describes a VM on managed hypervisors. The server id is
// the stable identity; descriptive fields may change between runs and
// are updated in place.
type HostedVMConfig struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	OrderlineID  snowflake.ID `gorm:"not null;index"`
	ServerID     string       `gorm:"type:text;not null;uniqueIndex:ux_hostedvm_configs"`
	Server       string       `gorm:"type:text;not null"`
	Core         int          `gorm:"not null"`
	RAM          int          `gorm:"not null"`
	OS           string       `gorm:"column:os;type:text"`
	BusinessUnit string       `gorm:"type:text"`
	Date         int64        `gorm:"not null"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (HostedVMConfig) TableName() string { return "hostedvm_configs" }

// HostedVMUsage carries the storage, lifetime and availability of a
// hosted VM within a window.
type HostedVMUsage struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	OrderlineID   snowflake.ID `gorm:"not null;uniqueIndex:ux_hostedvm_usage,priority:1"`
	Start         int64        `gorm:"not null;uniqueIndex:ux_hostedvm_usage,priority:2"`
	End           int64        `gorm:"not null;uniqueIndex:ux_hostedvm_usage,priority:3"`
	Storage       float64      `gorm:"not null"`
	Span          int64        `gorm:"not null"`
	UptimePercent float64      `gorm:"not null"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (HostedVMUsage) TableName() string { return "hostedvm_usage" }

// StorageConfig tags an orderline with the physical backend serving it.
type StorageConfig struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	OrderlineID snowflake.ID `gorm:"not null;uniqueIndex:ux_storage_configs,priority:1"`
	Type        string       `gorm:"type:text;not null;uniqueIndex:ux_storage_configs,priority:2"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (StorageConfig) TableName() string { return "storage_configs" }

// StorageUsage is allocated space in GB, already unit-converted at save
// time.
type StorageUsage struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	OrderlineID snowflake.ID `gorm:"not null;uniqueIndex:ux_storage_usage,priority:1"`
	Start       int64        `gorm:"not null;uniqueIndex:ux_storage_usage,priority:2"`
	End         int64        `gorm:"not null;uniqueIndex:ux_storage_usage,priority:3"`
	Usage       float64      `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (StorageUsage) TableName() string { return "storage_usage" }

// HPCUsage is aggregated job statistics per partition. CPU time stays in
// seconds here; the hour conversion happens at fee time.
type HPCUsage struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	OrderlineID snowflake.ID `gorm:"not null;uniqueIndex:ux_hpc_usage,priority:1"`
	Start       int64        `gorm:"not null;uniqueIndex:ux_hpc_usage,priority:2"`
	End         int64        `gorm:"not null;uniqueIndex:ux_hpc_usage,priority:3"`
	Partition   string       `gorm:"type:text;not null;uniqueIndex:ux_hpc_usage,priority:4"`
	CPUSeconds  int64        `gorm:"not null"`
	Count       int64        `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (HPCUsage) TableName() string { return "hpc_usage" }
