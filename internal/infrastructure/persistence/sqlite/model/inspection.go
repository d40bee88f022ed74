package model

// Inspection keeps a surrogate row id alongside the unique normalized
// external identifier. The surrogate id is what violations reference, and
// it is what the duplicate reconciler works against when repairing stores
// that predate the unique index on external_id.
type Inspection struct {
	InspectionID   uint64 `gorm:"column:inspection_id;primaryKey;autoIncrement"`
	ExternalID     string `gorm:"column:external_id;type:text;not null;uniqueIndex"`
	LicenseNo      string `gorm:"column:license_no;type:text;not null;index"`
	InspectionDate string `gorm:"column:inspection_date;type:text;not null;index"`
	InspectionType string `gorm:"column:inspection_type;type:text;not null"`
	Result         string `gorm:"column:result;type:text;not null"`
	ViolationsRaw  string `gorm:"column:violations_raw;type:text;not null"`
	ViolationCount int    `gorm:"column:violation_count;not null;default:0"`
	CriticalCount  int    `gorm:"column:critical_count;not null;default:0"`
	CreatedAt      string `gorm:"column:created_at;type:text;not null"`
}

func (Inspection) TableName() string {
	return "inspections"
}
