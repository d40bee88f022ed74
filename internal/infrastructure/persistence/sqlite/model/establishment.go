package model

// Establishment rows are keyed by the source-assigned license number, which
// makes the sync engine's upsert a true conflict-resolution write.
type Establishment struct {
	LicenseNo            string   `gorm:"column:license_no;type:text;primaryKey"`
	Name                 string   `gorm:"column:name;type:text;not null"`
	AKAName              *string  `gorm:"column:aka_name;type:text"`
	FacilityType         string   `gorm:"column:facility_type;type:text;not null"`
	RiskTier             int      `gorm:"column:risk_tier;not null;default:3"`
	Address              string   `gorm:"column:address;type:text;not null"`
	City                 string   `gorm:"column:city;type:text;not null"`
	State                string   `gorm:"column:state;type:text;not null"`
	Zip                  string   `gorm:"column:zip;type:text;not null"`
	Latitude             *float64 `gorm:"column:latitude"`
	Longitude            *float64 `gorm:"column:longitude"`
	Score                int      `gorm:"column:score;not null;default:0"`
	PassStreak           int      `gorm:"column:pass_streak;not null;default:0"`
	LatestResult         string   `gorm:"column:latest_result;type:text;not null"`
	LatestInspectionDate string   `gorm:"column:latest_inspection_date;type:text;not null"`

	SummaryText           *string `gorm:"column:summary_text;type:text"`
	SummaryGeneratedAt    *string `gorm:"column:summary_generated_at;type:text"`
	SummaryResultSnapshot *string `gorm:"column:summary_result_snapshot;type:text"`
	SummaryScoreSnapshot  *int    `gorm:"column:summary_score_snapshot"`

	CreatedAt string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (Establishment) TableName() string {
	return "establishments"
}
