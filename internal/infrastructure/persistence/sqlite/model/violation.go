package model

type Violation struct {
	InspectionID uint64 `gorm:"column:inspection_id;not null;primaryKey"`
	Code         string `gorm:"column:code;type:text;not null;primaryKey"`
	Description  string `gorm:"column:description;type:text;not null"`
	Comment      string `gorm:"column:comment;type:text;not null"`
	IsCritical   bool   `gorm:"column:is_critical;not null;default:0"`
}

func (Violation) TableName() string {
	return "violations"
}
