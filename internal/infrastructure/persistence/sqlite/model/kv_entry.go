package model

// KVEntry backs the sqlite key-value cache. The sync engine uses it to
// persist resolved geocode results across runs.
type KVEntry struct {
	Key       string `gorm:"column:key;type:text;primaryKey"`
	Value     string `gorm:"column:value;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (KVEntry) TableName() string {
	return "kv_cache"
}
