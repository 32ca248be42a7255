package model

import "time"

// SystemSetting is one key/value row of installation metadata.
type SystemSetting struct {
	Key       string    `gorm:"column:setting_key;primaryKey;type:varchar(128)" json:"key"`
	Value     string    `gorm:"column:setting_value;type:text" json:"value"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// TableName overrides gorm to use system_settings table.
func (SystemSetting) TableName() string {
	return "system_settings"
}

