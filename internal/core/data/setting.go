package data

import (
	"errors"

	"gorm.io/gorm"
)

// SettingWhitelistEnabled toggles whitelist enforcement during login.
const SettingWhitelistEnabled = "whitelist_enabled"

// Setting is one row of the settings key/value table used for operator
// toggles that need to survive restarts.
type Setting struct {
	Key   string `gorm:"primaryKey;type:text;column:key"`
	Value string `gorm:"type:text;not null;column:value"`
}

func (Setting) TableName() string { return "settings" }

// GetSetting returns the value stored for key and whether it was present.
func GetSetting(db *gorm.DB, key string) (string, bool, error) {
	var setting Setting
	err := db.Where("key = ?", key).First(&setting).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	return setting.Value, true, nil
}

// SetSetting stores value under key, replacing any previous value.
func SetSetting(db *gorm.DB, key, value string) error {
	return db.Save(&Setting{Key: key, Value: value}).Error
}

// WhitelistEnabled reports whether whitelist enforcement is switched on.
// Absence of the setting means disabled.
func WhitelistEnabled(db *gorm.DB) (bool, error) {
	value, ok, err := GetSetting(db, SettingWhitelistEnabled)
	if err != nil {
		return false, err
	}
	return ok && value == "true", nil
}
