package data

import (
	"errors"

	"gorm.io/gorm"
)

// WhitelistEntry is one row of the whitelist table. When whitelist
// enforcement is enabled, only listed usernames may log in.
type WhitelistEntry struct {
	Username  string `gorm:"primaryKey;type:text;column:username"`
	CreatedAt string `gorm:"type:text;not null;column:created_at"`
}

func (WhitelistEntry) TableName() string { return "whitelist" }

// FindWhitelistEntry looks up a username on the whitelist, returning nil if
// there is no match.
func FindWhitelistEntry(db *gorm.DB, username string) (*WhitelistEntry, error) {
	var entry WhitelistEntry
	err := db.Where("username = ?", username).First(&entry).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}

// CreateWhitelistEntry adds a username to the whitelist.
func CreateWhitelistEntry(db *gorm.DB, entry *WhitelistEntry) error {
	return db.Save(entry).Error
}

// DeleteWhitelistEntry removes a username from the whitelist.
func DeleteWhitelistEntry(db *gorm.DB, username string) error {
	return db.Delete(&WhitelistEntry{}, "username = ?", username).Error
}

// ListWhitelistEntries returns the whole whitelist ordered by username.
func ListWhitelistEntries(db *gorm.DB) ([]WhitelistEntry, error) {
	var entries []WhitelistEntry
	if err := db.Order("username").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
