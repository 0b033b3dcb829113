package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// UserBan is one row of the user_bans table, keyed by exact username. A nil
// Expiration makes the ban permanent; an expiration in the past leaves the
// row in place but inert.
type UserBan struct {
	Username   string  `gorm:"primaryKey;type:text;column:username"`
	CreatedAt  string  `gorm:"type:text;not null;column:created_at"`
	Expiration *string `gorm:"type:text;column:expiration"`
	Reason     *string `gorm:"type:text;column:reason"`
}

func (UserBan) TableName() string { return "user_bans" }

// Active reports whether the ban still gates decisions at the given instant.
// Rows are never deleted on expiry; they simply stop mattering.
func (b *UserBan) Active(now time.Time) bool {
	if b.Expiration == nil {
		return true
	}

	expiration, err := ParseTime(*b.Expiration)
	if err != nil {
		// An unparseable expiration is treated as permanent rather than
		// letting a corrupt row void a ban.
		return true
	}
	return expiration.After(now)
}

// FindUserBan looks up the ban row for a username, returning nil if there is
// no match. Expiration is not evaluated here; callers decide what an
// inactive row means.
func FindUserBan(db *gorm.DB, username string) (*UserBan, error) {
	var ban UserBan
	err := db.Where("username = ?", username).First(&ban).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &ban, nil
}

// CreateUserBan persists a new ban row, replacing any existing row for the
// same username.
func CreateUserBan(db *gorm.DB, ban *UserBan) error {
	return db.Save(ban).Error
}

// DeleteUserBan removes the ban row for a username if one exists.
func DeleteUserBan(db *gorm.DB, username string) error {
	return db.Delete(&UserBan{}, "username = ?", username).Error
}

// ListUserBans returns every user ban row, including expired ones, ordered
// by username.
func ListUserBans(db *gorm.DB) ([]UserBan, error) {
	var bans []UserBan
	if err := db.Order("username").Find(&bans).Error; err != nil {
		return nil, err
	}
	return bans, nil
}
