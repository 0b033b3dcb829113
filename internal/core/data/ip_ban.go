package data

import (
	"errors"
	"fmt"
	"net"
	"time"

	"gorm.io/gorm"
)

// IPBan is one row of the ip_bans table. The address is keyed by its raw
// binary form: a version tag byte (4 or 6) followed by the address octets.
type IPBan struct {
	IP         []byte  `gorm:"primaryKey;type:blob;column:ip"`
	CreatedAt  string  `gorm:"type:text;not null;column:created_at"`
	Expiration *string `gorm:"type:text;column:expiration"`
	Reason     *string `gorm:"type:text;column:reason"`
}

func (IPBan) TableName() string { return "ip_bans" }

// Active reports whether the ban still gates decisions at the given instant.
func (b *IPBan) Active(now time.Time) bool {
	if b.Expiration == nil {
		return true
	}

	expiration, err := ParseTime(*b.Expiration)
	if err != nil {
		return true
	}
	return expiration.After(now)
}

// EncodeIP converts an address into the binary key form used by the ip_bans
// table.
func EncodeIP(ip net.IP) []byte {
	if v4 := ip.To4(); v4 != nil {
		return append([]byte{4}, v4...)
	}
	return append([]byte{6}, ip.To16()...)
}

// DecodeIP is the inverse of EncodeIP.
func DecodeIP(key []byte) (net.IP, error) {
	switch {
	case len(key) == 5 && key[0] == 4:
		return net.IP(key[1:]), nil
	case len(key) == 17 && key[0] == 6:
		return net.IP(key[1:]), nil
	}
	return nil, fmt.Errorf("malformed ip ban key of length %d", len(key))
}

// FindIPBan looks up the ban row for an address, returning nil if there is
// no match.
func FindIPBan(db *gorm.DB, ip net.IP) (*IPBan, error) {
	var ban IPBan
	err := db.Where("ip = ?", EncodeIP(ip)).First(&ban).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &ban, nil
}

// CreateIPBan persists a new ban row, replacing any existing row for the
// same address.
func CreateIPBan(db *gorm.DB, ban *IPBan) error {
	return db.Save(ban).Error
}

// DeleteIPBan removes the ban row for an address if one exists.
func DeleteIPBan(db *gorm.DB, ip net.IP) error {
	return db.Delete(&IPBan{}, "ip = ?", EncodeIP(ip)).Error
}

// ListIPBans returns every address ban row, including expired ones.
func ListIPBans(db *gorm.DB) ([]IPBan, error) {
	var bans []IPBan
	if err := db.Find(&bans).Error; err != nil {
		return nil, err
	}
	return bans, nil
}
