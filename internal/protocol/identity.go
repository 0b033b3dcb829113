package protocol

import (
	"crypto/md5"

	"github.com/google/uuid"
)

// OfflineUUID derives the profile id an offline-mode server assigns to a
// username: a version 3 UUID over the literal string "OfflinePlayer:<name>"
// with no namespace.
func OfflineUUID(username string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + username))
	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80

	id, _ := uuid.FromBytes(sum[:])
	return id
}
