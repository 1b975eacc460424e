package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// MD5Hex returns the hex md5 of s. Used as a stable map key, not for security.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
