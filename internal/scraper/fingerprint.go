package scraper

import (
	"crypto/md5"
	"encoding/hex"
)

// Fingerprint is the lower-case hex MD5 of the extracted text
func Fingerprint(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
