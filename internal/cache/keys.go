package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	searchPrefix  = "search:"
	detailPrefix  = "detail:"
	profilePrefix = "profile:"
	stalePrefix   = "stale:"
	lockPrefix    = "lock:"
)

// SearchFingerprint is the deterministic identity of one search request.
type SearchFingerprint struct {
	Keyword  string
	Location string
	Status   string
	Sort     string
	Page     int
	PageSize int
}

// SearchKey hashes the fingerprint so equal requests share an entry.
func SearchKey(f SearchFingerprint) string {
	raw := fmt.Sprintf("q=%s|loc=%s|st=%s|sort=%s|p=%d|ps=%d",
		f.Keyword, f.Location, f.Status, f.Sort, f.Page, f.PageSize)
	hash := sha256.Sum256([]byte(raw))
	return searchPrefix + hex.EncodeToString(hash[:])
}

func DetailKey(jobID int64) string {
	return fmt.Sprintf("%s%d", detailPrefix, jobID)
}

func ProfileKey(userID int64) string {
	return fmt.Sprintf("%s%d", profilePrefix, userID)
}

func StaleKey(key string) string {
	return stalePrefix + key
}

func LockKey(key string) string {
	return lockPrefix + key
}

// SearchPattern matches every search entry for prefix invalidation.
func SearchPattern() string {
	return searchPrefix + "*"
}
