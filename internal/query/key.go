package query

import (
	"encoding/json"
	"sort"
	"strings"
)

const (
	RootRecommendations         = "recommendations"
	RootArchivedRecommendations = "archivedRecommendations"
	RootTagCounts               = "tagCounts"
)

// Key identifies a cache entry. Keys are compared element-wise and invalidated by prefix.
type Key []string

func (k Key) String() string {
	b, err := json.Marshal([]string(k))
	if err != nil {
		return strings.Join(k, "/")
	}
	return string(b)
}

func (k Key) Root() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ListKey builds the key of one accumulated list. Selections are sorted so the
// order in which tags were picked never produces a different key.
func ListKey(root, searchTerm string, providers, frameworks, riskClasses, reasons []string) Key {
	return Key{
		root,
		searchTerm,
		encodeSorted(providers),
		encodeSorted(frameworks),
		encodeSorted(riskClasses),
		encodeSorted(reasons),
	}
}

func VocabularyKey(searchTerm string) Key {
	return Key{RootTagCounts, searchTerm}
}

func encodeSorted(values []string) string {
	sorted := append([]string{}, values...)
	sort.Strings(sorted)
	b, err := json.Marshal(sorted)
	if err != nil {
		return strings.Join(sorted, ",")
	}
	return string(b)
}
