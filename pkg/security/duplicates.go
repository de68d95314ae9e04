package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/sentrivault/pkg/store"
)

// DuplicateGroup is a set of items sharing one secret value.
type DuplicateGroup struct {
	ItemIDs    []string `json:"item_ids"`
	ItemTitles []string `json:"item_titles"`
	FieldNames []string `json:"field_names"`
	Count      int      `json:"count"`
}

type duplicateEntry struct {
	itemID    string
	itemTitle string
	fieldName string
}

// FindDuplicates groups reused secret values across items, most reused first.
// Values are compared by HMAC-SHA256 under a key that lives only as long as
// the Calculator. CVVs are ignored since short numeric codes collide by chance.
func (c *Calculator) FindDuplicates(items []store.VaultItem) ([]DuplicateGroup, error) {
	if c.hmacKey == nil {
		c.hmacKey = make([]byte, 32)
		if _, err := rand.Read(c.hmacKey); err != nil {
			return nil, err
		}
	}

	byHash := make(map[string][]duplicateEntry)
	for _, it := range items {
		for name, value := range store.SecretValues(it.Fields) {
			if !isComparableField(name) {
				continue
			}
			value = normalizeValue(value)
			if value == "" {
				continue
			}
			h := computeValueHash(value, c.hmacKey)
			byHash[h] = append(byHash[h], duplicateEntry{itemID: it.ID, itemTitle: it.Title, fieldName: name})
		}
	}

	var groups []DuplicateGroup
	for _, entries := range byHash {
		if len(entries) <= 1 {
			continue
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].itemID != entries[j].itemID {
				return entries[i].itemID < entries[j].itemID
			}
			return entries[i].fieldName < entries[j].fieldName
		})
		g := DuplicateGroup{Count: len(entries)}
		for _, e := range entries {
			g.ItemIDs = append(g.ItemIDs, e.itemID)
			g.ItemTitles = append(g.ItemTitles, e.itemTitle)
			g.FieldNames = append(g.FieldNames, e.fieldName)
		}
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].ItemIDs[0] < groups[j].ItemIDs[0]
	})
	return groups, nil
}

func isComparableField(fieldName string) bool {
	return fieldName != "cvv"
}

func computeValueHash(value string, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeValue trims surrounding whitespace and applies Unicode NFC so
// visually identical secrets compare equal.
func normalizeValue(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}
