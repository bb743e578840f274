package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// itemGUIDs derives one guid per item from its link and a digest of its content.
// The same content at the same link keeps its guid between renders; changed content
// gets a new one. Exact repeats within one render are numbered.
func itemGUIDs(items []Item) []string {
	guids := make([]string, len(items))
	seen := make(map[string]int, len(items))

	for i, item := range items {
		h := sha256.New()
		h.Write([]byte(item.Title))
		h.Write([]byte{0})
		h.Write([]byte(item.Description))

		guid := item.Link + "#" + hex.EncodeToString(h.Sum(nil))[:16]

		n := seen[guid]
		seen[guid] = n + 1
		if n > 0 {
			guid += "-" + strconv.Itoa(n)
		}

		guids[i] = guid
	}

	return guids
}
