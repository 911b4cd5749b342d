package types

import "sort"

// EncryptedBundleVersion is the current EncryptedBundle format version.
const EncryptedBundleVersion = 1

// EncryptedBundle is the form of a Bundle that is persisted or transmitted.
type EncryptedBundle struct {
	Version int               `json:"v"`      // Format version
	Scheme  string            `json:"scheme"` // Cipher scheme that produced Values
	Values  map[string]string `json:"values"` // Variable name to encrypted value
}

// Keys returns the variable names in sorted order.
func (e *EncryptedBundle) Keys() []string {
	keys := make([]string, 0, len(e.Values))
	for k := range e.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
