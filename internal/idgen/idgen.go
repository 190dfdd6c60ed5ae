// Package idgen generates the random identifiers used across the panel.
//
// Every entity carries a short typed prefix ("usr_", "ten_", "sub_", "wi_",
// "ag_", "ses_") so an ID names its kind at a glance in logs and support
// tickets.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// randomBytes is the entropy per ID; 24 hex chars after the prefix.
const randomBytes = 12

// WithPrefix returns prefix followed by 24 hex characters of crypto/rand
// entropy.
func WithPrefix(prefix string) string {
	b := make([]byte, randomBytes)
	if _, err := rand.Read(b); err != nil {
		panic("idgen: crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}
