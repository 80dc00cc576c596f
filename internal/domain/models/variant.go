package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Variant is one persisted, timestamped instance of a ContentPlan for a
// (category, role) pair. Variants are append/delete only: regeneration
// always produces a new Variant, never an in-place update.
type Variant struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	Category    string       `json:"category" db:"category"`
	Role        Role         `json:"role" db:"role"`
	GeneratedAt time.Time    `json:"generated_at" db:"generated_at"`
	Plan        *ContentPlan `json:"plan" db:"plan"`
	ContentHash string       `json:"content_hash" db:"content_hash"`
}

// NewVariant builds a Variant for a freshly generated plan, stamping it with
// a new ID, the current time and the plan's content hash.
func NewVariant(category string, role Role, plan *ContentPlan) *Variant {
	return &Variant{
		ID:          uuid.New(),
		Category:    category,
		Role:        role,
		GeneratedAt: time.Now().UTC(),
		Plan:        plan,
		ContentHash: ContentHash(plan),
	}
}

// Fresh reports whether the variant is younger than maxAge at the given time.
func (v *Variant) Fresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(v.GeneratedAt) <= maxAge
}

// ContentHash computes the stable digest used for exact-duplicate detection:
// sha256 over the normalized concatenation of the plan title and each topic's
// title and summary. The duplicate detector and the store's uniqueness check
// both go through this function so the two can never disagree.
func ContentHash(plan *ContentPlan) string {
	var b strings.Builder
	b.WriteString(NormalizeText(plan.Title))
	for _, t := range plan.Topics {
		b.WriteByte('|')
		b.WriteString(NormalizeText(t.Title))
		b.WriteByte('|')
		b.WriteString(NormalizeText(t.Summary))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// NormalizeText lowercases s and collapses all runs of whitespace to a single
// space, trimming the ends. Hashing and near-duplicate comparison share this.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
