// Package lineage stamps published tables and reports with a content hash
// so a consumer can tell which run produced them and whether they changed.
package lineage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"firestats/internal/models"
)

const (
	// TagStart opens the lineage block of a signed document.
	TagStart = "<!-- LINEAGE_START"
	// TagEnd closes the lineage block.
	TagEnd = "LINEAGE_END -->"
)

// Lineage verification errors.
var (
	ErrNoLineageBlock = errors.New("no lineage block found")
	ErrNoHashFound    = errors.New("no hash found in lineage block")
	ErrHashMismatch   = errors.New("hash mismatch")
	ErrTableMismatch  = errors.New("stamp belongs to another table")
)

// Stamp records where a table came from.
type Stamp struct {
	Table     string    `json:"table"`
	RunID     string    `json:"runId"`
	Rows      int       `json:"rows"`
	Hash      string    `json:"hash"`
	Validated bool      `json:"validated"`
	CreatedAt time.Time `json:"createdAt"`
}

// Field and record separators keep cell boundaries unambiguous in the hash.
const (
	unitSep   = "\x1f"
	recordSep = "\x1e"
)

// TableHash is the SHA-256 of a table's columns and rows, in order.
func TableHash(t models.Table) string {
	h := sha256.New()

	h.Write([]byte(t.Name + recordSep))
	h.Write([]byte(strings.Join(t.Columns, unitSep) + recordSep))

	for _, row := range t.Rows {
		h.Write([]byte(strings.Join(row, unitSep) + recordSep))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// NewStamp stamps a table produced by run runID.
func NewStamp(runID string, t models.Table, validated bool, now time.Time) Stamp {
	return Stamp{
		Table:     t.Name,
		RunID:     runID,
		Rows:      t.Len(),
		Hash:      TableHash(t),
		Validated: validated,
		CreatedAt: now.UTC(),
	}
}

// Verify checks that t is the table the stamp was issued for.
func (s Stamp) Verify(t models.Table) error {
	if s.Table != t.Name {
		return fmt.Errorf("%w: %s is not %s", ErrTableMismatch, t.Name, s.Table)
	}

	if s.Hash == "" {
		return ErrNoHashFound
	}

	if got := TableHash(t); got != s.Hash {
		return fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, s.Hash, got)
	}

	return nil
}

// Document is the lineage block of a signed text document.
type Document struct {
	RunID     string
	Validated bool
	CreatedAt time.Time
	Hash      string
}

var blockPattern = regexp.MustCompile(`(?s)<!--\s*LINEAGE_START\s*\n(.*?)\n\s*LINEAGE_END\s*-->`)

// Extract splits a signed document into its lineage block and the content
// the hash covers.
func Extract(content string) (*Document, string) {
	match := blockPattern.FindStringSubmatch(content)
	clean := strings.TrimRight(blockPattern.ReplaceAllString(content, ""), "\n")

	if len(match) < 2 {
		return nil, clean
	}

	doc := &Document{}

	for line := range strings.SplitSeq(match[1], "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}

		val = strings.TrimSpace(val)

		switch strings.TrimSpace(key) {
		case "RUN_ID":
			doc.RunID = val
		case "VALIDATED":
			doc.Validated, _ = strconv.ParseBool(strings.ToLower(val))
		case "CREATED":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				doc.CreatedAt = t
			}
		case "HASH":
			doc.Hash = val
		}
	}

	return doc, clean
}

func contentHash(clean string) string {
	sum := sha256.Sum256([]byte(clean))
	return hex.EncodeToString(sum[:])
}

// Sign replaces any lineage block of content with a fresh one.
func Sign(content, runID string, validated bool, now time.Time) string {
	_, clean := Extract(content)

	return fmt.Sprintf("%s\n\n%s\nRUN_ID: %s\nVALIDATED: %t\nCREATED: %s\nHASH: %s\n%s\n",
		clean, TagStart, runID, validated, now.UTC().Format(time.RFC3339), contentHash(clean), TagEnd)
}

// VerifyDocument checks a signed document against its lineage block.
func VerifyDocument(content string) (*Document, error) {
	doc, clean := Extract(content)
	if doc == nil {
		return nil, ErrNoLineageBlock
	}

	if doc.Hash == "" {
		return nil, ErrNoHashFound
	}

	if got := contentHash(clean); got != doc.Hash {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, doc.Hash, got)
	}

	return doc, nil
}
