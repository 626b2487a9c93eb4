// Package change defines the change record produced by diffing two revisions of an item.
package change

import "github.com/choplin/wdrc/internal/entity"

// Subject names the part of an item a change applies to.
type Subject string

const (
	SubjectLabels       Subject = "labels"
	SubjectDescriptions Subject = "descriptions"
	SubjectAliases      Subject = "aliases"
	SubjectSitelinks    Subject = "sitelinks"
	SubjectClaims       Subject = "claims"
)

func (s Subject) String() string { return string(s) }

// Type is the kind of change.
type Type string

const (
	TypeAdded   Type = "added"
	TypeRemoved Type = "removed"
	TypeChanged Type = "changed"
)

func (t Type) String() string { return string(t) }

// Record is a single field-level change between two revisions of an item.
// Only the payload fields matching Subject are populated.
type Record struct {
	Subject    Subject
	Type       Type
	Language   string
	Text       string
	Site       string
	Title      string
	Property   string
	ClaimID    string
	ItemID     entity.ItemID
	RevisionID uint64
	Timestamp  string
}

// IsStatement reports whether the record belongs in the statements table.
func (r Record) IsStatement() bool {
	return r.Subject == SubjectClaims
}

// Key returns the string that is interned for label-type records: the site code for
// sitelinks and the language code otherwise.
func (r Record) Key() string {
	if r.Subject == SubjectSitelinks {
		return r.Site
	}
	return r.Language
}
