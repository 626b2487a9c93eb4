// Package revision compares revision documents of an item and fetches them from the
// remote API.
package revision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sort"

	"github.com/choplin/wdrc/internal/change"
	"github.com/choplin/wdrc/internal/entity"
)

// Document is the decoded JSON content of one revision's main slot.
type Document map[string]any

// ParseDocument decodes revision content. Numbers are kept as json.Number so that
// deep comparison of claims is exact.
func ParseDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode revision document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// differ carries the metadata stamped onto every record of one comparison.
type differ struct {
	item      entity.ItemID
	revision  uint64
	timestamp string
}

func (d differ) record(subject change.Subject, typ change.Type) change.Record {
	return change.Record{
		Subject:    subject,
		Type:       typ,
		ItemID:     d.item,
		RevisionID: d.revision,
		Timestamp:  d.timestamp,
	}
}

// Diff returns the changes between two revisions of an item, in the order labels,
// descriptions, aliases, claims, sitelinks. Absent or malformed sections are treated
// as empty.
func Diff(oldDoc, newDoc Document, item entity.ItemID, revisionID uint64, timestamp string) []change.Record {
	d := differ{item: item, revision: revisionID, timestamp: timestamp}
	var out []change.Record
	out = append(out, d.terms(oldDoc, newDoc, change.SubjectLabels)...)
	out = append(out, d.terms(oldDoc, newDoc, change.SubjectDescriptions)...)
	out = append(out, d.aliases(oldDoc, newDoc)...)
	out = append(out, d.claims(oldDoc, newDoc)...)
	out = append(out, d.sitelinks(oldDoc, newDoc)...)
	return out
}

// terms compares labels or descriptions keyed by language.
func (d differ) terms(oldDoc, newDoc Document, subject change.Subject) []change.Record {
	return d.keyedStrings(object(oldDoc, string(subject)), object(newDoc, string(subject)), "value",
		func(typ change.Type, language, text string) change.Record {
			r := d.record(subject, typ)
			r.Language = language
			r.Text = text
			return r
		})
}

func (d differ) sitelinks(oldDoc, newDoc Document) []change.Record {
	return d.keyedStrings(object(oldDoc, "sitelinks"), object(newDoc, "sitelinks"), "title",
		func(typ change.Type, site, title string) change.Record {
			r := d.record(change.SubjectSitelinks, typ)
			r.Site = site
			r.Title = title
			return r
		})
}

// keyedStrings implements the shared changed/removed/added comparison over maps of
// objects carrying one string field.
func (d differ) keyedStrings(oldMap, newMap map[string]any, field string, build func(change.Type, string, string) change.Record) []change.Record {
	var out []change.Record
	for _, key := range sortedKeys(oldMap) {
		oldText, ok := stringField(oldMap[key], field)
		if !ok {
			continue
		}
		newEntry, present := newMap[key]
		if !present {
			out = append(out, build(change.TypeRemoved, key, oldText))
			continue
		}
		newText, ok := stringField(newEntry, field)
		if !ok {
			continue
		}
		if oldText != newText {
			out = append(out, build(change.TypeChanged, key, newText))
		}
	}
	for _, key := range sortedKeys(newMap) {
		if _, present := oldMap[key]; present {
			continue
		}
		newText, ok := stringField(newMap[key], field)
		if !ok {
			continue
		}
		out = append(out, build(change.TypeAdded, key, newText))
	}
	return out
}

func (d differ) aliases(oldDoc, newDoc Document) []change.Record {
	oldMap := object(oldDoc, "aliases")
	newMap := object(newDoc, "aliases")

	languages := sortedKeys(oldMap)
	languages = append(languages, sortedKeys(newMap)...)
	sort.Strings(languages)
	languages = slices.Compact(languages)

	var out []change.Record
	for _, language := range languages {
		oldAliases := aliasTexts(oldMap[language])
		newAliases := aliasTexts(newMap[language])
		if slices.Equal(oldAliases, newAliases) {
			continue
		}
		for _, alias := range oldAliases {
			if !slices.Contains(newAliases, alias) {
				r := d.record(change.SubjectAliases, change.TypeRemoved)
				r.Language = language
				r.Text = alias
				out = append(out, r)
			}
		}
		for _, alias := range newAliases {
			if !slices.Contains(oldAliases, alias) {
				r := d.record(change.SubjectAliases, change.TypeAdded)
				r.Language = language
				r.Text = alias
				out = append(out, r)
			}
		}
	}
	return out
}

// claims matches claims by their id across all properties; the property is carried as
// metadata only.
func (d differ) claims(oldDoc, newDoc Document) []change.Record {
	oldClaims := object(oldDoc, "claims")
	newClaims := object(newDoc, "claims")
	oldIndex := indexClaims(oldClaims)
	newIndex := indexClaims(newClaims)

	var out []change.Record
	for _, property := range sortedKeys(oldClaims) {
		for _, claim := range claimList(oldClaims[property]) {
			id, ok := stringField(claim, "id")
			if !ok {
				continue
			}
			newClaim, found := newIndex[id]
			switch {
			case !found:
				out = append(out, d.claimRecord(change.TypeRemoved, property, id))
			case !reflect.DeepEqual(claim, newClaim):
				out = append(out, d.claimRecord(change.TypeChanged, property, id))
			}
		}
	}
	for _, property := range sortedKeys(newClaims) {
		for _, claim := range claimList(newClaims[property]) {
			id, ok := stringField(claim, "id")
			if !ok {
				continue
			}
			if _, found := oldIndex[id]; !found {
				out = append(out, d.claimRecord(change.TypeAdded, property, id))
			}
		}
	}
	return out
}

func (d differ) claimRecord(typ change.Type, property, id string) change.Record {
	r := d.record(change.SubjectClaims, typ)
	r.Property = property
	r.ClaimID = id
	return r
}

// indexClaims maps claim id to claim. When an id appears more than once the first
// occurrence in sorted property order wins.
func indexClaims(claims map[string]any) map[string]any {
	index := make(map[string]any)
	for _, property := range sortedKeys(claims) {
		for _, claim := range claimList(claims[property]) {
			id, ok := stringField(claim, "id")
			if !ok {
				continue
			}
			if _, seen := index[id]; !seen {
				index[id] = claim
			}
		}
	}
	return index
}

func claimList(v any) []any {
	list, _ := v.([]any)
	return list
}

func aliasTexts(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, entry := range list {
		if text, ok := stringField(entry, "value"); ok {
			out = append(out, text)
		}
	}
	return out
}

func object(doc Document, key string) map[string]any {
	if doc == nil {
		return nil
	}
	m, _ := doc[key].(map[string]any)
	return m
}

func stringField(v any, field string) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := m[field].(string)
	return s, ok
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
