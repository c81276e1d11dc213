// Package manifest tracks the set of published segment files.
//
// Publication is by naming convention alone: a file named
// {kind}_{first}_{last}.seg covers the inclusive row-key range
// [first, last] of that kind. A manifest is an immutable snapshot of one
// listing; reloading after new segments are published yields a new one.
package manifest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chainkit/coldstore/segment"
)

// FileSuffix is the extension of published segment files.
const FileSuffix = ".seg"

var kindNames = map[string]segment.Kind{
	"headers":      segment.KindHeaders,
	"transactions": segment.KindTransactions,
	"receipts":     segment.KindReceipts,
}

// Entry is one published segment file.
type Entry struct {
	Name  string
	Kind  segment.Kind
	First uint64
	Last  uint64
}

// Contains reports whether the entry covers row key n.
func (e Entry) Contains(n uint64) bool {
	return n >= e.First && n <= e.Last
}

// EntryName returns the canonical file name for a segment of kind covering
// [first, last].
func EntryName(kind segment.Kind, first, last uint64) string {
	return fmt.Sprintf("%s_%d_%d%s", kind, first, last, FileSuffix)
}

// ParseName parses a segment file name. Names that do not follow the
// convention are not entries; ok is false and no error is possible.
func ParseName(name string) (Entry, bool) {
	base, found := strings.CutSuffix(name, FileSuffix)
	if !found {
		return Entry{}, false
	}

	parts := strings.Split(base, "_")
	if len(parts) != 3 {
		return Entry{}, false
	}

	kind, ok := kindNames[parts[0]]
	if !ok {
		return Entry{}, false
	}
	first, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Entry{}, false
	}
	last, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Entry{}, false
	}
	if last < first {
		return Entry{}, false
	}

	return Entry{Name: name, Kind: kind, First: first, Last: last}, true
}

// Manifest is a snapshot of the published segments, held sorted by first
// row key per kind.
type Manifest struct {
	byKind map[segment.Kind][]Entry
}

// New builds a manifest from a file listing. Names that do not follow the
// segment convention are ignored; entries of the same kind with
// overlapping row ranges are a publication error.
func New(names []string) (*Manifest, error) {
	m := &Manifest{byKind: make(map[segment.Kind][]Entry)}

	for _, name := range names {
		e, ok := ParseName(name)
		if !ok {
			continue
		}
		m.byKind[e.Kind] = append(m.byKind[e.Kind], e)
	}

	for kind, entries := range m.byKind {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].First < entries[j].First
		})
		for i := 1; i < len(entries); i++ {
			if entries[i].First <= entries[i-1].Last {
				return nil, fmt.Errorf("manifest: %s segments %q and %q overlap",
					kind, entries[i-1].Name, entries[i].Name)
			}
		}
	}
	return m, nil
}

// Entries returns the published entries of kind, ordered by first row key.
// The returned slice is shared; callers must not modify it.
func (m *Manifest) Entries(kind segment.Kind) []Entry {
	return m.byKind[kind]
}

// Find returns the entry of kind covering row key n.
func (m *Manifest) Find(kind segment.Kind, n uint64) (Entry, bool) {
	entries := m.byKind[kind]
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Last >= n
	})
	if i == len(entries) || !entries[i].Contains(n) {
		return Entry{}, false
	}
	return entries[i], true
}

// HighestRowKey returns the highest published row key of kind. ok is false
// when no segment of that kind is published.
func (m *Manifest) HighestRowKey(kind segment.Kind) (uint64, bool) {
	entries := m.byKind[kind]
	if len(entries) == 0 {
		return 0, false
	}
	return entries[len(entries)-1].Last, true
}

// Kinds returns the kinds with at least one published segment.
func (m *Manifest) Kinds() []segment.Kind {
	kinds := make([]segment.Kind, 0, len(m.byKind))
	for kind := range m.byKind {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
