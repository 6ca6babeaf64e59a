// Package collate provides the name comparison service used for
// path-component matching. Filesystem drivers receive a Collator at
// mount time instead of reaching for a process-wide default, so two
// mounts of the same volume can resolve names differently.
package collate

import "strings"

// Collator compares two file names for equality.
type Collator interface {
	// Equal reports whether a and b name the same directory entry.
	Equal(a, b string) bool

	// Name identifies the collation for log lines and diagnostics.
	Name() string
}

// Binary returns a Collator that matches names byte for byte.
func Binary() Collator { return binaryCollator{} }

// CaseInsensitive returns a Collator that matches names under Unicode
// simple case folding, the way firmware path lookups usually do.
func CaseInsensitive() Collator { return foldCollator{} }

type binaryCollator struct{}

func (binaryCollator) Equal(a, b string) bool { return a == b }
func (binaryCollator) Name() string           { return "binary" }

type foldCollator struct{}

func (foldCollator) Equal(a, b string) bool { return strings.EqualFold(a, b) }
func (foldCollator) Name() string           { return "casefold" }
