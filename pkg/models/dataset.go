// Package models provides data structures used throughout splitcheck.
package models

import (
	"strings"

	"github.com/TFMV/splitcheck/pkg/errors"
)

// DefaultRevision is the mutable branch a dataset resolves to when no revision is given.
const DefaultRevision = "main"

// Split names a partition of a dataset.
type Split string

// Well-known splits.
const (
	SplitTrain      Split = "train"
	SplitValidation Split = "validation"
	SplitTest       Split = "test"
)

// DefaultSplits returns the splits checked when none are configured.
func DefaultSplits() []Split {
	return []Split{SplitTrain, SplitValidation, SplitTest}
}

// ParseSplits converts raw names into splits, dropping blanks.
func ParseSplits(names []string) []Split {
	splits := make([]Split, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		splits = append(splits, Split(name))
	}
	return splits
}

var splitAliases = map[Split][]string{
	SplitTrain:      {"train", "training"},
	SplitValidation: {"validation", "valid", "val", "dev"},
	SplitTest:       {"test", "testing", "eval", "evaluation"},
}

// Aliases returns the file-name tokens hub repositories use for the split.
// Unknown splits only match their own name.
func (s Split) Aliases() []string {
	if aliases, ok := splitAliases[Split(strings.ToLower(string(s)))]; ok {
		return aliases
	}
	return []string{strings.ToLower(string(s))}
}

func (s Split) String() string {
	return string(s)
}

// DatasetHandle identifies one split of one dataset at one revision.
type DatasetHandle struct {
	id       string
	split    Split
	revision string
}

// NewDatasetHandle validates and builds a handle. An empty revision means DefaultRevision.
func NewDatasetHandle(id string, split Split, revision string) (DatasetHandle, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DatasetHandle{}, errors.ErrEmptyDatasetID
	}
	if strings.TrimSpace(string(split)) == "" {
		return DatasetHandle{}, errors.ErrEmptySplit
	}
	if revision == "" {
		revision = DefaultRevision
	}
	return DatasetHandle{id: id, split: split, revision: revision}, nil
}

// ID returns the dataset identifier, e.g. "owner/name".
func (h DatasetHandle) ID() string { return h.id }

// Split returns the split name.
func (h DatasetHandle) Split() Split { return h.split }

// Revision returns the tag, branch, or commit.
func (h DatasetHandle) Revision() string { return h.revision }

func (h DatasetHandle) String() string {
	return h.id + "@" + h.revision + ":" + string(h.split)
}
