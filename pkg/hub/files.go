package hub

import (
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/TFMV/splitcheck/pkg/infrastructure/converter"
	"github.com/TFMV/splitcheck/pkg/models"
)

// File is one repository file holding rows of a split.
type File struct {
	Path   string
	Format converter.Format
}

// SelectSplitFiles picks the files of split from a repository listing.
//
// A file belongs to a split when any of its directory names, or any token of
// its file name delimited by non-letters (train-00000, ko.train, nikl_hate_train),
// equals one of the split's aliases. When the split is
// published in several formats only the most preferred format is returned.
// The result is sorted by path.
func SelectSplitFiles(paths []string, split models.Split) []File {
	aliases := make(map[string]struct{})
	for _, a := range split.Aliases() {
		aliases[a] = struct{}{}
	}

	byFormat := make(map[converter.Format][]string)
	for _, p := range paths {
		format, ok := converter.FormatFromPath(p)
		if !ok {
			continue
		}
		if matchesSplit(p, aliases) {
			byFormat[format] = append(byFormat[format], p)
		}
	}

	for _, format := range converter.Preference {
		matched := byFormat[format]
		if len(matched) == 0 {
			continue
		}
		sort.Strings(matched)
		files := make([]File, len(matched))
		for i, p := range matched {
			files[i] = File{Path: p, Format: format}
		}
		return files
	}
	return nil
}

func matchesSplit(p string, aliases map[string]struct{}) bool {
	p = strings.ToLower(p)
	dir, name := path.Split(p)

	for _, d := range strings.Split(strings.Trim(dir, "/"), "/") {
		if _, ok := aliases[d]; ok {
			return true
		}
	}

	stem := strings.TrimSuffix(name, path.Ext(name))
	for _, tok := range strings.FieldsFunc(stem, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if _, ok := aliases[tok]; ok {
			return true
		}
	}
	return false
}
