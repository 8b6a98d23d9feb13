package converter

import (
	"path"
	"strings"
)

// Format is a dataset file encoding the decoders understand.
type Format int

const (
	FormatUnknown Format = iota
	FormatParquet
	FormatJSONL
	FormatJSON
	FormatCSV
	FormatTSV
)

// Preference lists formats from most to least preferred when a split is
// published in several encodings.
var Preference = []Format{FormatParquet, FormatJSONL, FormatJSON, FormatCSV, FormatTSV}

func (f Format) String() string {
	switch f {
	case FormatParquet:
		return "parquet"
	case FormatJSONL:
		return "jsonl"
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatTSV:
		return "tsv"
	default:
		return "unknown"
	}
}

// FormatFromPath detects the format from the file extension.
func FormatFromPath(p string) (Format, bool) {
	switch strings.ToLower(path.Ext(p)) {
	case ".parquet":
		return FormatParquet, true
	case ".jsonl", ".ndjson":
		return FormatJSONL, true
	case ".json":
		return FormatJSON, true
	case ".csv":
		return FormatCSV, true
	case ".tsv":
		return FormatTSV, true
	default:
		return FormatUnknown, false
	}
}
