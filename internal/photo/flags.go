package photo

import (
	"strings"

	"lightbox/internal/enrich"
)

// Result flags, one per built-in unit. Values are persisted, so new flags are
// only ever appended.
const (
	FlagMetadata enrich.Kind = 1 << iota
	FlagThumbnail
	FlagPreview
	FlagAnalyze
	FlagFace
	FlagTag
	FlagCategory
	FlagCaption
	FlagColor
	FlagAdult
	FlagObjectProperty
	FlagDuplicate
)

var flagNames = []struct {
	flag enrich.Kind
	name string
}{
	{FlagMetadata, "metadata"},
	{FlagThumbnail, "thumbnail"},
	{FlagPreview, "preview"},
	{FlagAnalyze, "analyze"},
	{FlagFace, "face"},
	{FlagTag, "tag"},
	{FlagCategory, "category"},
	{FlagCaption, "caption"},
	{FlagColor, "color"},
	{FlagAdult, "adult"},
	{FlagObjectProperty, "objects"},
	{FlagDuplicate, "duplicate"},
}

// FlagNames lists the names of the flags set in k in bit order.
func FlagNames(k enrich.Kind) []string {
	var names []string
	for _, entry := range flagNames {
		if k.Has(entry.flag) {
			names = append(names, entry.name)
		}
	}
	return names
}

// FormatFlags renders k as a comma separated list, or "none".
func FormatFlags(k enrich.Kind) string {
	names := FlagNames(k)
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
