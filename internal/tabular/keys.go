package tabular

import "strings"

// KeyTransform maps a schema header to a key a caller may have used for it.
type KeyTransform func(header string) string

// Identity looks the header up as written.
func Identity(header string) string { return header }

// UnderscoresToSpaces turns "Final_URL" into "Final URL".
func UnderscoresToSpaces(header string) string {
	return strings.ReplaceAll(header, "_", " ")
}

// SpacesToUnderscores turns "Headline 1" into "Headline_1", collapsing runs of
// whitespace the way form field names are built.
func SpacesToUnderscores(header string) string {
	return strings.Join(strings.Fields(header), "_")
}

// DefaultKeyTransforms is the lookup order used when merging edited values
// onto a stored schema.
var DefaultKeyTransforms = []KeyTransform{
	Identity,
	UnderscoresToSpaces,
	SpacesToUnderscores,
}

// Reconcile builds one full row for headers from caller-supplied values.
//
// For each header the transforms are tried in order and the first key present
// in values wins. Headers with no match get "". Values not matched by any
// header are dropped, so the result always has exactly the header key set.
func Reconcile(headers []string, values map[string]string, transforms []KeyTransform) Row {
	if len(transforms) == 0 {
		transforms = DefaultKeyTransforms
	}

	row := make(Row, len(headers))
	for _, h := range headers {
		row[h] = ""
		for _, tf := range transforms {
			if v, ok := values[tf(h)]; ok {
				row[h] = strings.TrimSpace(v)
				break
			}
		}
	}
	return row
}

// HasValues reports whether any value is non-blank.
func HasValues(values map[string]string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
