package observe

import (
	"regexp"
	"strings"
)

// identifiers are Mongo ObjectIDs, numeric IDs or six digit confirmation
// codes; all collapse to one placeholder.
var identifier = regexp.MustCompile(`^(?:[0-9a-fA-F]{24}|[0-9]+)$`)

// RouteTemplate replaces identifier segments of path with "{id}" so span
// names stay low cardinality.
func RouteTemplate(path string) string {
	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	for i, s := range segments {
		if identifier.MatchString(s) {
			segments[i] = "{id}"
		}
	}

	return strings.Join(segments, "/")
}
