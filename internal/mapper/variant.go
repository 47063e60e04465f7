package mapper

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

const variantSeparator = " / "

var (
	colorMarkers = []string{"colour", "color", "اللون", "لون"}
	sizeMarkers  = []string{"size", "المقاس", "مقاس", "الحجم", "حجم"}

	colorPattern = regexp.MustCompile(`(?i)(colou?r|اللون|لون)[\s:：\-]*`)
	sizePattern  = regexp.MustCompile(`(?i)(size|المقاس|مقاس|الحجم|حجم)[\s:：\-]*`)

	folder = cases.Fold()
)

// ParseVariant splits a variant title such as "Color: Red / Size: M" into color
// and size. Without keywords a single part is the size and two parts are
// (color, size).
func ParseVariant(variantTitle string) (color, size string) {
	parts := strings.Split(variantTitle, variantSeparator)

	for _, part := range parts {
		folded := folder.String(part)
		switch {
		case containsAny(folded, colorMarkers):
			color = stripMarker(colorPattern, part)
		case containsAny(folded, sizeMarkers):
			size = stripMarker(sizePattern, part)
		}
	}

	if color == "" && size == "" && len(parts) > 0 {
		if len(parts) == 1 {
			size = strings.TrimSpace(parts[0])
		} else {
			color = strings.TrimSpace(parts[0])
			size = strings.TrimSpace(parts[1])
		}
	}
	return color, size
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// stripMarker removes the first keyword match and its trailing punctuation
func stripMarker(re *regexp.Regexp, part string) string {
	loc := re.FindStringIndex(part)
	if loc == nil {
		return strings.TrimSpace(part)
	}
	return strings.TrimSpace(part[:loc[0]] + part[loc[1]:])
}
