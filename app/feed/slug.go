package feed

import (
	"github.com/gosimple/slug"
	"golang.org/x/text/unicode/norm"
)

// Slugify transliterates s to lowercase ASCII and joins the remaining
// alphanumeric runs with single hyphens. Compatibility forms (fullwidth
// letters, ligatures) are folded before transliteration.
func Slugify(s string) string {
	return slug.Make(norm.NFKC.String(s))
}
