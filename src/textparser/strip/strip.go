package strip

import (
	"regexp"
	"strings"
)

var reURL = regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+`)
var re = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?'%&-]`)
var reRepeat = regexp.MustCompile(`([.,!?])[.,!?]+`)
var spaceFix = regexp.MustCompile(`\s+`)

// NormalizeCharacters drops links and characters a voice can not read out.
func NormalizeCharacters(text string) string {
	text = reURL.ReplaceAllString(text, " link ")
	text = re.ReplaceAllString(text, " ")
	text = reRepeat.ReplaceAllString(text, "$1")
	return strings.TrimSpace(spaceFix.ReplaceAllString(text, " "))
}
