package sentance

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/admiralbulldogtv/yapperqueue/src/textparser/parts"
	"github.com/jdkato/prose/v2"
)

var reSpace = regexp.MustCompile(`\s+`)

// Split breaks text into sentences, then clauses, then word runs no longer than limit.
func Split(text string, limit int) parts.SegmentList {
	var sentances []string
	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		sentances = []string{text}
	} else {
		for _, s := range doc.Sentences() {
			sentances = append(sentances, s.Text)
		}
	}

	segments := parts.SegmentList{}
	for _, s := range sentances {
		s = reSpace.ReplaceAllString(s, " ")
		commas := strings.Split(s, ",")
		for i, cm := range commas {
			cm = strings.TrimSpace(cm)
			if cm == "" {
				continue
			}
			space := parts.SpaceTypeMediumPause
			if i == len(commas)-1 {
				space = parts.SpaceTypeLongPause
			}
			if len(cm) <= limit {
				segments = append(segments, parts.Segment{Value: cm, Space: space})
				continue
			}

			currentBuild := ""
			for _, split := range strings.Split(cm, " ") {
				if len(currentBuild) != 0 && len(currentBuild)+len(split)+1 > limit {
					segments = append(segments, parts.Segment{Value: currentBuild, Space: parts.SpaceTypeShortPause})
					currentBuild = ""
				}
				currentBuild = strings.TrimSpace(currentBuild + " " + split)
			}
			if len(currentBuild) != 0 {
				segments = append(segments, parts.Segment{Value: currentBuild, Space: space})
			}
		}
	}

	return segments
}

var abr = map[*regexp.Regexp]string{}

var rawAbr = map[string]string{
	"mrs":  "misses",
	"mr":   "mister",
	"mt":   "mount",
	"dr":   "doctor",
	"st":   "saint",
	"jr":   "junior",
	"maj":  "major",
	"gen":  "general",
	"drs":  "doctors",
	"rev":  "reverend",
	"lt":   "lieutenant",
	"hon":  "honorable",
	"sgt":  "sergeant",
	"capt": "captain",
	"esq":  "esquire",
	"ltd":  "limited",
	"col":  "colonel",
	"ft":   "fort",
}

func init() {
	for k, v := range rawAbr {
		abr[regexp.MustCompile(fmt.Sprintf(`(?i)\b%s\.`, k))] = v
	}
}

// FixAbbreviations expands dotted abbreviations so they do not end a sentence.
func FixAbbreviations(text string) string {
	for re, repl := range abr {
		text = re.ReplaceAllString(text, repl)
	}
	return text
}
