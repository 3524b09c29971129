// Package textparser prepares chat text for the synthesis workers.
package textparser

import (
	"errors"
	"html"
	"strings"

	"github.com/admiralbulldogtv/yapperqueue/src/textparser/parts"
	"github.com/admiralbulldogtv/yapperqueue/src/textparser/sentance"
	"github.com/admiralbulldogtv/yapperqueue/src/textparser/strip"
)

var ErrNothingToSay = errors.New("text has nothing to say")

func Process(text string, limit int) (parts.SegmentList, error) {
	text = strings.TrimSpace(html.UnescapeString(text))
	text = strip.NormalizeCharacters(text)
	text = sentance.FixAbbreviations(text)

	if text == "" {
		return nil, ErrNothingToSay
	}

	segments := sentance.Split(text, limit)
	if len(segments) == 0 {
		return nil, ErrNothingToSay
	}
	return segments, nil
}
