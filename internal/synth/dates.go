package synth

import (
	"strings"
	"time"
)

// dateLayouts are tried in order when parsing a date literal. The matched
// layout is reused for formatting so the shifted date keeps the document's
// own style.
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"01/02/06",
	"Jan 2 2006",
}

// date shifts a recognizable date literal by the document's offset. A
// literal no layout matches gets a plausible date generated near the
// reference time instead.
func (g *Generator) date(original string) string {
	trimmed := strings.TrimSpace(original)
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		return parsed.AddDate(0, 0, g.shiftDays).Format(layout)
	}
	return g.now.AddDate(0, 0, g.shiftDays).Format("01/02/2006")
}
