// Package parser converts raw guide markup from the two upstream providers
// into normalized program lists. Each provider uses an unrelated HTML
// structure, so each gets its own parsing strategy; everything here is pure
// and deterministic given the markup and a reference time.
package parser

import (
	"sort"
	"strings"
	"time"

	"github.com/mozillazg/go-unidecode"

	"guiatv/models"
)

// defaultDuration is the placeholder program length before end-time
// normalization rewrites ends against the following program.
const defaultDuration = time.Hour

// minPlausibleEntries is the minimum number of entries an extraction pattern
// must yield before its output is trusted.
const minPlausibleEntries = 5

// entityReplacer decodes the fixed set of HTML entities the upstream pages
// are known to emit. Mostly accented Portuguese characters.
var entityReplacer = strings.NewReplacer(
	"&aacute;", "á", "&Aacute;", "Á",
	"&agrave;", "à", "&Agrave;", "À",
	"&acirc;", "â", "&Acirc;", "Â",
	"&atilde;", "ã", "&Atilde;", "Ã",
	"&eacute;", "é", "&Eacute;", "É",
	"&ecirc;", "ê", "&Ecirc;", "Ê",
	"&iacute;", "í", "&Iacute;", "Í",
	"&oacute;", "ó", "&Oacute;", "Ó",
	"&ocirc;", "ô", "&Ocirc;", "Ô",
	"&otilde;", "õ", "&Otilde;", "Õ",
	"&uacute;", "ú", "&Uacute;", "Ú",
	"&ccedil;", "ç", "&Ccedil;", "Ç",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
	"&nbsp;", " ",
)

func decodeEntities(s string) string {
	return strings.TrimSpace(entityReplacer.Replace(s))
}

// normalizeTitle reduces a title to an accent-free lowercase form for
// denylist comparison.
func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(s)))
}

// NormalizeEndTimes sorts programs by start time and rewrites every end time
// to the next program's start. The final program keeps its placeholder
// 1-hour duration. Entries sharing a start time with a predecessor are
// dropped so the result never overlaps.
func NormalizeEndTimes(programs []models.Program) []models.Program {
	if len(programs) == 0 {
		return programs
	}

	sort.Slice(programs, func(i, j int) bool {
		return programs[i].Start.Before(programs[j].Start)
	})

	out := programs[:0]
	for _, p := range programs {
		if len(out) > 0 && !p.Start.After(out[len(out)-1].Start) {
			continue
		}
		out = append(out, p)
	}

	for i := 0; i < len(out)-1; i++ {
		out[i].End = out[i+1].Start
	}
	out[len(out)-1].End = out[len(out)-1].Start.Add(defaultDuration)

	return out
}

// dayStart returns midnight of now's day in now's location.
func dayStart(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location())
}

// yearFor picks the calendar year for a day/month header relative to now,
// handling schedules that cross the December/January boundary.
func yearFor(month time.Month, now time.Time) int {
	year := now.Year()
	if month == time.January && now.Month() == time.December {
		return year + 1
	}
	if month == time.December && now.Month() == time.January {
		return year - 1
	}
	return year
}
