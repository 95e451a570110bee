package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"guiatv/models"
)

// Secondary provider schema: program rows carry either a machine-readable
// timestamp attribute or only a bare HH:MM label, with the title inside an
// anchor to the program's detail page. Four extraction patterns are tried in
// order of decreasing reliability; the first one yielding enough plausible
// entries wins.
var (
	timestampAnchorRe = regexp.MustCompile(`(?is)data-start="(\d{10,13})"[^>]*>.{0,300}?<a[^>]*>([^<]+)</a>`)
	timeAnchorRe      = regexp.MustCompile(`(?is)<(?:span|div)[^>]*class="[^"]*(?:hora|time)[^"]*"[^>]*>\s*(\d{1,2}):(\d{2})\s*</(?:span|div)>.{0,300}?<a[^>]*>([^<]+)</a>`)
	slugAnchorRe      = regexp.MustCompile(`(?is)(\d{1,2}):(\d{2}).{0,300}?<a[^>]*href="[^"]*/programa/([a-z0-9]+(?:-[a-z0-9]+)*)/?"[^>]*>\s*<`)
	boldTimeAnchorRe  = regexp.MustCompile(`(?is)<(?:b|strong)[^>]*>\s*(\d{1,2}):(\d{2})\s*</(?:b|strong)>.{0,300}?<a[^>]*>([^<]+)</a>`)
)

// navDenylist holds normalized site-chrome phrases that the looser patterns
// sometimes capture instead of program titles.
var navDenylist = map[string]struct{}{
	"ver programacao completa": {},
	"programacao completa":     {},
	"programacao":              {},
	"ver mais":                 {},
	"menu":                     {},
	"inicio":                   {},
	"home":                     {},
	"canais":                   {},
	"filmes":                   {},
	"series":                   {},
	"contato":                  {},
	"sobre":                    {},
	"politica de privacidade":  {},
	"termos de uso":            {},
}

// rawEntry is one extracted row before date inference and dedup.
type rawEntry struct {
	title  string
	hour   int
	minute int
	abs    time.Time // set when the pattern captured a full timestamp
	hasAbs bool
}

// ParseSecondary parses the secondary provider's markup into a normalized
// program list. It returns nil when no extraction pattern yields enough
// plausible entries, which callers treat as a parse failure.
func ParseSecondary(channelID, markup string, now time.Time) []models.Program {
	entries := extractSecondaryEntries(markup)
	if len(entries) < minPlausibleEntries {
		return nil
	}

	workDate := dayStart(now)
	prevHour := -1
	seen := make(map[string]struct{})

	var programs []models.Program
	for _, e := range entries {
		var start time.Time
		if e.hasAbs {
			// An absolute timestamp needs no day-rollover inference.
			start = e.abs.In(now.Location())
		} else {
			if prevHour >= 0 && prevHour-e.hour > 6 {
				workDate = workDate.AddDate(0, 0, 1)
			}
			prevHour = e.hour
			start = time.Date(workDate.Year(), workDate.Month(), workDate.Day(),
				e.hour, e.minute, 0, 0, workDate.Location())
		}

		key := fmt.Sprintf("%d|%s", start.Unix(), e.title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		programs = append(programs, models.Program{
			ID:        models.ProgramID(channelID, start),
			ChannelID: channelID,
			Title:     e.title,
			Start:     start,
			End:       start.Add(defaultDuration),
		})
	}

	return NormalizeEndTimes(programs)
}

// extractSecondaryEntries runs the extraction patterns in priority order and
// returns the first result with enough plausible entries.
func extractSecondaryEntries(markup string) []rawEntry {
	extractors := []func(string) []rawEntry{
		extractTimestampAnchor,
		extractTimeAnchor,
		extractSlugAnchor,
		extractBoldTimeAnchor,
	}
	for _, extract := range extractors {
		entries := plausible(extract(markup))
		if len(entries) >= minPlausibleEntries {
			return entries
		}
	}
	return nil
}

// extractTimestampAnchor matches rows with a machine-readable start
// timestamp attribute. Most reliable: carries the full date and time.
func extractTimestampAnchor(markup string) []rawEntry {
	var entries []rawEntry
	for _, m := range timestampAnchorRe.FindAllStringSubmatch(markup, -1) {
		epoch, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		var abs time.Time
		if len(m[1]) == 13 {
			abs = time.UnixMilli(epoch)
		} else {
			abs = time.Unix(epoch, 0)
		}
		entries = append(entries, rawEntry{
			title:  decodeEntities(m[2]),
			abs:    abs,
			hasAbs: true,
		})
	}
	return entries
}

// extractTimeAnchor matches rows with a bare HH:MM label and an anchor title.
func extractTimeAnchor(markup string) []rawEntry {
	var entries []rawEntry
	for _, m := range timeAnchorRe.FindAllStringSubmatch(markup, -1) {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		entries = append(entries, rawEntry{
			title:  decodeEntities(m[3]),
			hour:   hour,
			minute: minute,
		})
	}
	return entries
}

// extractSlugAnchor matches rows whose anchor has no inline text; the title
// is recovered from the detail-page URL slug.
func extractSlugAnchor(markup string) []rawEntry {
	var entries []rawEntry
	for _, m := range slugAnchorRe.FindAllStringSubmatch(markup, -1) {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		entries = append(entries, rawEntry{
			title:  slugToTitle(m[3]),
			hour:   hour,
			minute: minute,
		})
	}
	return entries
}

// extractBoldTimeAnchor is the last-resort generic pattern: a bold time
// followed by adjacent anchor text.
func extractBoldTimeAnchor(markup string) []rawEntry {
	var entries []rawEntry
	for _, m := range boldTimeAnchorRe.FindAllStringSubmatch(markup, -1) {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		entries = append(entries, rawEntry{
			title:  decodeEntities(m[3]),
			hour:   hour,
			minute: minute,
		})
	}
	return entries
}

// plausible filters out entries with empty or denylisted titles and
// impossible clock values.
func plausible(entries []rawEntry) []rawEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.title == "" {
			continue
		}
		if _, banned := navDenylist[normalizeTitle(e.title)]; banned {
			continue
		}
		if !e.hasAbs && (e.hour > 23 || e.minute > 59) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// slugToTitle converts a URL slug into a human title: hyphens become spaces
// and each word is capitalized.
func slugToTitle(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
