package parser

import (
	"regexp"
	"strconv"
	"time"

	"guiatv/models"
)

// Primary provider schema: optional date headers carrying day/month, then a
// flat stream of HH:MM + title + optional category triples in document order.
var (
	placeholderRe = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	dateHeaderRe  = regexp.MustCompile(`(?i)<h2[^>]*>[^<]*?(\d{1,2})/(\d{1,2})[^<]*</h2>`)
	programRe     = regexp.MustCompile(`(?i)<h3[^>]*>\s*(\d{1,2}):(\d{2})\s*</h3>\s*([^<]+?)\s*(?:<span[^>]*>([^<]*)</span>)?\s*<`)
)

// dateMark is a date header and its character offset in the document.
type dateMark struct {
	offset int
	date   time.Time
}

// ParsePrimary parses the primary provider's markup into a normalized
// program list. Markup without any date header defaults to now's day.
func ParsePrimary(channelID, markup string, now time.Time) []models.Program {
	markup = placeholderRe.ReplaceAllString(markup, "")
	// Program triples are matched up to the next tag; closing the document
	// keeps a trailing triple visible to the regex.
	markup += "<"

	marks := extractDateMarks(markup, now)

	var programs []models.Program
	segment := -1
	workDate := marks[0].date
	prevHour := -1

	for _, m := range programRe.FindAllStringSubmatchIndex(markup, -1) {
		offset := m[0]

		seg := lastMarkBefore(marks, offset)
		if seg != segment {
			segment = seg
			workDate = marks[seg].date
			prevHour = -1
		}

		hour, _ := strconv.Atoi(markup[m[2]:m[3]])
		minute, _ := strconv.Atoi(markup[m[4]:m[5]])
		if hour > 23 || minute > 59 {
			continue
		}

		// A schedule crossing midnight has no new header; a large hour drop
		// marks the day boundary.
		if prevHour >= 0 && prevHour-hour > 6 {
			workDate = workDate.AddDate(0, 0, 1)
		}
		prevHour = hour

		title := decodeEntities(markup[m[6]:m[7]])
		if title == "" {
			continue
		}
		category := ""
		if m[8] >= 0 {
			category = decodeEntities(markup[m[8]:m[9]])
		}

		start := time.Date(workDate.Year(), workDate.Month(), workDate.Day(),
			hour, minute, 0, 0, workDate.Location())

		programs = append(programs, models.Program{
			ID:        models.ProgramID(channelID, start),
			ChannelID: channelID,
			Title:     title,
			Category:  category,
			Start:     start,
			End:       start.Add(defaultDuration),
		})
	}

	return NormalizeEndTimes(programs)
}

// extractDateMarks collects all date headers with their offsets. When the
// page carries none, the whole document belongs to now's day at offset 0.
func extractDateMarks(markup string, now time.Time) []dateMark {
	matches := dateHeaderRe.FindAllStringSubmatchIndex(markup, -1)
	if len(matches) == 0 {
		return []dateMark{{offset: 0, date: dayStart(now)}}
	}

	marks := make([]dateMark, 0, len(matches))
	for _, m := range matches {
		day, _ := strconv.Atoi(markup[m[2]:m[3]])
		monthNum, _ := strconv.Atoi(markup[m[4]:m[5]])
		if day < 1 || day > 31 || monthNum < 1 || monthNum > 12 {
			continue
		}
		month := time.Month(monthNum)
		date := time.Date(yearFor(month, now), month, day, 0, 0, 0, 0, now.Location())
		marks = append(marks, dateMark{offset: m[0], date: date})
	}
	if len(marks) == 0 {
		return []dateMark{{offset: 0, date: dayStart(now)}}
	}
	return marks
}

// lastMarkBefore returns the index of the most recent date mark whose offset
// precedes the given document offset.
func lastMarkBefore(marks []dateMark, offset int) int {
	idx := 0
	for i, m := range marks {
		if m.offset <= offset {
			idx = i
		}
	}
	return idx
}
