package parser

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func secondaryTimestampRows(base time.Time, titles []string) string {
	var b strings.Builder
	for i, title := range titles {
		start := base.Add(time.Duration(i) * time.Hour)
		fmt.Fprintf(&b, `<li class="ep" data-start="%d"><a href="/programa/x">%s</a></li>`, start.Unix(), title)
	}
	return b.String()
}

func secondaryHourRows(times []string, titles []string) string {
	var b strings.Builder
	for i := range times {
		fmt.Fprintf(&b, `<div><span class="hora">%s</span> <a href="/p/%d">%s</a></div>`, times[i], i, titles[i])
	}
	return b.String()
}

func TestParseSecondaryTimestampPattern(t *testing.T) {
	now := time.Date(2024, 5, 12, 10, 0, 0, 0, time.Local)
	base := time.Date(2024, 5, 12, 15, 0, 0, 0, time.Local)
	titles := []string{"Show A", "Show B", "Show C", "Show D", "Show E"}

	programs := ParseSecondary("ch1", secondaryTimestampRows(base, titles), now)
	if len(programs) != 5 {
		t.Fatalf("expected 5 programs, got %d", len(programs))
	}
	if !programs[0].Start.Equal(base) {
		t.Errorf("expected start %v, got %v", base, programs[0].Start)
	}
	if programs[0].Title != "Show A" {
		t.Errorf("unexpected title %q", programs[0].Title)
	}
	// End times stitched to the next start; last gets the 1h placeholder.
	for i := 0; i < len(programs)-1; i++ {
		if !programs[i].End.Equal(programs[i+1].Start) {
			t.Errorf("program %d end not stitched to next start", i)
		}
	}
	if want := programs[4].Start.Add(time.Hour); !programs[4].End.Equal(want) {
		t.Errorf("last end = %v, want %v", programs[4].End, want)
	}
}

func TestParseSecondaryTimestampPatternWins(t *testing.T) {
	// Both the timestamp rows and looser hour rows are present; the
	// timestamp pattern is more reliable and must win.
	now := time.Date(2024, 5, 12, 10, 0, 0, 0, time.Local)
	base := time.Date(2024, 5, 13, 9, 0, 0, 0, time.Local) // tomorrow
	titles := []string{"A", "B", "C", "D", "E"}
	markup := secondaryTimestampRows(base, titles) +
		secondaryHourRows([]string{"01:00", "02:00", "03:00", "04:00", "05:00"},
			[]string{"X1", "X2", "X3", "X4", "X5"})

	programs := ParseSecondary("ch1", markup, now)
	if len(programs) != 5 {
		t.Fatalf("expected 5 programs, got %d", len(programs))
	}
	if got := programs[0].Start.Day(); got != 13 {
		t.Errorf("expected absolute timestamp date (day 13), got day %d", got)
	}
}

func TestParseSecondaryHourLabelPattern(t *testing.T) {
	now := time.Date(2024, 5, 12, 10, 0, 0, 0, time.Local)
	markup := secondaryHourRows(
		[]string{"15:00", "16:00", "17:30", "19:00", "21:00"},
		[]string{"Show A", "Show B", "Show C", "Show D", "Show E"},
	)

	programs := ParseSecondary("ch1", markup, now)
	if len(programs) != 5 {
		t.Fatalf("expected 5 programs, got %d", len(programs))
	}
	want := time.Date(2024, 5, 12, 17, 30, 0, 0, time.Local)
	if !programs[2].Start.Equal(want) {
		t.Errorf("expected start %v, got %v", want, programs[2].Start)
	}
}

func TestParseSecondaryHourLabelRollover(t *testing.T) {
	now := time.Date(2024, 5, 12, 20, 0, 0, 0, time.Local)
	markup := secondaryHourRows(
		[]string{"21:00", "22:00", "23:00", "00:30", "02:00"},
		[]string{"A", "B", "C", "D", "E"},
	)

	programs := ParseSecondary("ch1", markup, now)
	if len(programs) != 5 {
		t.Fatalf("expected 5 programs, got %d", len(programs))
	}
	if got := programs[2].Start.Day(); got != 12 {
		t.Errorf("expected 23:00 on day 12, got %d", got)
	}
	if got := programs[3].Start.Day(); got != 13 {
		t.Errorf("expected 00:30 rolled to day 13, got %d", got)
	}
}

func TestParseSecondarySlugPattern(t *testing.T) {
	now := time.Date(2024, 5, 12, 10, 0, 0, 0, time.Local)
	var b strings.Builder
	slugs := []string{"o-grande-show", "jornal-da-noite", "filme-da-semana", "desporto-total", "cinema-classico"}
	for i, slug := range slugs {
		fmt.Fprintf(&b, `<div class="row">1%d:00 <a href="https://example.com/programa/%s"></a></div>`, i, slug)
	}

	programs := ParseSecondary("ch1", b.String(), now)
	if len(programs) != 5 {
		t.Fatalf("expected 5 programs, got %d", len(programs))
	}
	if programs[0].Title != "O Grande Show" {
		t.Errorf("slug not converted to title: %q", programs[0].Title)
	}
	if programs[1].Title != "Jornal Da Noite" {
		t.Errorf("slug not converted to title: %q", programs[1].Title)
	}
}

func TestParseSecondaryBoldPattern(t *testing.T) {
	now := time.Date(2024, 5, 12, 10, 0, 0, 0, time.Local)
	var b strings.Builder
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, `<p><b>1%d:00</b> <a href="#">Show %d</a></p>`, i, i)
	}

	programs := ParseSecondary("ch1", b.String(), now)
	if len(programs) != 5 {
		t.Fatalf("expected 5 programs, got %d", len(programs))
	}
	if programs[0].Title != "Show 0" {
		t.Errorf("unexpected title %q", programs[0].Title)
	}
}

func TestParseSecondaryDenylistFiltersNavigation(t *testing.T) {
	now := time.Date(2024, 5, 12, 10, 0, 0, 0, time.Local)
	markup := secondaryHourRows(
		[]string{"10:00", "11:00", "12:00", "13:00", "14:00", "15:00"},
		[]string{"Show A", "Ver programa&ccedil;&atilde;o completa", "Show B", "Show C", "Show D", "Show E"},
	)

	programs := ParseSecondary("ch1", markup, now)
	if len(programs) != 5 {
		t.Fatalf("expected 5 programs after denylist, got %d", len(programs))
	}
	for _, p := range programs {
		if strings.Contains(strings.ToLower(p.Title), "completa") {
			t.Errorf("navigation text leaked into results: %q", p.Title)
		}
	}
}

func TestParseSecondaryDedup(t *testing.T) {
	now := time.Date(2024, 5, 12, 10, 0, 0, 0, time.Local)
	base := time.Date(2024, 5, 12, 15, 0, 0, 0, time.Local)
	markup := secondaryTimestampRows(base, []string{"A", "B", "C", "D", "E"})
	// Repeat the first row verbatim.
	dup := fmt.Sprintf(`<li class="ep" data-start="%d"><a href="/programa/x">A</a></li>`, base.Unix())

	programs := ParseSecondary("ch1", markup+dup, now)
	if len(programs) != 5 {
		t.Fatalf("expected duplicate suppressed, got %d programs", len(programs))
	}
}

func TestParseSecondaryTooFewEntriesFails(t *testing.T) {
	now := time.Date(2024, 5, 12, 10, 0, 0, 0, time.Local)
	markup := secondaryHourRows(
		[]string{"15:00", "16:00", "17:00", "18:00"},
		[]string{"A", "B", "C", "D"},
	)

	if programs := ParseSecondary("ch1", markup, now); programs != nil {
		t.Errorf("expected nil for <5 plausible entries, got %d programs", len(programs))
	}
}

func TestParseSecondaryGarbageFails(t *testing.T) {
	now := time.Now()
	if programs := ParseSecondary("ch1", "<html><body>maintenance</body></html>", now); programs != nil {
		t.Errorf("expected nil for unparseable markup, got %d programs", len(programs))
	}
}

func TestSlugToTitle(t *testing.T) {
	cases := map[string]string{
		"o-grande-show": "O Grande Show",
		"jornal":        "Jornal",
		"a-b-c":         "A B C",
	}
	for in, want := range cases {
		if got := slugToTitle(in); got != want {
			t.Errorf("slugToTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
