// Package announce projects a classified submission into a structured
// chat announcement. Build is pure: the same event, config and clock
// always produce byte-identical output. Every policy decision comes from
// the settings document's typed palettes.
package announce

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fretwork/herald/models"
	"github.com/fretwork/herald/settings"
)

// Category selects the announcement flavor.
type Category int

const (
	RecordBreak Category = iota
	FirstTime
	PersonalBest
	FullCombo
)

// Field is one name/value pair of the announcement document.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Announcement is the finished document handed to the chat transport.
type Announcement struct {
	Title       string
	Description string
	Color       int // 0xRRGGBB
	Fields      []Field
	Footer      string
}

// Event is everything known about one classified submission.
type Event struct {
	Category    Category
	UserName    string
	Fingerprint models.Fingerprint

	Score             int
	Stars             int
	CompletionPercent float64
	PlayCount         int
	BestStreak        *int
	NotesHit          *int
	NotesTotal        *int
	NPS               float64

	Title   string
	Artist  string
	Charter string

	PreviousScore       *int
	PreviousHolder      string
	PreviousSubmittedAt *time.Time
	ServerRecord        int
	RecordHolder        string

	IsFirstFC       bool
	IsFCRecordBreak bool
	IsRetroactive   bool
}

// Formatter renders events under one settings snapshot.
type Formatter struct {
	cfg     settings.AnnouncementsConfig
	display settings.DisplayConfig
	tiers   settings.TiersConfig
	loc     *time.Location
}

// New builds a formatter from the loaded settings document. An unknown
// display timezone falls back to UTC.
func New(s *settings.Settings) *Formatter {
	display := s.Display()
	loc, err := time.LoadLocation(display.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Formatter{
		cfg:     s.Announcements(),
		display: display,
		tiers:   s.Tiers(),
		loc:     loc,
	}
}

// scores print with thousands grouping ("123,456").
var scorePrinter = message.NewPrinter(language.English)

// Build renders one event. ok is false when the category is disabled or
// the event fails its thresholds.
func (f *Formatter) Build(ev Event, now time.Time) (*Announcement, bool) {
	cc, acc := f.categoryConfig(ev.Category)
	if !cc.Enabled {
		return nil, false
	}
	if !f.passesGates(ev, cc) {
		return nil, false
	}

	a := &Announcement{Color: parseColor(cc.EmbedColor)}
	a.Title, a.Description = f.heading(ev)

	p := cc.Palette()
	f.appendFields(a, ev, p, acc, now)

	if ev.Category == RecordBreak {
		a.Footer = f.recordFooter(ev, p, now)
	}
	return a, true
}

func (f *Formatter) categoryConfig(c Category) (settings.CategoryConfig, settings.AccuracyDisplay) {
	switch c {
	case RecordBreak:
		return f.cfg.RecordBreaks, f.cfg.AccuracyDisplay.RecordBreaks
	case FirstTime:
		return f.cfg.FirstTimeScores, f.cfg.AccuracyDisplay.FirstTimeScores
	case PersonalBest:
		return f.cfg.PersonalBests, f.cfg.AccuracyDisplay.PersonalBests
	default:
		return f.cfg.FullCombos, f.cfg.AccuracyDisplay.FullCombos
	}
}

func (f *Formatter) passesGates(ev Event, cc settings.CategoryConfig) bool {
	switch ev.Category {
	case RecordBreak:
		return ev.Score >= cc.MinScoreThreshold
	case PersonalBest:
		if ev.PreviousScore == nil {
			return true
		}
		points := ev.Score - *ev.PreviousScore
		percent := 0.0
		if *ev.PreviousScore > 0 {
			percent = float64(points) / float64(*ev.PreviousScore) * 100
		}
		meetsPoints := points >= cc.MinImprovementPoints
		meetsPercent := percent >= cc.MinImprovementPercent
		if cc.ThresholdMode == "either" {
			return meetsPoints || meetsPercent
		}
		return meetsPoints && meetsPercent
	case FullCombo:
		switch {
		case ev.IsRetroactive:
			return cc.AnnounceRetroactiveFCs
		case ev.IsFCRecordBreak:
			return cc.AnnounceFCRecordBreak
		case ev.IsFirstFC:
			return cc.AnnounceFirstFC
		default:
			return cc.AnnounceRegularFC
		}
	}
	return true
}

func (f *Formatter) heading(ev Event) (title, description string) {
	song := ev.Title
	if song == "" {
		song = ev.Fingerprint.ShortID()
	}
	switch ev.Category {
	case RecordBreak:
		return "🏆 New Server Record!",
			fmt.Sprintf("**%s** took the record on **%s**", ev.UserName, song)
	case FirstTime:
		return "🎸 First Score!",
			fmt.Sprintf("**%s** set the first score on **%s**", ev.UserName, song)
	case PersonalBest:
		return "📈 Personal Best!",
			fmt.Sprintf("**%s** beat their best on **%s**", ev.UserName, song)
	default:
		title = "💯 Full Combo!"
		if ev.IsFirstFC {
			title = "👑 First Full Combo!"
		}
		if ev.IsRetroactive {
			title = "💯 Full Combo (retroactive)"
		}
		return title, fmt.Sprintf("**%s** full-comboed **%s**", ev.UserName, song)
	}
}

// appendFields walks the palette in its one fixed order. Every toggle is
// a struct field, so adding an announcement field is a schema change.
func (f *Formatter) appendFields(a *Announcement, ev Event, p settings.FieldPalette, acc settings.AccuracyDisplay, now time.Time) {
	add := func(name, value string, inline bool) {
		if value != "" {
			a.Fields = append(a.Fields, Field{Name: name, Value: value, Inline: inline})
		}
	}

	if p.SongTitle {
		title := ev.Title
		if title == "" {
			title = ev.Fingerprint.ShortID()
		}
		add("Song", title, true)
	}
	if p.Artist {
		add("Artist", ev.Artist, true)
	}
	if p.DifficultyInstrument {
		label := fmt.Sprintf("%s %s", ev.Fingerprint.Difficulty, ev.Fingerprint.Instrument)
		if tier, ok := f.tiers.ForNPS(ev.NPS); ok && ev.NPS > 0 {
			label = fmt.Sprintf("%s %s %s", label, tier.Emoji, tier.Name)
		}
		add("Difficulty", label, true)
	}
	if p.Score {
		value := scorePrinter.Sprintf("%d", ev.Score)
		if p.Improvement && ev.PreviousScore != nil &&
			(ev.Category == RecordBreak || ev.Category == PersonalBest) {
			value = scorePrinter.Sprintf("%d (+%d)", ev.Score, ev.Score-*ev.PreviousScore)
		}
		add("Score", value, true)
	}
	if p.Stars && ev.Stars > 0 {
		add("Stars", strings.Repeat("⭐", ev.Stars), true)
	}
	if p.Charter {
		add("Charter", ev.Charter, true)
	}
	if p.Accuracy {
		first, second := f.accuracyValues(ev, acc)
		if acc.Format == "separate_fields" {
			add("Accuracy", first, true)
			add("Notes", second, true)
		} else {
			add("Accuracy", first, true)
		}
	}
	if p.PlayCount && ev.PlayCount > 0 {
		add("Plays", strconv.Itoa(ev.PlayCount), true)
	}
	if p.BestStreak && ev.BestStreak != nil {
		add("Best Streak", scorePrinter.Sprintf("%d", *ev.BestStreak), true)
	}
	if p.PreviousRecord && ev.Category == RecordBreak && ev.PreviousScore != nil {
		add("Previous Record", scorePrinter.Sprintf("%d", *ev.PreviousScore), true)
	}
	if p.PreviousBest && ev.Category == PersonalBest && ev.PreviousScore != nil {
		add("Previous Best", scorePrinter.Sprintf("%d", *ev.PreviousScore), true)
	}
	if p.ServerRecordHolder && ev.RecordHolder != "" {
		add("Record Holder", scorePrinter.Sprintf("%s (%d)", ev.RecordHolder, ev.ServerRecord), true)
	}
	if p.EnchorLink {
		add("Find Chart", searchLink(ev.Title, ev.Artist, ev.Charter), false)
	}
	if p.ChartHash {
		hash := ev.Fingerprint.ChartID
		if p.ChartHashFormat != "full" && len(hash) >= 8 {
			hash = hash[:8]
		}
		add("Chart ID", "`"+hash+"`", true)
	}
	if p.Timestamp {
		add("When", f.formatTime(now), true)
	}
}

// accuracyValues renders the accuracy field per the configured format.
// The second value is only used by separate_fields.
func (f *Formatter) accuracyValues(ev Event, acc settings.AccuracyDisplay) (string, string) {
	percent := fmt.Sprintf("%.2f%%", ev.CompletionPercent)
	notes := ""
	if ev.NotesHit != nil && ev.NotesTotal != nil {
		notes = fmt.Sprintf("%d/%d", *ev.NotesHit, *ev.NotesTotal)
		if acc.ShowNotesLabel {
			notes += " notes"
		}
	}

	switch acc.Format {
	case "notes_only":
		if notes != "" {
			return notes, ""
		}
		return percent, ""
	case "combined_percentage_first":
		if notes != "" {
			return fmt.Sprintf("%s (%s)", percent, notes), ""
		}
		return percent, ""
	case "combined_notes_first":
		if notes != "" {
			return fmt.Sprintf("%s (%s)", notes, percent), ""
		}
		return percent, ""
	case "separate_fields":
		return percent, strings.TrimSuffix(notes, " notes")
	default: // percentage_only
		return percent, ""
	}
}

// recordFooter joins the enabled footer parts with " • ".
func (f *Formatter) recordFooter(ev Event, p settings.FieldPalette, now time.Time) string {
	var parts []string
	if p.FooterShowPreviousHolder && ev.PreviousHolder != "" {
		parts = append(parts, "Previous holder: "+ev.PreviousHolder)
	}
	if p.FooterShowPreviousScore && ev.PreviousScore != nil {
		parts = append(parts, scorePrinter.Sprintf("Previous score: %d", *ev.PreviousScore))
	}
	if p.FooterShowHeldDuration && ev.PreviousSubmittedAt != nil {
		parts = append(parts, "Held for "+humanDuration(now.Sub(*ev.PreviousSubmittedAt)))
	}
	if p.FooterShowTimestamp && ev.PreviousSubmittedAt != nil {
		parts = append(parts, "Set "+f.formatTime(*ev.PreviousSubmittedAt))
	}
	return strings.Join(parts, " • ")
}

// formatTime renders a UTC instant in the display timezone per the
// configured date and time formats.
func (f *Formatter) formatTime(t time.Time) string {
	local := t.In(f.loc)

	var dateLayout string
	switch f.display.DateFormat {
	case "DD/MM/YYYY":
		dateLayout = "02/01/2006"
	case "YYYY-MM-DD":
		dateLayout = "2006-01-02"
	default:
		dateLayout = "01/02/2006"
	}
	timeLayout := "3:04 PM"
	if f.display.TimeFormat == "24-hour" {
		timeLayout = "15:04"
	}

	out := local.Format(dateLayout + " " + timeLayout)
	if f.display.ShowTimezoneInEmbeds {
		out += " " + local.Format("MST")
	}
	return out
}

// humanDuration renders a duration as its largest sensible unit:
// "3 days", "5 hours", "42 minutes".
func humanDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d >= 24*time.Hour:
		return plural(int(d.Hours()/24), "day")
	case d >= time.Hour:
		return plural(int(d.Hours()), "hour")
	default:
		return plural(int(d.Minutes()), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// parseColor turns "#RRGGBB" into an int; bad input renders neutral grey.
func parseColor(s string) int {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseInt(s, 16, 32)
	if err != nil {
		return 0x99AAB5
	}
	return int(v)
}
