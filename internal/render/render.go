package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/vmon/internal/model"
)

const (
	colorReset   = "\033[0m"
	colorPage    = "\033[1;34m" // bold blue
	colorProduct = "\033[1;35m" // bold magenta
	colorCart    = "\033[1;32m" // bold green
	colorAlert   = "\033[1;31m" // bold red
	colorDim     = "\033[2m"
	colorHit     = "\033[43m" // yellow background
	colorBoldRed = "\033[1;31m"
)

type Options struct {
	Context int    // newest events to show (0 = 50, <0 = all)
	Width   int    // wrap width (0 = no wrap)
	Query   string // search term to highlight in urls
	Plain   bool   // no ANSI colors
	Now     time.Time
}

// highlightKeywords wraps case-insensitive matches of query terms in bold red ANSI codes.
func highlightKeywords(text, query string) string {
	if query == "" {
		return text
	}
	for _, term := range strings.Fields(query) {
		lower := strings.ToLower(term)
		i := 0
		for i < len(text) {
			idx := strings.Index(strings.ToLower(text[i:]), lower)
			if idx < 0 {
				break
			}
			pos := i + idx
			orig := text[pos : pos+len(term)]
			replacement := colorBoldRed + orig + colorReset
			text = text[:pos] + replacement + text[pos+len(term):]
			i = pos + len(replacement)
		}
	}
	return text
}

// indentLines prepends each line of text with the given prefix.
func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// wrapLine breaks a single line into multiple lines that fit within maxWidth
// visible columns, correctly skipping ANSI escape sequences when measuring width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		// check for ANSI escape sequence: ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}

	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// stripANSI removes color codes so plain output stays pipe-friendly.
func stripANSI(s string) string {
	if !strings.Contains(s, "\033[") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// writer accumulates wrapped lines and counts them.
type writer struct {
	b     strings.Builder
	lines int
	width int
	plain bool
}

func (w *writer) line(s string) {
	if w.plain {
		s = stripANSI(s)
	}
	for _, l := range strings.Split(s, "\n") {
		for _, wl := range wrapLine(l, w.width) {
			w.b.WriteString(wl)
			w.b.WriteString("\n")
			w.lines++
		}
	}
}

func eventColor(typ string) string {
	switch typ {
	case model.EventPageView:
		return colorPage
	case model.EventViewProduct:
		return colorProduct
	case model.EventAddToCart, model.EventStartCheckout:
		return colorCart
	case model.EventRageClick:
		return colorAlert
	default:
		return colorDim
	}
}

// EventLabel turns "add_to_cart" into "ADD TO CART".
func EventLabel(typ string) string {
	return strings.ToUpper(strings.ReplaceAll(typ, "_", " "))
}

// Session renders the detail timeline of one session and returns the content
// and the 0-based line of the newest event (-1 when there are none).
func Session(s model.Session, opts Options) (string, int) {
	if opts.Context == 0 {
		opts.Context = 50
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	w := &writer{width: opts.Width, plain: opts.Plain}
	separator := colorDim + "--------------------------------------------------" + colorReset

	status := s.Status
	if s.IsLive() {
		status = colorCart + status + colorReset
	}
	w.line(fmt.Sprintf("%s--- %s ---%s %s", colorDim, s.ShortID(), colorReset, status))
	w.line(fmt.Sprintf("%svisitor%s %s  %s  %s  %s", colorDim, colorReset,
		VisitorName(s.Visitor, s.VisitorID), s.Country(), orDash(s.DeviceType), s.Source))
	w.line(fmt.Sprintf("%sactive%s  %s  %sduration%s %s  %sevents%s %d",
		colorDim, colorReset, Ago(s.LastActiveAt.Time, opts.Now),
		colorDim, colorReset, Duration(s.StartTime.Time, s.LastActiveAt.Time),
		colorDim, colorReset, s.EventCount()))
	w.line(fmt.Sprintf("%sintent%s  %s (%.0f)  %spurchase%s %s  %srecording%s %s",
		colorDim, colorReset, s.IntentLabel, s.IntentScore,
		colorDim, colorReset, s.PurchaseStatus,
		colorDim, colorReset, s.RecordingStatus))
	if s.VIP {
		w.line(colorCart + "VIP" + colorReset)
	}
	if len(s.CartSnapshots) > 0 {
		last := s.CartSnapshots[len(s.CartSnapshots)-1]
		w.line(fmt.Sprintf("%scart%s    %d items, %.2f", colorDim, colorReset, last.ItemCount, last.Value))
	}
	w.line(fmt.Sprintf("%snext%s    %s", colorDim, colorReset, s.RecommendAction()))
	if s.Insight != nil && s.Insight.Summary != "" {
		w.line("")
		w.line(indentLines(s.Insight.Summary, "  "))
	}
	w.line(separator)

	events := s.Events
	skipped := 0
	if opts.Context > 0 && len(events) > opts.Context {
		skipped = len(events) - opts.Context
		events = events[skipped:]
	}
	if skipped > 0 {
		w.line(fmt.Sprintf("%s... (%d earlier events) ...%s", colorDim, skipped, colorReset))
	}

	newest := -1
	for i, e := range events {
		color := eventColor(e.Type)
		if i == len(events)-1 {
			newest = w.lines
			if s.IsLive() {
				color = colorHit
			}
		}
		w.line(fmt.Sprintf("%s%s%s %s%s%s",
			color, EventLabel(e.Type), colorReset,
			colorDim, e.Timestamp.Local().Format("15:04:05"), colorReset))
		if target := e.Path; target != "" || e.URL != "" {
			if target == "" {
				target = e.URL
			}
			w.line("  " + highlightKeywords(target, opts.Query))
		}
		if len(e.Metadata) > 0 {
			if meta, err := json.MarshalIndent(e.Metadata, "", "  "); err == nil {
				w.line(indentLines(string(meta), "  "))
			}
		}
	}
	if !s.StartTime.IsZero() {
		w.line(fmt.Sprintf("%ssession started %s%s", colorDim, s.StartTime.Local().Format("15:04:05"), colorReset))
	}
	return w.b.String(), newest
}

// History renders a visitor's profile followed by their past sessions.
func History(v *model.Visitor, sessions []model.Session, opts Options) string {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	w := &writer{width: opts.Width, plain: opts.Plain}
	if v != nil {
		w.line(fmt.Sprintf("%s--- %s ---%s %s  %s  %d sessions",
			colorDim, VisitorName(v, v.ID), colorReset, v.Country, v.Lifecycle, v.SessionCount))
		if v.LTV > 0 {
			w.line(fmt.Sprintf("%sltv%s %.2f", colorDim, colorReset, v.LTV))
		}
		if len(v.Tags) > 0 {
			w.line(colorDim + "tags" + colorReset + " " + strings.Join(v.Tags, ", "))
		}
		if v.Notes != "" {
			w.line(indentLines(v.Notes, "  "))
		}
	}
	if len(sessions) == 0 {
		w.line(colorDim + "(no previous sessions)" + colorReset)
		return w.b.String()
	}
	for _, s := range sessions {
		w.line(fmt.Sprintf("%s  %-6s  %-7s  %3d events  %s  %s",
			s.ShortID(), s.Status, s.PurchaseStatus, s.EventCount(),
			Ago(s.LastActiveAt.Time, opts.Now), Icons(s.Events, 5, opts.Plain)))
	}
	return w.b.String()
}

var icons = map[string]string{
	model.EventPageView:      "👁",
	model.EventViewProduct:   "🔍",
	model.EventAddToCart:     "🛒",
	model.EventStartCheckout: "💳",
	model.EventRageClick:     "⚠",
	model.EventTrackerLoaded: "✓",
}

var letters = map[string]string{
	model.EventPageView:      "p",
	model.EventViewProduct:   "v",
	model.EventAddToCart:     "c",
	model.EventStartCheckout: "$",
	model.EventRageClick:     "!",
	model.EventTrackerLoaded: "t",
}

// Icons returns up to n event markers, oldest first. Heartbeats are noise
// in the compact view and are skipped.
func Icons(events []model.Event, n int, plain bool) string {
	set := icons
	if plain {
		set = letters
	}
	var out []string
	for _, e := range events {
		if e.Type == model.EventHeartbeat {
			continue
		}
		if len(out) == n {
			break
		}
		mark, ok := set[e.Type]
		if !ok {
			mark = "·"
			if plain {
				mark = "."
			}
		}
		out = append(out, mark)
	}
	return strings.Join(out, "")
}

// VisitorName prefers the human label, then the visitor id.
func VisitorName(v *model.Visitor, fallback string) string {
	if v != nil && v.Label != "" {
		return v.Label
	}
	if fallback == "" {
		return "anonymous"
	}
	if len(fallback) > 8 {
		return fallback[:8]
	}
	return fallback
}

// Ago formats t relative to now in the largest whole unit.
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < 0:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// Duration formats end-start as m:ss, or h:mm:ss past an hour.
func Duration(start, end time.Time) string {
	if start.IsZero() || end.Before(start) {
		return "-"
	}
	d := end.Sub(start).Round(time.Second)
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
