package ui

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	runewidth "github.com/mattn/go-runewidth"

	"github.com/hamzawahab/hotdrop/internal/events"
)

const (
	minBarWidth = 8
	maxBarWidth = 32
)

var (
	gradientStartRGB = [3]int{161, 130, 253}
	gradientEndRGB   = [3]int{94, 182, 255}
	ansiPattern      = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
)

func (u *UI) renderProgress(evt events.Event) {
	ps := evt.Progress
	if ps == nil {
		return
	}
	line := formatProgressLine(ps, terminalWidth(), time.Now())
	if ps.Done {
		u.finishProgressLine(ps.ID, line)
		return
	}
	u.updateProgressLine(ps.ID, line)
}

func (u *UI) updateProgressLine(id, line string) {
	u.progressMu.Lock()
	u.progressActive = true
	u.progressID = id
	u.progressLine = line
	u.progressMu.Unlock()

	u.printMu.Lock()
	fmt.Fprintf(u.rl.Stdout(), "\r\033[J%s", line)
	u.printMu.Unlock()
	u.rl.Refresh()
}

func (u *UI) finishProgressLine(id, line string) {
	u.progressMu.Lock()
	if u.progressID == id {
		u.progressActive = false
		u.progressLine = ""
		u.progressID = ""
	}
	u.progressMu.Unlock()

	u.printMu.Lock()
	fmt.Fprintf(u.rl.Stdout(), "\r\033[J%s\n", line)
	u.printMu.Unlock()
	u.rl.Refresh()
}

func progressPercent(ps *events.ProgressState) float64 {
	if ps.Done || ps.Total <= 0 {
		return 100
	}
	percent := float64(ps.Current) / float64(ps.Total) * 100
	return math.Max(0, math.Min(100, percent))
}

// formatProgressLine renders one line that fits width columns.
func formatProgressLine(ps *events.ProgressState, width int, now time.Time) string {
	if width <= 0 {
		width = bannerWidth
	}
	receiving := strings.EqualFold(ps.Direction, "receive")
	percent := progressPercent(ps)

	target := strings.TrimSpace(ps.Path)
	if target == "" {
		target = strings.TrimSpace(ps.Label)
	}
	target = filepath.Base(target)
	if target == "" || target == "." {
		target = "(unknown)"
	}

	verb, arrow, glyph := "Sending", "→", "⬆"
	if receiving {
		verb, arrow, glyph = "Receiving", "←", "⬇"
	}
	var metrics string
	if ps.Done {
		if receiving {
			verb = "Received"
		} else {
			verb = "Sent"
		}
		elapsed := "--:--"
		if !ps.StartedAt.IsZero() {
			elapsed = formatDuration(now.Sub(ps.StartedAt))
		}
		glyph = colorSuccess + "✓" + colorReset
		metrics = fmt.Sprintf("%s100%%%s • %s • %s", colorSuccess, colorReset, humanBytes(ps.Total), elapsed)
	} else {
		metrics = fmt.Sprintf("%s%5.1f%%%s • ETA %s", colorPrimary, percent, colorReset, formatETA(ps.StartedAt, now, percent))
	}

	summary := fmt.Sprintf("%s %s %s%s%s", glyph, verb, colorPrimary, target, colorReset)
	if peer := strings.TrimSpace(ps.Peer); peer != "" {
		summary += fmt.Sprintf(" %s%s %s%s", colorMuted, arrow, peer, colorReset)
	}

	maxWidth := width - 2
	bar := clampInt(width/4, minBarWidth, maxBarWidth)
	for {
		line := summary + "  " + buildGradientBar(percent, bar) + "  " + metrics
		if visibleWidth(line) <= maxWidth {
			return "\r" + line
		}
		if bar > minBarWidth {
			bar--
			continue
		}
		if i := strings.Index(metrics, " •"); i > 0 {
			metrics = metrics[:i] + colorReset
			continue
		}
		rest := visibleWidth("  " + buildGradientBar(percent, bar) + "  " + metrics)
		plain := runewidth.Truncate(stripANSI(summary), max(maxWidth-rest, 1), "…")
		return "\r" + plain + "  " + buildGradientBar(percent, bar) + "  " + metrics
	}
}

func buildGradientBar(percent float64, width int) string {
	filled := clampInt(int(math.Round(percent/100*float64(width))), 0, width)
	var sb strings.Builder
	sb.WriteString(colorMuted + "▏")
	for i := 0; i < width; i++ {
		if i < filled {
			ratio := 0.0
			if width > 1 {
				ratio = float64(i) / float64(width-1)
			}
			sb.WriteString(gradientColor(ratio))
			sb.WriteRune('█')
		} else {
			sb.WriteString(colorBarEmpty)
			sb.WriteRune('░')
		}
	}
	sb.WriteString(colorMuted + "▕" + colorReset)
	return sb.String()
}

func gradientColor(ratio float64) string {
	ratio = math.Max(0, math.Min(1, ratio))
	var rgb [3]int
	for i := range rgb {
		rgb[i] = gradientStartRGB[i] + int(ratio*float64(gradientEndRGB[i]-gradientStartRGB[i]))
	}
	return fmt.Sprintf("\033[38;2;%d;%d;%dm", rgb[0], rgb[1], rgb[2])
}

func humanBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(n)
	idx := 0
	for value >= 1024 && idx < len(units)-1 {
		value /= 1024
		idx++
	}
	if value >= 10 || idx == 0 {
		return fmt.Sprintf("%.0f %s", value, units[idx])
	}
	return fmt.Sprintf("%.1f %s", value, units[idx])
}

func formatETA(start, now time.Time, percent float64) string {
	progress := percent / 100
	if progress <= 0 || start.IsZero() {
		return "--:--"
	}
	elapsed := now.Sub(start)
	if elapsed <= 0 {
		return "--:--"
	}
	return formatDuration(time.Duration(float64(elapsed) * (1 - progress) / progress))
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int(d/time.Minute) % 60
	seconds := int(d/time.Second) % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func visibleWidth(s string) int {
	clean := strings.NewReplacer("\r", "", "\n", "").Replace(stripANSI(s))
	return runewidth.StringWidth(clean)
}

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
