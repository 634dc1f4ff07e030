package render

import (
	"fmt"
	"io"
	"strings"

	"docwatch/internal/models"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/width"
)

const cellGlyph = "██"

// Theme holds the colors used outside the heatmap cells.
type Theme struct {
	Title    lipgloss.Color
	Label    lipgloss.Color
	Warning  lipgloss.Color
	Hint     lipgloss.Color
	Critical lipgloss.Color
}

var defaultTheme = Theme{
	Title:    lipgloss.Color("#5FAFD7"), // light blue
	Label:    lipgloss.Color("#D0D0D0"), // light gray
	Warning:  lipgloss.Color("#FFAF00"), // amber
	Hint:     lipgloss.Color("#6C6C6C"), // dim gray
	Critical: lipgloss.Color("#FF005F"), // red
}

func (t Theme) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Title).Bold(true)
}

func (t Theme) labelStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Label)
}

func (t Theme) warningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warning).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) levelStyle(level models.RiskLevel) lipgloss.Style {
	switch level {
	case models.RiskExtremeHigh, models.RiskHigh:
		return lipgloss.NewStyle().Foreground(t.Critical).Bold(true)
	case models.RiskMedium:
		return lipgloss.NewStyle().Foreground(t.Warning)
	default:
		return t.labelStyle()
	}
}

// ColorFor returns the color of the first stop at or above v.
func ColorFor(scale []models.ColorStop, v float64) string {
	if len(scale) == 0 {
		scale = models.DefaultColorScale
	}
	for _, stop := range scale {
		if v <= stop.Value {
			return stop.Color
		}
	}
	return scale[len(scale)-1].Color
}

// Heatmap draws a clustered heatmap: one line per table, two glyphs per
// column, followed by a legend mapping column positions to names.
func Heatmap(w io.Writer, hm *models.ClusteredHeatmap) error {
	theme := defaultTheme
	if hm == nil || len(hm.Matrix) == 0 {
		_, err := fmt.Fprintln(w, theme.hintStyle().Render("no tables to display"))
		return err
	}

	labelWidth := 0
	for _, name := range hm.TableNames {
		labelWidth = max(labelWidth, displayWidth(name))
	}

	var b strings.Builder
	b.WriteString(theme.titleStyle().Render(fmt.Sprintf("Risk heatmap (%s, %s)", hm.Method, hm.Orientation)))
	b.WriteString("\n")

	b.WriteString(strings.Repeat(" ", labelWidth+1))
	for j := range hm.ColumnNames {
		b.WriteString(theme.hintStyle().Render(fmt.Sprintf("%-2d", (j+1)%100)))
	}
	b.WriteString("\n")

	for i, row := range hm.Matrix {
		name := ""
		if i < len(hm.TableNames) {
			name = hm.TableNames[i]
		}
		b.WriteString(theme.labelStyle().Render(name + strings.Repeat(" ", labelWidth-displayWidth(name))))
		b.WriteString(" ")
		for _, v := range row {
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorFor(hm.ColorScale, v)))
			b.WriteString(style.Render(cellGlyph))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for j, col := range hm.ColumnNames {
		b.WriteString(theme.hintStyle().Render(fmt.Sprintf("%2d", j+1)))
		b.WriteString(" ")
		b.WriteString(theme.labelStyle().Render(col))
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("quality %.3f (baseline %.3f), diagonal %.1f%%\n",
		hm.Quality, hm.BaselineQuality, hm.DiagonalScore))
	if hm.Degraded {
		b.WriteString(theme.warningStyle().Render("degraded: " + hm.DegradedReason))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Summary prints one line per table, highest risk first, and any failures.
func Summary(w io.Writer, set *models.ComprehensiveScoreSet) error {
	theme := defaultTheme
	if set == nil {
		return nil
	}

	var b strings.Builder
	b.WriteString(theme.titleStyle().Render(fmt.Sprintf("Run %s: %d tables, %d modifications",
		set.Metadata.RunID, len(set.Tables), set.Statistics.TotalModifications)))
	b.WriteString("\n")

	for _, t := range set.Tables {
		line := fmt.Sprintf("%-6.3f %-12s %-16s %s", t.OverallRiskScore, t.RiskLevel, t.RecommendedAction, t.Name)
		b.WriteString(theme.levelStyle(t.RiskLevel).Render(line))
		if t.Status == models.StatusDegraded {
			b.WriteString(" ")
			b.WriteString(theme.warningStyle().Render("(degraded)"))
		}
		b.WriteString("\n")
		for _, r := range t.TopRisks {
			b.WriteString(theme.hintStyle().Render(fmt.Sprintf("       %s %.3f", r.Column, r.Score)))
			b.WriteString("\n")
		}
	}

	for _, f := range set.Failures {
		b.WriteString(theme.warningStyle().Render(fmt.Sprintf("failed %s: %s", f.TableName, f.Reason)))
		b.WriteString("\n")
	}

	stats := set.Statistics
	b.WriteString(fmt.Sprintf("AI decided %.0f%%, fallback %.0f%%, suppressed %d\n",
		stats.AIInterventionRate*100, stats.FallbackRate*100, stats.SuppressedChanges))

	_, err := io.WriteString(w, b.String())
	return err
}

// Changes prints the scored modifications of one table.
func Changes(w io.Writer, s *models.TableScoreSummary) error {
	theme := defaultTheme
	if s == nil {
		return nil
	}

	var b strings.Builder
	b.WriteString(theme.titleStyle().Render(fmt.Sprintf("%s: %.3f %s (%s)",
		s.TableName, s.OverallRiskScore, s.RiskLevel, s.RecommendedAction)))
	b.WriteString("\n")
	if len(s.Modifications) == 0 {
		b.WriteString(theme.hintStyle().Render("no changes"))
		b.WriteString("\n")
	}

	for _, m := range s.Modifications {
		line := fmt.Sprintf("%-6s %s %s: %q -> %q", m.Cell, m.RiskTier, m.ColumnName, m.OldValue, m.NewValue)
		if m.Suppressed {
			b.WriteString(theme.hintStyle().Render(line + " (format only)"))
		} else {
			b.WriteString(theme.labelStyle().Render(line))
			b.WriteString(theme.hintStyle().Render(fmt.Sprintf(" %.3f %s", m.RiskScore, m.DecisionSource)))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// displayWidth counts East Asian wide runes as two cells.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}
