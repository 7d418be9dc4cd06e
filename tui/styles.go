package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/lukemcguire/topicrawl/result"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	successStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
	urlStyle      = lipgloss.NewStyle()
	scoreStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// categoryOrder defines the display order for skip reasons (most to least actionable).
var categoryOrder = []result.ErrorCategory{
	result.CategoryRobotsDenied,
	result.CategoryHostBudget,
	result.CategoryDepthExceeded,
	result.CategoryDuplicate,
	result.CategoryExtractionFailed,
	result.Category4xx,
	result.Category5xx,
	result.CategoryTimeout,
	result.CategoryDNSFailure,
	result.CategoryConnectionRefused,
	result.CategoryRedirectLoop,
	result.CategoryUnknown,
}

// RenderSummary produces a Lip Gloss styled summary of the crawl, listing
// the emitted pages ranked by relevance and a breakdown of skipped URLs.
func RenderSummary(res *result.Result) string {
	if res == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder

	if len(res.Pages) == 0 {
		builder.WriteString(errorStyle.Render("No pages emitted."))
		builder.WriteString("\n")
	} else {
		builder.WriteString(successStyle.Render(fmt.Sprintf("Emitted %d pages", len(res.Pages))))
		builder.WriteString("\n")

		ranked := append([]result.PageRecord(nil), res.Pages...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].RelevanceScore > ranked[j].RelevanceScore
		})

		rows := make([][]string, 0, len(ranked))
		for _, page := range ranked {
			rows = append(rows, []string{
				fmt.Sprintf("%.2f", page.RelevanceScore),
				page.Title,
				page.URL,
			})
		}

		pageTable := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("Score", "Title", "URL").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 0 {
					return scoreStyle
				}
				return urlStyle
			}).
			Rows(rows...)

		builder.WriteString(pageTable.Render())
		builder.WriteString("\n\n")
	}

	grouped := make(map[result.ErrorCategory][]result.SkippedURL)
	for _, skip := range res.Skipped {
		cat := skip.Reason
		if cat == "" {
			cat = result.CategoryUnknown
		}
		grouped[cat] = append(grouped[cat], skip)
	}

	for _, cat := range categoryOrder {
		skips, exists := grouped[cat]
		if !exists || len(skips) == 0 {
			continue
		}

		builder.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", result.FormatCategory(cat), len(skips))))
		builder.WriteString("\n")

		rows := make([][]string, 0, len(skips))
		for _, skip := range skips {
			rows = append(rows, []string{skip.URL, skip.Detail})
		}

		skipTable := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("URL", "Detail").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return urlStyle
			}).
			Rows(rows...)

		builder.WriteString(skipTable.Render())
		builder.WriteString("\n\n")
	}

	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"Visited %d URLs, %d duplicates, %d robots-denied (%s)",
		res.Stats.URLsVisited,
		res.Stats.DuplicatesFound,
		res.Stats.RobotsDenied,
		res.Stats.Duration.Round(1_000_000),
	)))
	builder.WriteString("\n")

	return builder.String()
}
