package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lukemcguire/topicrawl/crawler"
	"github.com/lukemcguire/topicrawl/result"
)

// CrawlProgressMsg reports progress after one frontier entry finishes
// processing.
type CrawlProgressMsg struct {
	URLsVisited    int
	PagesEmitted   int
	FrontierSize   int
	URL            string
	Emitted        bool
	RelevanceScore float64
	Error          string
}

// CrawlDoneMsg signals the crawl has completed.
type CrawlDoneMsg struct {
	Result *result.Result
	Err    error
}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel. When the channel closes, it returns a nil message; the actual
// final result comes from startCrawl via CrawlDoneMsg.
func waitForProgress(ch <-chan crawler.CrawlEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return CrawlProgressMsg{
			URLsVisited:    evt.URLsVisited,
			PagesEmitted:   evt.PagesEmitted,
			FrontierSize:   evt.FrontierSize,
			URL:            evt.URL,
			Emitted:        evt.Emitted,
			RelevanceScore: evt.RelevanceScore,
			Error:          evt.Error,
		}
	}
}
