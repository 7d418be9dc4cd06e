// Package result provides types and output writers for crawl results.
package result

import "time"

// PageRecord is emitted for each successfully fetched, non-duplicate,
// extracted page.
type PageRecord struct {
	URL            string     `json:"url"`
	Title          string     `json:"title"`
	Text           string     `json:"text"`
	Summary        string     `json:"summary,omitempty"`
	Keywords       []string   `json:"keywords,omitempty"`
	Authors        []string   `json:"authors,omitempty"`
	PublishDate    *time.Time `json:"publish_date,omitempty"`
	RelevanceScore float64    `json:"relevance_score"`
}

// SkippedURL records a URL that was visited but produced no PageRecord,
// along with the reason. Used for the TUI summary's breakdown of skipped
// URLs; the JSON and CSV writers only ever hold PageRecords.
type SkippedURL struct {
	URL        string        `json:"url"`
	SourcePage string        `json:"source_page"`
	Reason     ErrorCategory `json:"reason"`
	Detail     string        `json:"detail,omitempty"`
}

// CrawlStats contains aggregate statistics for a crawl run.
type CrawlStats struct {
	URLsVisited      int           `json:"urls_visited"`
	PagesEmitted     int           `json:"pages_emitted"`
	DuplicatesFound  int           `json:"duplicates_found"`
	RobotsDenied     int           `json:"robots_denied"`
	ExtractFailures  int           `json:"extract_failures"`
	FetchFailures    int           `json:"fetch_failures"`
	FrontierOverflow int           `json:"frontier_overflow"`
	Duration         time.Duration `json:"duration"`
}

// Result is the complete output of a crawl run.
type Result struct {
	Pages     []PageRecord `json:"pages"`
	Skipped   []SkippedURL `json:"-"`
	Stats     CrawlStats   `json:"stats"`
	LearnerOn bool         `json:"learner_trained"`
}
