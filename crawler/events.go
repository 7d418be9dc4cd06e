package crawler

import "github.com/lukemcguire/topicrawl/result"

// CrawlEvent reports progress after a single frontier entry has been
// popped, fetched, and either emitted as a page or discarded.
type CrawlEvent struct {
	URL            string
	StatusCode     int
	Error          string
	ErrorCategory  result.ErrorCategory
	Emitted        bool // true if a PageRecord was produced
	RelevanceScore float64
	URLsVisited    int
	PagesEmitted   int
	FrontierSize   int
	LearnerTrained bool
	Throttle       ThrottleLevel
}
