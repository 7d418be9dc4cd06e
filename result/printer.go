package result

import (
	"fmt"
	"io"
)

// PrintResults writes page details and a summary to w.
func PrintResults(w io.Writer, res *Result) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	if len(res.Pages) == 0 {
		writef("No pages emitted.\n")
	} else {
		writef("Pages:\n")
		for i, page := range res.Pages {
			writef("  URL: %s\n", page.URL)
			writef("  Title: %s\n", page.Title)
			writef("  Relevance: %.2f\n", page.RelevanceScore)
			if i < len(res.Pages)-1 {
				writef("\n")
			}
		}
	}
	writef("Visited %d URLs, emitted %d pages, %d duplicates, %d robots-denied, %d extract failures, %d fetch failures\n",
		res.Stats.URLsVisited, res.Stats.PagesEmitted, res.Stats.DuplicatesFound,
		res.Stats.RobotsDenied, res.Stats.ExtractFailures, res.Stats.FetchFailures)
}
