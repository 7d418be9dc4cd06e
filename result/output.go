package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteJSON writes the emitted pages as a formatted JSON array to the
// writer: a flat array of PageRecord objects (not wrapped with metadata),
// UTF-8, non-ASCII preserved.
func WriteJSON(w io.Writer, pages []PageRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pages); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteCSV writes the emitted pages as CSV to the writer, an additional
// sink alongside WriteJSON's primary output format.
// Always includes a header row, even if there are no pages.
// Column order: url, title, relevance_score, keywords, authors, publish_date
func WriteCSV(w io.Writer, pages []PageRecord) error {
	cw := csv.NewWriter(w)

	header := []string{"url", "title", "relevance_score", "keywords", "authors", "publish_date"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, p := range pages {
		publishDate := ""
		if p.PublishDate != nil {
			publishDate = p.PublishDate.Format("2006-01-02T15:04:05Z07:00")
		}
		record := []string{
			p.URL,
			p.Title,
			strconv.FormatFloat(p.RelevanceScore, 'f', 4, 64),
			strings.Join(p.Keywords, ";"),
			strings.Join(p.Authors, ";"),
			publishDate,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", p.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}
