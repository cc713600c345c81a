// Package cli provides CLI output helpers for Stargaze.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/stargaze/internal/page"
)

// OutputFormat is the format for gallery output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one line per image.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates s. Empty means OutputText.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputText, nil
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

// GalleryReport is the printable result of one search.
type GalleryReport struct {
	Outcome   page.Outcome `json:"outcome"`
	StartDate string       `json:"start_date,omitempty"`
	EndDate   string       `json:"end_date,omitempty"`
	Message   string       `json:"message,omitempty"`
	Error     string       `json:"error,omitempty"`
	Cards     []ReportCard `json:"cards"`
}

// ReportCard is one image in a GalleryReport.
type ReportCard struct {
	Date          string `json:"date"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	HDURL         string `json:"hdurl,omitempty"`
	ImageSource   string `json:"image_source"`
	Explanation   string `json:"explanation"`
	RevealDelayMS int64  `json:"reveal_delay_ms"`
}

// NewGalleryReport builds a report from a finished search.
func NewGalleryReport(res page.Result) GalleryReport {
	r := GalleryReport{
		Outcome: res.Outcome,
		Message: res.Message,
		Cards:   make([]ReportCard, 0, len(res.Cards)),
	}
	if !res.Range.Start.IsZero() {
		r.StartDate, r.EndDate = res.Range.StartString(), res.Range.EndString()
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	for _, c := range res.Cards {
		r.Cards = append(r.Cards, ReportCard{
			Date:          c.Record.Date,
			Title:         c.Record.Title,
			URL:           c.Record.URL,
			HDURL:         c.Record.HDURL,
			ImageSource:   c.ImageSource(),
			Explanation:   c.Record.Explanation,
			RevealDelayMS: c.RevealDelay.Milliseconds(),
		})
	}
	return r
}

// WriteGallery writes report to w in the given format.
func WriteGallery(w io.Writer, report GalleryReport, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case OutputCompact:
		for _, c := range report.Cards {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", c.Date, c.Title, c.ImageSource); err != nil {
				return err
			}
		}
		if len(report.Cards) == 0 && report.Message != "" {
			_, err := fmt.Fprintln(w, report.Message)
			return err
		}
		return nil
	default:
		writeGalleryText(w, report)
		return nil
	}
}

func writeGalleryText(w io.Writer, report GalleryReport) {
	if report.StartDate != "" {
		fmt.Fprintf(w, "\n%d images from %s to %s\n\n", len(report.Cards), report.StartDate, report.EndDate)
	}
	if len(report.Cards) == 0 {
		if report.Message != "" {
			fmt.Fprintln(w, report.Message)
		}
		return
	}
	for _, c := range report.Cards {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%s | %s\n", c.Date, c.Title)
		fmt.Fprintf(w, "Image: %s\n", c.URL)
		if c.HDURL != "" {
			fmt.Fprintf(w, "HD:    %s\n", c.HDURL)
		}
		if c.Explanation != "" {
			fmt.Fprintf(w, "\n%s\n", TruncateWords(c.Explanation, 40))
		}
		fmt.Fprintln(w)
	}
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
