package duplicates

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Report output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// detectionOrder is the order heuristics are listed in reports.
var detectionOrder = []DetectionType{
	DetectionExactIdentifier,
	DetectionExactCrossReference,
	DetectionExactName,
	DetectionExactAcronym,
	DetectionCrossOrgSimilarity,
	DetectionSameOrgSimilarity,
	DetectionSimilarName,
}

// ReportWriter renders run summaries.
type ReportWriter struct {
	w      io.Writer
	format string
	color  bool
}

// NewReportWriter creates a writer for format. Color applies to text only.
func NewReportWriter(w io.Writer, format string, colorize bool) (*ReportWriter, error) {
	switch format {
	case "", FormatText:
		format = FormatText
	case FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported output format %q (use text, json, or yaml)", format)
	}
	return &ReportWriter{w: w, format: format, color: colorize}, nil
}

// WriteSummary renders s.
func (r *ReportWriter) WriteSummary(s *Summary) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(r.w)
		defer enc.Close()
		return enc.Encode(s)
	default:
		return r.writeText(s)
	}
}

// WritePairs renders stored pairs, as returned by a PairReader.
func (r *ReportWriter) WritePairs(pairs []Pair) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		if pairs == nil {
			pairs = []Pair{}
		}
		return enc.Encode(pairs)
	case FormatYAML:
		enc := yaml.NewEncoder(r.w)
		defer enc.Close()
		return enc.Encode(pairRows(pairs))
	default:
		if len(pairs) == 0 {
			_, err := fmt.Fprintln(r.w, "No pairs found.")
			return err
		}
		for _, p := range pairs {
			if _, err := fmt.Fprintln(r.w, r.pairLine(p)); err != nil {
				return err
			}
		}
		return nil
	}
}

func (r *ReportWriter) paint(attrs ...color.Attribute) func(a ...interface{}) string {
	c := color.New(attrs...)
	if r.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.SprintFunc()
}

func (r *ReportWriter) confidenceColor(c Confidence) func(a ...interface{}) string {
	switch c {
	case ConfidenceHigh:
		return r.paint(color.FgRed, color.Bold)
	case ConfidenceMedium:
		return r.paint(color.FgYellow)
	default:
		return r.paint(color.FgHiBlack)
	}
}

func (r *ReportWriter) writeText(s *Summary) error {
	var b strings.Builder
	bold := r.paint(color.Bold)
	red := r.paint(color.FgRed)
	green := r.paint(color.FgGreen)
	yellow := r.paint(color.FgYellow)

	status := s.Status
	switch s.Status {
	case RunStatusSucceeded:
		status = green(status)
	case RunStatusPartial, RunStatusDryRun:
		status = yellow(status)
	case RunStatusFailed:
		status = red(status)
	}
	fmt.Fprintf(&b, "%s %s: %s in %s\n", bold("Run"), s.RunID, status, s.Duration().Round(time.Millisecond))
	if s.DryRun {
		fmt.Fprintln(&b, "Dry run: nothing was written.")
	}
	if s.Cleared != nil {
		fmt.Fprintf(&b, "Cleared %d stored pairs.\n", *s.Cleared)
	}

	for _, e := range s.Entities {
		fmt.Fprintln(&b)
		if e.Error != "" {
			fmt.Fprintf(&b, "%s: %s\n", bold(string(e.EntityType)), red(e.Error))
			continue
		}
		fmt.Fprintf(&b, "%s: %d records, %d pairs (%d suggested links)\n",
			bold(string(e.EntityType)), e.Records, e.PairsDetected, e.SuggestedLinks)
		for _, dt := range detectionOrder {
			n, ok := e.ByDetection[dt]
			if !ok {
				continue
			}
			conf := confidenceFor(dt)
			fmt.Fprintf(&b, "  %-24s %6d  %s\n", dt, n, r.confidenceColor(conf)(string(conf)))
		}
		if p := e.Persist; p != nil {
			line := fmt.Sprintf("  persisted %d of %d pairs in %d batches", p.Persisted, p.Persisted+p.FailedPairs, p.Batches)
			if p.FailedBatches > 0 {
				line += red(fmt.Sprintf(", %d batches failed", p.FailedBatches))
			}
			fmt.Fprintln(&b, line)
		}
		for _, p := range e.Pairs {
			fmt.Fprintf(&b, "    %s\n", r.pairLine(p))
		}
	}

	if len(s.ErrorCounts) > 0 {
		codes := make([]string, 0, len(s.ErrorCounts))
		for code := range s.ErrorCounts {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, bold("Errors:"))
		for _, code := range codes {
			fmt.Fprintf(&b, "  %s: %d\n", code, s.ErrorCounts[code])
		}
	}

	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *ReportWriter) pairLine(p Pair) string {
	conf := r.confidenceColor(p.Confidence)(fmt.Sprintf("[%s]", p.Confidence))
	line := fmt.Sprintf("%s %s %s %s <-> %s score %s",
		conf, p.EntityType, p.DetectionType, p.ID1, p.ID2, formatScore(p.SimilarityScore))
	if p.IsSuggestedLink {
		line += " (suggested link)"
	}
	return line
}

// pairRow is the YAML rendering of a pair, with details flattened.
type pairRow struct {
	Pair         `yaml:",inline"`
	MatchDetails MatchDetails `yaml:"match_details,omitempty"`
}

func pairRows(pairs []Pair) []pairRow {
	rows := make([]pairRow, len(pairs))
	for i, p := range pairs {
		rows[i] = pairRow{Pair: p, MatchDetails: p.MatchDetails}
	}
	return rows
}

func confidenceFor(dt DetectionType) Confidence {
	switch {
	case dt.IsExact():
		return ConfidenceHigh
	case dt == DetectionCrossOrgSimilarity:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return strconv.FormatFloat(*score, 'f', 3, 64)
}
