package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/helixir/review-screening/internal/domain"
	"github.com/helixir/review-screening/internal/screening"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
	formatCSV  = "csv"
)

var (
	headingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4299E1"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#718096"))
	includedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#48BB78"))
	excludedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FC8181"))
	maybeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ECC94B"))
)

// render writes v in the selected structured format, or calls text for the
// human readable form.
func (c *cli) render(v interface{}, text func(w io.Writer)) error {
	switch c.output {
	case formatJSON:
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		// Go through JSON so YAML keys match the json tags and field order.
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return err
		}
		enc := yaml.NewEncoder(c.out)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return err
		}
		return enc.Close()
	case formatCSV:
		return errors.New("csv output is only supported by export")
	default:
		text(c.out)
		return nil
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...)
}

func statusText(s domain.ScreeningStatus) string {
	switch s {
	case domain.ScreeningStatusIncluded:
		return includedStyle.Render(string(s))
	case domain.ScreeningStatusExcluded:
		return excludedStyle.Render(string(s))
	case domain.ScreeningStatusMaybe:
		return maybeStyle.Render(string(s))
	default:
		return string(s)
	}
}

func yearText(year int) string {
	if year == 0 {
		return "n/a"
	}
	return strconv.Itoa(year)
}

func databasesText(dbs []domain.DatabaseID) string {
	names := make([]string, len(dbs))
	for i, db := range dbs {
		names[i] = string(db)
	}
	return strings.Join(names, ", ")
}

func writeReviews(w io.Writer, reviews []domain.Review, active *domain.Review) {
	if len(reviews) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no reviews"))
		return
	}
	t := newTable("ID", "NAME", "STATUS", "DATABASES")
	for _, r := range reviews {
		name := r.Name
		if active != nil && active.ID == r.ID {
			name = "* " + name
		}
		t.Row(r.ID, name, string(r.Status), databasesText(r.Databases))
	}
	fmt.Fprintln(w, t.String())
}

func writeReview(w io.Writer, r *domain.Review) {
	fmt.Fprintln(w, headingStyle.Render(r.Name))
	fmt.Fprintf(w, "id:        %s\n", r.ID)
	fmt.Fprintf(w, "status:    %s\n", r.Status)
	fmt.Fprintf(w, "question:  %s\n", r.ResearchQuestion)
	fmt.Fprintf(w, "databases: %s\n", databasesText(r.Databases))
	for _, c := range r.InclusionCriteria {
		fmt.Fprintf(w, "include:   %s\n", c)
	}
	for _, c := range r.ExclusionCriteria {
		fmt.Fprintf(w, "exclude:   %s\n", c)
	}
}

func writeStudies(w io.Writer, studies []domain.Study) {
	if len(studies) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no studies"))
		return
	}
	t := newTable("ID", "YEAR", "SOURCE", "STATUS", "TITLE")
	for _, s := range studies {
		t.Row(s.ID, yearText(s.Year), string(s.Source), statusText(s.Status), s.Title)
	}
	fmt.Fprintln(w, t.String())
}

func writeCursor(w io.Writer, view screening.CursorView) {
	if view.Empty || view.Study == nil {
		fmt.Fprintln(w, mutedStyle.Render("screening queue is empty"))
		return
	}
	s := view.Study
	fmt.Fprintf(w, "%s %s\n", headingStyle.Render(s.Title), mutedStyle.Render(fmt.Sprintf("[%d of %d pending]", view.Index+1, view.Pending)))
	fmt.Fprintf(w, "id:      %s\n", s.ID)
	if len(s.Authors) > 0 {
		fmt.Fprintf(w, "authors: %s\n", strings.Join(s.Authors, ", "))
	}
	fmt.Fprintf(w, "year:    %s\n", yearText(s.Year))
	fmt.Fprintf(w, "source:  %s\n", s.Source)
	if s.DOI != "" {
		fmt.Fprintf(w, "doi:     %s\n", s.DOI)
	}
	if s.Abstract != "" {
		fmt.Fprintf(w, "\n%s\n", s.Abstract)
	}
}

func writeStudy(w io.Writer, s domain.Study) {
	fmt.Fprintf(w, "%s %s\n", s.ID, statusText(s.Status))
	if s.Status == domain.ScreeningStatusExcluded {
		fmt.Fprintf(w, "stage:  %s\n", s.ExclusionStage)
		if s.ExclusionReason != "" {
			fmt.Fprintf(w, "reason: %s\n", s.ExclusionReason)
		}
	}
}

func writeBulk(w io.Writer, res screening.BulkResult) {
	t := newTable("STUDY", "RESULT", "ERROR")
	for _, item := range res.Results {
		result := includedStyle.Render(item.Status)
		if item.Status == screening.BulkError {
			result = excludedStyle.Render(item.Status)
		}
		t.Row(item.StudyID, result, item.Error)
	}
	fmt.Fprintln(w, t.String())
	fmt.Fprintf(w, "%d of %d decided\n", res.Succeeded, res.Total)
}

func writeExport(w io.Writer, e *screening.Export) {
	fmt.Fprintf(w, "%s %s\n", headingStyle.Render(e.Review.Name), mutedStyle.Render(e.Review.ID))
	fmt.Fprintf(w, "studies:   %d\n", len(e.Studies))
	fmt.Fprintf(w, "decisions: %d\n", len(e.Decisions))
	fmt.Fprintf(w, "exported:  %s\n", e.ExportedAt.Format("2006-01-02 15:04:05"))
}

func writeHistory(w io.Writer, records []domain.DecisionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no decisions recorded"))
		return
	}
	t := newTable("DECIDED AT", "STATUS", "STAGE", "REASON")
	for _, r := range records {
		t.Row(r.DecidedAt.Format("2006-01-02 15:04:05"), statusText(r.Status), string(r.ExclusionStage), r.ExclusionReason)
	}
	fmt.Fprintln(w, t.String())
}

func writeFlow(w io.Writer, flow domain.PrismaFlow) {
	id := flow.Identification
	fmt.Fprintln(w, headingStyle.Render("Identification"))
	fmt.Fprintf(w, "  records identified:  %d (%d databases)\n", id.RecordsIdentified, id.DatabasesSearched)
	fmt.Fprintf(w, "  duplicates removed:  %d\n", id.DuplicatesRemoved)
	fmt.Fprintf(w, "  after deduplication: %d\n", id.RecordsAfterDedup)

	fmt.Fprintln(w, headingStyle.Render("Screening"))
	fmt.Fprintf(w, "  records screened: %d\n", flow.Screening.RecordsScreened)
	fmt.Fprintf(w, "  records excluded: %d\n", flow.Screening.RecordsExcluded)
	writeReasons(w, flow.Screening.ExclusionReasons)

	fmt.Fprintln(w, headingStyle.Render("Eligibility"))
	fmt.Fprintf(w, "  full text assessed: %d\n", flow.Eligibility.FullTextAssessed)
	fmt.Fprintf(w, "  full text excluded: %d\n", flow.Eligibility.FullTextExcluded)
	writeReasons(w, flow.Eligibility.ExclusionReasons)

	fmt.Fprintln(w, headingStyle.Render("Included"))
	fmt.Fprintf(w, "  studies included: %d\n", flow.Included.StudiesIncluded)
}

func writeReasons(w io.Writer, reasons domain.ReasonCounts) {
	for _, r := range reasons {
		fmt.Fprintf(w, "    %s: %d\n", r.Reason, r.Count)
	}
}

func writeStatistics(w io.Writer, stats domain.Statistics) {
	t := newTable("TOTAL", "INCLUDED", "EXCLUDED", "MAYBE", "PENDING")
	t.Row(
		strconv.Itoa(stats.Total),
		strconv.Itoa(stats.Included),
		strconv.Itoa(stats.Excluded),
		strconv.Itoa(stats.Maybe),
		strconv.Itoa(stats.Pending),
	)
	fmt.Fprintln(w, t.String())

	if len(stats.ByDatabase) > 0 {
		t := newTable("DATABASE", "STUDIES")
		for _, d := range stats.ByDatabase {
			t.Row(string(d.Database), strconv.Itoa(d.Count))
		}
		fmt.Fprintln(w, t.String())
	}
	if len(stats.ByYear) > 0 {
		t := newTable("YEAR", "STUDIES")
		for _, y := range stats.ByYear {
			t.Row(yearText(y.Year), strconv.Itoa(y.Count))
		}
		fmt.Fprintln(w, t.String())
	}
}
