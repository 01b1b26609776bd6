package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/helixir/review-screening/internal/domain"
	"github.com/helixir/review-screening/internal/screening"
)

func searchCommand(c *cli) *cobra.Command {
	var (
		reviewID  string
		databases []string
		query     string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a literature search for a review",
		Long: `Search the given databases and add new studies to the review.

Without --database every database configured on the review is searched.
Without --query the research question is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.open(cmd.Context(), reviewID)
			if err != nil {
				return err
			}
			defer rt.Close()

			if strings.TrimSpace(query) == "" {
				if active := rt.Store.Active(); active != nil {
					query = active.ResearchQuestion
				}
			}
			result, err := rt.Store.Search(cmd.Context(), toDatabaseIDs(databases), query)
			if err != nil {
				return err
			}
			out := searchOutput{MergeResult: result, Cursor: rt.Store.Cursor()}
			return c.render(out, func(w io.Writer) {
				fmt.Fprintf(w, "found %d, added %d, duplicates %d\n", result.Found, result.Added, result.Duplicates)
				fmt.Fprintf(w, "%d studies pending\n", out.Cursor.Pending)
			})
		},
	}

	requireReview(cmd, &reviewID)
	cmd.Flags().StringArrayVar(&databases, "database", nil, "Database to search (repeatable)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Search query")
	return cmd
}

func studiesCommand(c *cli) *cobra.Command {
	var (
		reviewID string
		status   string
	)

	cmd := &cobra.Command{
		Use:   "studies",
		Short: "List the studies of a review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.ScreeningStatus(strings.ToLower(status))
			if filter != "" && !filter.IsValid() {
				return domain.NewValidationError("status", "unknown screening status: "+status)
			}

			rt, err := c.open(cmd.Context(), reviewID)
			if err != nil {
				return err
			}
			defer rt.Close()

			studies := filterStudies(rt.Store.Studies(), filter)
			return c.render(studies, func(w io.Writer) {
				writeStudies(w, studies)
			})
		},
	}

	requireReview(cmd, &reviewID)
	cmd.Flags().StringVar(&status, "status", "", "Only show studies with this status")
	return cmd
}

func screenCommand(c *cli) *cobra.Command {
	var (
		reviewID string
		skip     int
		decision decisionFlags
	)

	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Show the next pending study, optionally deciding it",
		Long: `Show the study under the screening cursor. With --status the study is
decided and the next pending study is shown.

Examples:
  screenctl screen -r rev-1
  screenctl screen -r rev-1 --skip 2
  screenctl screen -r rev-1 --status excluded --stage title_abstract --reason "Wrong population"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.open(cmd.Context(), reviewID)
			if err != nil {
				return err
			}
			defer rt.Close()

			view := rt.Store.Cursor()
			for i := 0; i < skip; i++ {
				view = rt.Store.Next()
			}

			out := screenOutput{}
			if decision.set() {
				study, err := rt.Store.Decide(cmd.Context(), decision.toDecision())
				if errors.Is(err, domain.ErrQueueEmpty) {
					return fmt.Errorf("review %s: %w", reviewID, err)
				}
				if err != nil {
					return err
				}
				out.Decided = &study
				view = rt.Store.Cursor()
			}
			out.Cursor = view

			return c.render(out, func(w io.Writer) {
				if out.Decided != nil {
					writeStudy(w, *out.Decided)
					fmt.Fprintln(w)
				}
				writeCursor(w, out.Cursor)
			})
		},
	}

	requireReview(cmd, &reviewID)
	cmd.Flags().IntVar(&skip, "skip", 0, "Move the cursor forward this many studies first")
	decision.register(cmd.Flags())
	return cmd
}

func decideCommand(c *cli) *cobra.Command {
	var (
		reviewID string
		studyIDs []string
		decision decisionFlags
	)

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Set the screening status of one or more studies",
		Long: `Set the screening status of one or more studies.

Several studies can be given as --study a,b,c or by repeating --study. They
are decided one by one and a failure does not stop the rest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !decision.set() {
				return domain.NewValidationError("status", "status is required")
			}

			rt, err := c.open(cmd.Context(), reviewID)
			if err != nil {
				return err
			}
			defer rt.Close()

			if len(studyIDs) == 1 {
				study, err := rt.Store.SetStatus(cmd.Context(), studyIDs[0], decision.toDecision())
				if err != nil {
					return err
				}
				return c.render(study, func(w io.Writer) {
					writeStudy(w, study)
				})
			}

			res, err := rt.Store.BulkDecide(cmd.Context(), studyIDs, decision.toDecision())
			if err != nil {
				return err
			}
			if err := c.render(res, func(w io.Writer) {
				writeBulk(w, res)
			}); err != nil {
				return err
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d of %d decisions failed", res.Failed, res.Total)
			}
			return nil
		},
	}

	requireReview(cmd, &reviewID)
	cmd.Flags().StringSliceVar(&studyIDs, "study", nil, "Study id (comma separated or repeatable)")
	_ = cmd.MarkFlagRequired("study")
	decision.register(cmd.Flags())
	return cmd
}

func historyCommand(c *cli) *cobra.Command {
	var reviewID, studyID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the recorded decisions for a study",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.open(cmd.Context(), reviewID)
			if err != nil {
				return err
			}
			defer rt.Close()

			records, err := rt.Store.History(cmd.Context(), studyID)
			if err != nil {
				return err
			}
			if records == nil {
				records = []domain.DecisionRecord{}
			}
			return c.render(records, func(w io.Writer) {
				writeHistory(w, records)
			})
		},
	}

	requireReview(cmd, &reviewID)
	cmd.Flags().StringVar(&studyID, "study", "", "Study id")
	_ = cmd.MarkFlagRequired("study")
	return cmd
}

// decisionFlags binds the --status, --reason and --stage flags.
type decisionFlags struct {
	status string
	reason string
	stage  string
}

func (d *decisionFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&d.status, "status", "", "Decision: included, excluded, maybe or pending")
	fs.StringVar(&d.reason, "reason", "", "Exclusion reason")
	fs.StringVar(&d.stage, "stage", "", "Exclusion stage: title_abstract or full_text")
}

func (d *decisionFlags) set() bool {
	return strings.TrimSpace(d.status) != ""
}

func (d *decisionFlags) toDecision() domain.Decision {
	return domain.Decision{
		Status: domain.ScreeningStatus(strings.ToLower(strings.TrimSpace(d.status))),
		Reason: d.reason,
		Stage:  domain.ExclusionStage(strings.ToLower(strings.TrimSpace(d.stage))),
	}
}

type searchOutput struct {
	screening.MergeResult
	Cursor screening.CursorView `json:"cursor"`
}

type screenOutput struct {
	Decided *domain.Study        `json:"decided,omitempty"`
	Cursor  screening.CursorView `json:"cursor"`
}

func filterStudies(studies []domain.Study, status domain.ScreeningStatus) []domain.Study {
	out := make([]domain.Study, 0, len(studies))
	for _, s := range studies {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	return out
}
