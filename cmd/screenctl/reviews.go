package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/helixir/review-screening/internal/domain"
)

func reviewsCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "List, create and delete reviews",
	}
	cmd.AddCommand(
		reviewsListCommand(c),
		reviewsCreateCommand(c),
		reviewsDeleteCommand(c),
	)
	return cmd
}

func reviewsListCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reviews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.open(cmd.Context(), "")
			if err != nil {
				return err
			}
			defer rt.Close()

			reviews := rt.Store.Reviews()
			return c.render(newReviewList(reviews), func(w io.Writer) {
				writeReviews(w, reviews, nil)
			})
		},
	}
}

func reviewsCreateCommand(c *cli) *cobra.Command {
	var (
		in        domain.CreateReviewInput
		databases []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a review",
		Long: `Create a review and make it the active one.

Examples:
  screenctl reviews create --name "Sleep and memory" \
    --question "Does sleep improve recall?" \
    --database pubmed --database semantic_scholar \
    --include "RCT" --exclude "Animal studies"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Databases = toDatabaseIDs(databases)

			rt, err := c.open(cmd.Context(), "")
			if err != nil {
				return err
			}
			defer rt.Close()

			review, err := rt.Store.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return c.render(review, func(w io.Writer) {
				writeReview(w, review)
			})
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Review name")
	cmd.Flags().StringVar(&in.ResearchQuestion, "question", "", "Research question")
	cmd.Flags().StringArrayVar(&databases, "database", nil, "Literature database to search (repeatable)")
	cmd.Flags().StringArrayVar(&in.InclusionCriteria, "include", nil, "Inclusion criterion (repeatable)")
	cmd.Flags().StringArrayVar(&in.ExclusionCriteria, "exclude", nil, "Exclusion criterion (repeatable)")
	return cmd
}

func reviewsDeleteCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete REVIEW_ID",
		Short: "Delete a review and its studies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.open(cmd.Context(), "")
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.Store.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			result := map[string]string{"deleted": args[0]}
			return c.render(result, func(w io.Writer) {
				fmt.Fprintf(w, "deleted review %s\n", args[0])
			})
		},
	}
}

type reviewList struct {
	Reviews    []domain.Review `json:"reviews"`
	TotalCount int             `json:"total_count"`
}

func newReviewList(reviews []domain.Review) reviewList {
	if reviews == nil {
		reviews = []domain.Review{}
	}
	return reviewList{Reviews: reviews, TotalCount: len(reviews)}
}

func toDatabaseIDs(in []string) []domain.DatabaseID {
	out := make([]domain.DatabaseID, len(in))
	for i, s := range in {
		out[i] = domain.DatabaseID(s)
	}
	return out
}
