package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixir/review-screening/internal/domain"
	"github.com/helixir/review-screening/internal/prisma"
)

func prismaCommand(c *cli) *cobra.Command {
	var (
		reviewID string
		remote   bool
		svgPath  string
	)

	cmd := &cobra.Command{
		Use:   "prisma",
		Short: "Show the PRISMA flow of a review",
		Long: `Show the PRISMA flow computed from the review's studies.

With --remote the flow reported by the backend is shown instead.
With --svg the flow diagram is written to the given file ("-" for stdout).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.open(cmd.Context(), reviewID)
			if err != nil {
				return err
			}
			defer rt.Close()

			flow := rt.Store.Flow()
			if remote {
				remoteFlow, err := rt.Store.RemoteFlow(cmd.Context())
				if err != nil {
					return err
				}
				flow = *remoteFlow
			}

			if svgPath != "" {
				return writeSVG(c.out, svgPath, flow)
			}
			return c.render(flow, func(w io.Writer) {
				writeFlow(w, flow)
			})
		},
	}

	requireReview(cmd, &reviewID)
	cmd.Flags().BoolVar(&remote, "remote", false, "Show the backend's PRISMA flow")
	cmd.Flags().StringVar(&svgPath, "svg", "", "Write the flow diagram as SVG to this file")
	return cmd
}

func statsCommand(c *cli) *cobra.Command {
	var reviewID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show screening statistics for a review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.open(cmd.Context(), reviewID)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats := rt.Store.Statistics()
			return c.render(stats, func(w io.Writer) {
				writeStatistics(w, stats)
			})
		},
	}

	requireReview(cmd, &reviewID)
	return cmd
}

func exportCommand(c *cli) *cobra.Command {
	var (
		reviewID string
		filePath string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a review with its studies and decisions",
		Long: `Export a review with its studies, journaled decisions and PRISMA flow.

Use -o json or -o yaml for the full document and -o csv for one row per
study. With --file the export is written to that file instead of stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.open(cmd.Context(), reviewID)
			if err != nil {
				return err
			}
			defer rt.Close()

			export, err := rt.Store.Export(cmd.Context())
			if err != nil {
				return err
			}

			out := c.out
			if filePath != "" {
				f, err := os.Create(filePath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()
				out = f
			}

			if c.output == formatCSV {
				return export.WriteCSV(out)
			}
			target := *c
			target.out = out
			return target.render(export, func(w io.Writer) {
				writeExport(w, export)
			})
		},
	}

	requireReview(cmd, &reviewID)
	cmd.Flags().StringVar(&filePath, "file", "", "Write the export to this file")
	return cmd
}

func writeSVG(stdout io.Writer, path string, flow domain.PrismaFlow) error {
	svg, err := prisma.RenderSVG(flow)
	if err != nil {
		return err
	}
	if path == "-" {
		_, err := stdout.Write(svg)
		return err
	}
	if err := os.WriteFile(path, svg, 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}
