package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"caption-backend/internal/export"
	"caption-backend/internal/videos"
)

const resultsFileName = "results.json"

type reportOptions struct {
	Dir   string
	PDF   bool
	DOCX  bool
	Title string
	// SkipResults suppresses results.json, used when rendering from one.
	SkipResults bool
}

func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("out", "o", "./out", "Output directory")
	cmd.Flags().Bool("pdf", false, "Write "+export.PDFFileName)
	cmd.Flags().Bool("docx", false, "Write "+export.DOCXFileName)
	cmd.Flags().String("title", export.DefaultTitle, "Report title")
}

func reportFlags(cmd *cobra.Command) (reportOptions, error) {
	var opts reportOptions
	var err error
	if opts.Dir, err = cmd.Flags().GetString("out"); err != nil {
		return opts, err
	}
	if opts.PDF, err = cmd.Flags().GetBool("pdf"); err != nil {
		return opts, err
	}
	if opts.DOCX, err = cmd.Flags().GetBool("docx"); err != nil {
		return opts, err
	}
	if opts.Title, err = cmd.Flags().GetString("title"); err != nil {
		return opts, err
	}
	return opts, nil
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <results.json>",
		Short: "Render reports from a saved results file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := reportFlags(cmd)
			if err != nil {
				return err
			}
			if !opts.PDF && !opts.DOCX {
				return errors.New("choose at least one of --pdf or --docx")
			}
			items, err := loadItems(args[0])
			if err != nil {
				return err
			}
			opts.SkipResults = true
			return writeReports(cmd.OutOrStdout(), items, opts)
		},
	}
	addReportFlags(cmd)
	return cmd
}

func loadItems(path string) ([]videos.Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []videos.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return items, nil
}

// writeReports writes the queue as JSON and renders each requested format.
func writeReports(out io.Writer, items []videos.Item, opts reportOptions) error {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return err
	}
	if !opts.SkipResults {
		payload, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return err
		}
		if err := writeFile(out, filepath.Join(opts.Dir, resultsFileName), payload); err != nil {
			return err
		}
	}

	renders := []struct {
		enabled bool
		name    string
		render  func([]videos.Item, export.Options) ([]byte, error)
	}{
		{opts.PDF, export.PDFFileName, export.PDF},
		{opts.DOCX, export.DOCXFileName, export.DOCX},
	}
	for _, r := range renders {
		if !r.enabled {
			continue
		}
		data, err := r.render(items, export.Options{Title: opts.Title})
		if errors.Is(err, export.ErrNothingToExport) {
			fmt.Fprintln(out, export.NothingToExportNotice)
			return nil
		}
		if err != nil {
			return fmt.Errorf("render %s: %w", r.name, err)
		}
		if err := writeFile(out, filepath.Join(opts.Dir, r.name), data); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(out io.Writer, path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%s)\n", path, humanize.Bytes(uint64(len(data))))
	return nil
}
