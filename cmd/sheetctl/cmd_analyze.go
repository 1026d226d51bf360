package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"sheetlens/internal/chart"
	"sheetlens/internal/client"
	"sheetlens/internal/config"
	"sheetlens/internal/flow"
	"sheetlens/internal/logging"
	"sheetlens/internal/model"
)

type analyzeOptions struct {
	apiURL    string
	token     string
	chartType string
	x, y, z   string
	name      string
	out       string
	width     int
	height    int
	dryRun    bool
	timeout   time.Duration
}

func newAnalyzeCmd() *cobra.Command {
	o := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Parse a spreadsheet, render its chart and save it",
		Long: `Run one analysis session: read FILE (.xlsx or .xls), parse the first
sheet, render the chart for the chosen axes and save the analysis through
the API. The recent analyses are listed after a successful save.

The bearer token is passed with --token; it is never read from the
environment.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.apiURL, "api", "http://localhost:8080", "API base URL")
	f.StringVar(&o.token, "token", "", "bearer token (see: sheetctl token)")
	f.StringVar(&o.chartType, "chart", "2d", "chart type: 2d or 3d")
	f.StringVar(&o.x, "x", "", "column for the x axis")
	f.StringVar(&o.y, "y", "", "column for the y axis")
	f.StringVar(&o.z, "z", "", "column for the z axis (3d only)")
	f.StringVar(&o.name, "name", "", "file name to save under (default: FILE's base name)")
	f.StringVar(&o.out, "out", "", "write the rendered PNG here")
	f.IntVar(&o.width, "width", 0, "chart width in pixels")
	f.IntVar(&o.height, "height", 0, "chart height in pixels")
	f.BoolVar(&o.dryRun, "dry-run", false, "render only, do not save")
	f.DurationVar(&o.timeout, "timeout", 30*time.Second, "timeout for API calls")
	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, path string, o *analyzeOptions) error {
	if !o.dryRun && o.token == "" {
		return errors.New("--token is required unless --dry-run is set")
	}

	cfg := config.Load()
	logger := logging.NewWithWriter(os.Stderr, cfg.Log.Level, cfg.Log.Location())
	defer func() { _ = logger.Sync() }()

	api, err := client.New(o.apiURL, client.WithToken(o.token))
	if err != nil {
		return err
	}
	s := flow.New(api, flow.Options{
		MaxRows: cfg.Limits.MaxRows,
		Chart:   chart.Options{Width: o.width, Height: o.height},
		Logger:  logger,
	})
	defer s.Close()

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := s.SelectFile(filepath.Base(path), content); err != nil {
		return err
	}
	if err := s.Parse(); err != nil {
		return err
	}
	fmt.Fprintf(out, "parsed %d rows, columns: %v\n", s.Data().Len(), s.Columns())

	axes := model.SelectedAxes{X: o.x, Y: o.y, Z: o.z}
	if err := s.ChooseAxes(model.ChartType(o.chartType), axes); err != nil {
		return err
	}

	var png bytes.Buffer
	if err := s.Render(&png); err != nil {
		return err
	}
	if o.out != "" {
		if err := os.WriteFile(o.out, png.Bytes(), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "chart written to %s\n", o.out)
	}
	if o.dryRun {
		return nil
	}

	sctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	a, err := s.Save(sctx, o.name)
	if err != nil {
		return fmt.Errorf("save failed: %w", err)
	}
	fmt.Fprintf(out, "saved %s (%s)\n", a.ID, a.Summary)

	fmt.Fprintln(out, "recent analyses:")
	for _, h := range s.History() {
		fmt.Fprintf(out, "  %s  %-24s %s  %s\n", h.CreatedAt.Format(time.RFC3339), h.FileName, h.ChartType, h.Summary)
	}
	return nil
}
