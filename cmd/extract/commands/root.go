package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yourusername/images-extractor/internal/logging"
	"github.com/yourusername/images-extractor/internal/pdf"
	"github.com/yourusername/images-extractor/internal/storage"
)

var (
	outDir   string
	jsonOut  bool
	noColor  bool
	logLevel string
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Extract embedded images from a PDF",
		Long: `Extract every distinct embedded image from a PDF into a directory.
The first image is saved as user-img-*, the second as sign-img-*,
JPEG 2000 images are converted to PNG.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runExtract,
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "./images", "output directory")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the extraction report as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if noColor {
		color.NoColor = true
	}

	docPath := args[0]
	if !strings.EqualFold(filepath.Ext(docPath), ".pdf") {
		return fmt.Errorf("%s: not a .pdf file", docPath)
	}
	if _, err := os.Stat(docPath); err != nil {
		return err
	}

	out := storage.NewLocal(outDir)
	if err := out.EnsureDir(); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	logger := logging.New(logging.Options{Level: logLevel, Format: "console", Output: cmd.ErrOrStderr()})
	extractor := pdf.NewExtractor(
		pdf.WithLogger(&logger),
		pdf.WithJPXDecoder(pdf.FitzDecoder{TempDir: outDir}),
	)

	report, runErr := extractor.Run(ctx, docPath, out)
	if runErr != nil && !pdf.IsParseError(runErr) {
		// それまでに書き出した分は報告する
		logger.Error().Err(runErr).Msg("extraction stopped")
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		return writeJSON(w, report)
	}
	writeText(w, report, outDir)
	return nil
}

func writeText(w io.Writer, report *pdf.Report, dir string) {
	if len(report.Files) == 0 {
		color.New(color.FgYellow).Fprintln(w, "No images found in the PDF")
		return
	}

	roleColor := map[pdf.Role]*color.Color{
		pdf.RoleUser:  color.New(color.FgGreen, color.Bold),
		pdf.RoleSign:  color.New(color.FgCyan, color.Bold),
		pdf.RoleExtra: color.New(color.FgWhite),
	}
	for _, f := range report.Files {
		roleColor[f.Role].Fprintf(w, "%-12s", f.Role)
		fmt.Fprintf(w, "  %s  (%s, page %d)\n", filepath.Join(dir, f.Filename), formatSize(f.Size), f.Page)
	}

	summary := fmt.Sprintf("%d image(s) extracted from %d page(s)", len(report.Files), report.Pages)
	if n := len(report.Skipped); n > 0 {
		summary += fmt.Sprintf(", %d skipped", n)
	}
	color.New(color.Faint).Fprintln(w, summary)
}
