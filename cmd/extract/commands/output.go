package commands

import (
	"encoding/json"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/yourusername/images-extractor/internal/pdf"
)

type jsonReport struct {
	Pages       int               `json:"pages"`
	TotalImages int               `json:"totalImages"`
	Images      map[string]any    `json:"images,omitempty"`
	Files       []pdf.OutputImage `json:"files"`
	Skipped     []pdf.Skip        `json:"skipped,omitempty"`
}

func writeJSON(w io.Writer, report *pdf.Report) error {
	out := jsonReport{
		Pages:       report.Pages,
		TotalImages: len(report.Files),
		Images:      pdf.RoleMap(report.Filenames()),
		Files:       report.Files,
		Skipped:     report.Skipped,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
