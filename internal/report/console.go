package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/starford/refscan/internal/models"
)

const ruleWidth = 50

// ConsoleOptions controls console rendering.
type ConsoleOptions struct {
	// NoColor disables ANSI colors regardless of the terminal.
	NoColor bool
	// ReportPath is named in the completion line; empty omits the line.
	ReportPath string
}

type palette struct {
	title, ok, bad, item, muted *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		title: color.New(color.FgCyan, color.Bold),
		ok:    color.New(color.FgGreen),
		bad:   color.New(color.FgRed, color.Bold),
		item:  color.New(color.FgYellow),
		muted: color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{p.title, p.ok, p.bad, p.item, p.muted} {
			c.DisableColor()
		}
	}
	return p
}

// WriteConsole renders the human-readable summary of rep to w.
func WriteConsole(w io.Writer, rep *Report, opts ConsoleOptions) error {
	p := newPalette(opts.NoColor)
	var b strings.Builder

	p.title.Fprintln(&b, "Scanning for missing files")
	fmt.Fprintln(&b, strings.Repeat("=", ruleWidth))

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Metric", "Count"})
	tbl.AppendRow(table.Row{"References", humanize.Comma(int64(rep.TotalReferences))})
	tbl.AppendRow(table.Row{"Imports", humanize.Comma(int64(rep.TotalImports))})
	tbl.AppendRow(table.Row{"Asset references", humanize.Comma(int64(rep.TotalAssetReferences))})
	tbl.AppendRow(table.Row{"Missing modules", humanize.Comma(int64(rep.MissingModules))})
	tbl.AppendRow(table.Row{"Missing assets", humanize.Comma(int64(rep.MissingAssets))})
	fmt.Fprintln(&b, tbl.Render())

	if len(rep.MissingFilesDetail) > 0 {
		fmt.Fprintln(&b)
		p.bad.Fprintln(&b, "Missing modules:")
		for _, target := range rep.ModulePaths() {
			fmt.Fprintln(&b)
			p.item.Fprintf(&b, "  • %s\n", target)
			p.muted.Fprintf(&b, "    referenced in: %s\n", strings.Join(rep.MissingFilesDetail[target], ", "))
		}
	}

	if len(rep.MissingAssetsDetail) > 0 {
		fmt.Fprintln(&b)
		p.bad.Fprintln(&b, "Missing assets:")
		for _, cat := range models.Categories {
			paths, ok := rep.MissingAssetsDetail[string(cat)]
			if !ok {
				continue
			}
			fmt.Fprintln(&b)
			fmt.Fprintf(&b, "  %s:\n", strings.ToUpper(string(cat)))
			for _, asset := range paths {
				p.item.Fprintf(&b, "    • %s\n", asset)
			}
		}
	}

	if len(rep.UnreadableFiles) > 0 {
		fmt.Fprintln(&b)
		p.bad.Fprintf(&b, "Unreadable files (%d), skipped:\n", len(rep.UnreadableFiles))
		for _, f := range rep.UnreadableFiles {
			p.muted.Fprintf(&b, "    • %s\n", f)
		}
	}

	if !rep.HasMissing() {
		fmt.Fprintln(&b)
		p.ok.Fprintln(&b, "No missing files found.")
	}

	if opts.ReportPath != "" {
		fmt.Fprintln(&b)
		p.ok.Fprintf(&b, "Done. Detailed report saved to %s\n", opts.ReportPath)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
