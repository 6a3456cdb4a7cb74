// Package console prints the interactive side of a run: the search summary,
// the confirmation prompt, per-file progress and the final tally.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/italolelis/mosdac_downloader/internal/downloader"
	"github.com/italolelis/mosdac_downloader/internal/mosdac"
	"github.com/italolelis/mosdac_downloader/internal/orchestrator"
)

// ErrNoAnswer is returned when input ends before a valid answer.
var ErrNoAnswer = errors.New("no answer to confirmation prompt")

type styles struct {
	count   lipgloss.Style
	success lipgloss.Style
	errText lipgloss.Style
	dim     lipgloss.Style
}

// Console writes to out and reads answers from in.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	styles styles
	bar    progress.Model
}

func New(in io.Reader, out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)

	return &Console{
		in:  bufio.NewReader(in),
		out: out,
		styles: styles{
			count:   r.NewStyle().Underline(true),
			success: r.NewStyle().Foreground(lipgloss.Color("#95E1A3")),
			errText: r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
			dim:     r.NewStyle().Foreground(lipgloss.Color("#6C757D")),
		},
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Found prints the size of the batch.
func (c *Console) Found(summary mosdac.SearchSummary) {
	count := c.styles.count.Render(humanize.Comma(int64(summary.Total)))

	if summary.Capped {
		fmt.Fprintf(c.out, "\n%s Files Found for %s\n", count, summary.DatasetID)

		return
	}

	fmt.Fprintf(c.out, "\n%s Files Found with Total Size of %s\n", count, c.styles.count.Render(FormatSize(summary.TotalSizeMB)))
}

// Confirm asks whether to download the batch, re-prompting until it gets
// y, n, yes or no.
func (c *Console) Confirm(ctx context.Context, _ mosdac.SearchSummary) (bool, error) {
	fmt.Fprint(c.out, "Do you want to Download them? [Y/N]: ")

	for {
		line, err := c.readLine(ctx)
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return false, ErrNoAnswer
			}

			return false, err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			fmt.Fprintln(c.out, c.styles.success.Render("Download Cancelled."))

			return false, nil
		}

		if err != nil {
			return false, ErrNoAnswer
		}

		fmt.Fprintln(c.out, c.styles.errText.Render("Invalid Input. Please Input 'Y' or 'N':"))
	}
}

func (c *Console) readLine(ctx context.Context) (string, error) {
	type answer struct {
		line string
		err  error
	}

	ch := make(chan answer, 1)

	go func() {
		line, err := c.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-ch:
		return a.line, a.err
	}
}

// Started prints the per-file header.
func (c *Console) Started(task downloader.Task, path string, size int64) {
	name := task.Item.Identifier
	if name == "" {
		name = path
	}

	fmt.Fprintf(c.out, "\n[%d/%d] | Downloading: %s | File Size: %s\n", task.Index, task.Total, name, formatBytesMB(size))
}

// Progress redraws the bar for the current file.
func (c *Console) Progress(_ downloader.Task, read, total int64) {
	if total <= 0 {
		fmt.Fprintf(c.out, "\r%s", c.styles.dim.Render(humanize.IBytes(uint64(read))))

		return
	}

	pct := float64(read) / float64(total)
	if pct > 1 {
		pct = 1
	}

	fmt.Fprintf(c.out, "\r%s %s", c.bar.ViewAs(pct), c.styles.dim.Render(humanize.IBytes(uint64(read))+"/"+humanize.IBytes(uint64(total))))

	if read >= total {
		fmt.Fprintln(c.out)
	}
}

// Finished prints the tally of the run.
func (c *Console) Finished(summary orchestrator.Summary) {
	if summary.Err != nil {
		fmt.Fprintf(c.out, "\n%s\n", c.styles.errText.Render("Download Stopped: "+summary.Err.Error()))
	} else {
		fmt.Fprintf(c.out, "\n%s\n\n", c.styles.success.Render("Download Complete!"))
	}

	fmt.Fprintf(c.out, "Total No. of Files Downloaded: %d\n", summary.Downloaded)

	if summary.Skipped > 0 {
		fmt.Fprintf(c.out, "Files Skipped for Download: %d\n", summary.Skipped)
	}

	fmt.Fprintf(c.out, "Total Time Taken: %s\n", FormatDuration(summary.Duration))
}

// FormatSize renders a size given in megabytes as MB, GB or TB.
func FormatSize(mb float64) string {
	switch {
	case mb < 1024:
		return humanize.FormatFloat("#,###.##", mb) + " MB"
	case mb < 1024*1024:
		return humanize.FormatFloat("#,###.##", mb/1024) + " GB"
	default:
		return humanize.FormatFloat("#,###.##", mb/(1024*1024)) + " TB"
	}
}

func formatBytesMB(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}

// FormatDuration renders d in hours, minutes or seconds, whichever is the
// largest whole unit.
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%.2f hr", d.Hours())
	case d >= time.Minute:
		return fmt.Sprintf("%.2f min", d.Minutes())
	default:
		return fmt.Sprintf("%.2f sec", d.Seconds())
	}
}
