// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

// maxUpdateFrequency is the time between updates to the commandline display of stats.
const maxUpdateFrequency = time.Millisecond * 200

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	tableBorderColor  = "#705090"
)

// Stat is one row of statistics displayed along the progress bar.
type Stat struct {
	Name, Value string
}

// EpochProgress displays the progress of one training epoch: a table of statistics
// above a progress bar of the batches.
//
// A nil *EpochProgress is valid and displays nothing, see NewEpochProgress.
type EpochProgress struct {
	numBatches, lastReported int
	samples                  int
	start, lastUpdate        time.Time

	bar           *progressbar.ProgressBar
	termenv       *termenv.Output
	statsStyle    lipgloss.Style
	statsTable    *lgtable.Table
	isFirstOutput bool
	numRowsShown  int
}

// NewEpochProgress creates the progress display for an epoch of numBatches batches.
// It returns nil (which displays nothing) if stdout is not a terminal.
func NewEpochProgress(description string, numBatches int) *EpochProgress {
	if !IsTerminal(os.Stdout) || numBatches <= 0 {
		return nil
	}
	p := &EpochProgress{
		numBatches:    numBatches,
		start:         time.Now(),
		isFirstOutput: true,
		termenv:       termenv.NewOutput(os.Stdout),
		statsStyle:    lipgloss.NewStyle().PaddingLeft(8),
	}
	p.statsTable = lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		})
	p.bar = progressbar.NewOptions(numBatches,
		progressbar.OptionSetDescription(fmt.Sprintf("      [bold]%s[reset] ", description)),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("batches"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(os.Stdout),
	)
	return p
}

// Update reports that batch number batchIdx (0-based) of batchSize examples has finished,
// with the given statistics. Updates are throttled, except the one of the last batch.
func (p *EpochProgress) Update(batchIdx, batchSize int, stats ...Stat) {
	if p == nil || p.bar.IsFinished() {
		return
	}
	p.samples += batchSize
	amount := batchIdx + 1 - p.lastReported
	isLast := batchIdx+1 >= p.numBatches
	if amount <= 0 || (!isLast && time.Since(p.lastUpdate) < maxUpdateFrequency) {
		return
	}

	p.statsTable.Data(lgtable.NewStringData())
	p.statsTable.Row("Batch", fmt.Sprintf("%s of %s", humanize.Comma(int64(batchIdx+1)), humanize.Comma(int64(p.numBatches))))
	p.statsTable.Row("Examples", humanize.Comma(int64(p.samples)))
	p.statsTable.Row("Elapsed", FormatDuration(time.Since(p.start)))
	for _, stat := range stats {
		p.statsTable.Row(stat.Name, stat.Value)
	}

	// Clear the previous lines that will be overwritten: the table rows, its borders and the bar.
	p.termenv.HideCursor()
	if !p.isFirstOutput {
		p.termenv.CursorPrevLine(p.numRowsShown + 2 + 1)
	}
	p.isFirstOutput = false
	p.numRowsShown = 3 + len(stats)

	fmt.Println(p.statsStyle.Render(p.statsTable.String()))
	_ = p.bar.Add(amount) // Prints progress bar line.
	fmt.Println()
	p.termenv.ShowCursor()
	p.lastReported = batchIdx + 1
	p.lastUpdate = time.Now()
}

// Done finishes the display.
func (p *EpochProgress) Done() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
	p.termenv.ShowCursor()
	fmt.Println()
}
