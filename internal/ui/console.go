package ui

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/forest-guardian/vegetation-report/internal/state"
	"github.com/forest-guardian/vegetation-report/internal/timeframe"
)

// Console prints status lines for people running the CLI. Logs go through slog instead.
type Console struct {
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Banner() {
	fig := figure.NewFigure("VegReport", "isometric1", true)
	color.New(color.FgCyan).Fprintln(c.out, fig.String())
	fmt.Fprintln(c.out)
}

func (c *Console) Warning(message string) {
	color.New(color.FgYellow).Fprintf(c.out, "Warning: %s\n", message)
}

func (c *Console) Error(message string) {
	color.New(color.FgRed).Fprintf(c.out, "Error: %s\n", message)
}

func (c *Console) Success(message string) {
	color.New(color.FgGreen).Fprintln(c.out, message)
}

func (c *Console) Info(message string) {
	color.New(color.FgBlue).Fprintln(c.out, message)
}

// State prints one row per timeframe, sorted by name.
func (c *Console) State(store state.Store) {
	if len(store) == 0 {
		c.Warning("no report has been generated yet")
		return
	}
	names := make([]string, 0, len(store))
	for name := range store {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMEFRAME\tFIRST IMAGE\tLATEST IMAGE\tVEGETATION AREA CHANGE")
	for _, name := range names {
		r := store[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, r.FirstImage, r.LatestImage, changeColor(r.VegetationAreaChange))
	}
	tw.Flush()
}

// Timeframes prints the windows the timeframes resolve to.
func (c *Console) Timeframes(windows []timeframe.Window) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTART\tEND")
	for _, w := range windows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", w.Name, w.Start.Format(state.DateLayout), w.End.Format(state.DateLayout))
	}
	tw.Flush()
}

// vegetation_area_change is first minus latest, so a positive value is a loss.
func changeColor(v float64) string {
	s := strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	switch {
	case v > 0:
		return color.RedString(s)
	case v < 0:
		return color.GreenString(s)
	}
	return s
}
