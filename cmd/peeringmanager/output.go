package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// colored reports whether w is a terminal that should get ANSI colours.
func colored(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printDiff writes a unified style diff, colouring added and removed lines.
func printDiff(w io.Writer, diff string, withColor bool) {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	if !withColor {
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
		return
	}

	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgHiCyan)
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "@@"):
			header.Fprintln(w, line)
		case strings.HasPrefix(line, "+"):
			added.Fprintln(w, line)
		case strings.HasPrefix(line, "-"):
			removed.Fprintln(w, line)
		default:
			fmt.Fprintln(w, line)
		}
	}
}
