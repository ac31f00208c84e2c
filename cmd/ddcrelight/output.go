package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"ddcrelight/internal/history"
	"ddcrelight/internal/journal"
)

func formatLight(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeHistory prints h as two aligned rows, brightness over light.
func writeHistory(w io.Writer, name string, h history.History) {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s brightness\t", name)
	for _, o := range h {
		fmt.Fprintf(tw, " %d\t", o.Brightness)
	}
	fmt.Fprintf(tw, "\n%s light\t", name)
	for _, o := range h {
		fmt.Fprintf(tw, " %s\t", formatLight(o.Light))
	}
	fmt.Fprintln(tw)
	tw.Flush()
}

func writeStatus(w io.Writer, doc history.Document, now time.Time, window time.Duration) {
	fmt.Fprintf(w, "Last updated: %s (%s ago)\n",
		doc.LastUpdated.Local().Format("2006-01-02 15:04:05"), now.Sub(doc.LastUpdated).Round(time.Second))

	if _, promote := history.ActiveStable(doc, now, window); promote {
		fmt.Fprintln(w, "Promotion:    newest curve becomes stable on the next recording")
	} else {
		remaining := doc.LastUpdated.Add(window).Sub(now).Round(time.Second)
		fmt.Fprintf(w, "Promotion:    newest curve settles in %s\n", remaining)
	}

	fmt.Fprintln(w)
	writeHistory(w, "stable", doc.Stable)
	writeHistory(w, "newest", doc.Newest)
}

func writeEntries(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No observations recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tLIGHT\tBRIGHTNESS\tPROMOTED\tID")
	for _, e := range entries {
		promoted := ""
		if e.Promoted {
			promoted = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			e.RecordedAt.Local().Format("2006-01-02 15:04:05"),
			formatLight(e.Light), e.Brightness, promoted, e.ID)
	}
	tw.Flush()
}

type monitorReading struct {
	ID         string
	Model      string
	Brightness int
	Err        error
}

func writeMonitors(w io.Writer, readings []monitorReading) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MONITOR\tMODEL\tBRIGHTNESS")
	for _, r := range readings {
		model := r.Model
		if model == "" {
			model = "-"
		}
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t%s\terror: %v\n", r.ID, model, r.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d%%\n", r.ID, model, r.Brightness)
	}
	tw.Flush()
}
