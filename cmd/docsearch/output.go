package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	docsearch "github.com/haowjy/docsearch-go"
)

var (
	bold    = color.New(color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
	cyan    = color.New(color.FgCyan).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	red     = color.New(color.FgRed, color.Bold).SprintFunc()
	success = color.New(color.FgGreen, color.Bold).SprintFunc()
)

func printError(err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, docsearch.ErrSessionInvalid), errors.Is(err, docsearch.ErrUnauthorized):
		msg += "\n  run `docsearch login` to sign in again"
	case docsearch.IsRetryable(err):
		msg += "\n  the backend may be busy, try again shortly"
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", red("error:"), msg)
}

func printDocument(w io.Writer, i int, d docsearch.Document) {
	fmt.Fprintf(w, "%s %s", yellow(fmt.Sprintf("[%d]", i)), bold(d.EFTAID))
	if d.DocType != nil {
		fmt.Fprintf(w, " %s", cyan(*d.DocType))
	}
	if d.RelevanceScore != nil {
		fmt.Fprintf(w, " %s", faint(fmt.Sprintf("score %.2f", *d.RelevanceScore)))
	}
	fmt.Fprintln(w)

	var meta []string
	if len(d.People) > 0 {
		meta = append(meta, "people: "+strings.Join(d.People, ", "))
	}
	if len(d.Locations) > 0 {
		meta = append(meta, "locations: "+strings.Join(d.Locations, ", "))
	}
	if len(meta) > 0 {
		fmt.Fprintf(w, "    %s\n", faint(strings.Join(meta, " · ")))
	}
	if d.ContentPreview != nil && *d.ContentPreview != "" {
		fmt.Fprintf(w, "    %s\n", oneLine(*d.ContentPreview, 160))
	}
}

func printCitations(w io.Writer, citations []docsearch.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", bold("Sources"))
	for i, c := range citations {
		fmt.Fprintf(w, "%s %s %s\n", yellow(fmt.Sprintf("[%d]", i+1)), green(c.EFTAID), faint(oneLine(c.Snippet, 100)))
	}
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > max {
		return string(r[:max]) + "…"
	}
	return s
}

func printFilterGroup(w io.Writer, key string, opts []docsearch.FilterOption) {
	fmt.Fprintln(w, bold(key))
	for _, o := range opts {
		fmt.Fprintf(w, "  %s %s\n", o.Value, faint(fmt.Sprintf("(%d)", o.Count)))
	}
}
