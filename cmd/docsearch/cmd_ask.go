package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	docsearch "github.com/haowjy/docsearch-go"
	"github.com/haowjy/docsearch-go/stream"
)

var (
	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Stream an AI answer with citations",
		Long:  `Streams the answer as it is generated. Ctrl-C stops the stream and keeps what arrived.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
	askLimit int
	askDocs  bool
	askStats bool
)

func init() {
	askCmd.Flags().IntVar(&askLimit, "limit", 0, "maximum documents to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askDocs, "docs", false, "list the retrieved documents after the answer")
	askCmd.Flags().BoolVar(&askStats, "stats", false, "print stream counters when done")
}

// answerPrinter writes answer text as it grows.
type answerPrinter struct {
	w       io.Writer
	printed int
}

func (p *answerPrinter) update(s docsearch.StreamState) {
	if len(s.Answer) > p.printed {
		fmt.Fprint(p.w, s.Answer[p.printed:])
		p.printed = len(s.Answer)
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	a := current
	query := strings.Join(args, " ")
	limit := askLimit
	if limit <= 0 {
		limit = a.cfg.SearchLimit
	}

	reg := prometheus.NewRegistry()
	metrics, err := stream.NewMetrics(reg)
	if err != nil {
		return err
	}

	consumer := stream.NewConsumer(a.client,
		stream.WithLogger(a.logger.Named("stream")),
		stream.WithMetrics(metrics),
		stream.WithIdleTimeout(a.cfg.StreamIdleTimeout),
		stream.WithLimit(limit),
	)

	out := cmd.OutOrStdout()
	printer := &answerPrinter{w: out}
	unsubscribe := consumer.Subscribe(printer.update)
	defer unsubscribe()

	interrupted, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := consumer.Start(context.WithoutCancel(cmd.Context()), query)
	stopped := false
	select {
	case <-done:
	case <-interrupted.Done():
		consumer.Stop()
		<-done
		stopped = true
	}
	fmt.Fprintln(out)

	state := consumer.Snapshot()
	if stopped {
		fmt.Fprintln(out, yellow("(stopped)"))
	}
	printCitations(out, state.Citations)
	if askDocs && len(state.Documents) > 0 {
		fmt.Fprintf(out, "\n%s %s\n", bold("Documents"), faint(fmt.Sprintf("(%d)", state.TotalResults)))
		for i, d := range state.Documents {
			printDocument(out, i+1, d)
		}
	}
	if askStats {
		printStats(out, reg)
	}
	return state.Err
}

func printStats(w io.Writer, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		return
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("  %s %g", name, m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	fmt.Fprintf(w, "\n%s\n%s\n", bold("Stream stats"), faint(strings.Join(lines, "\n")))
}
