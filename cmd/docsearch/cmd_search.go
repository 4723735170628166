package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haowjy/docsearch-go/search"
)

var (
	searchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Run a search and list matching documents",
		Args: func(cmd *cobra.Command, args []string) error {
			if searchFilters {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE:  runSearch,
	}
	searchDocTypes  []string
	searchPeople    []string
	searchLocations []string
	searchEvidence  []string
	searchLimit     int
	searchFilters   bool

	docCmd = &cobra.Command{
		Use:   "doc [id]",
		Short: "Show one document by id or EFTA id",
		Args:  cobra.ExactArgs(1),
		RunE:  runDoc,
	}
	docRelated int
)

func init() {
	searchCmd.Flags().StringSliceVar(&searchDocTypes, "doc-type", nil, "only these document types")
	searchCmd.Flags().StringSliceVar(&searchPeople, "person", nil, "only documents mentioning these people")
	searchCmd.Flags().StringSliceVar(&searchLocations, "location", nil, "only documents mentioning these locations")
	searchCmd.Flags().StringSliceVar(&searchEvidence, "evidence", nil, "only these evidence types")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum documents (default from config)")
	searchCmd.Flags().BoolVar(&searchFilters, "list-filters", false, "list available filter values instead of searching")

	docCmd.Flags().IntVar(&docRelated, "related", 0, "also list up to N related documents")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a := current
	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()
	out := cmd.OutOrStdout()

	if searchFilters {
		meta, err := a.client.FilterMetadata(ctx)
		if err != nil {
			return err
		}
		printFilterGroup(out, search.KeyDocTypes, meta.DocTypes)
		printFilterGroup(out, search.KeyPeople, meta.People)
		printFilterGroup(out, search.KeyLocations, meta.Locations)
		printFilterGroup(out, search.KeyEvidenceTypes, meta.EvidenceTypes)
		return nil
	}

	var filters search.Filters
	for key, values := range map[string][]string{
		search.KeyDocTypes:      searchDocTypes,
		search.KeyPeople:        searchPeople,
		search.KeyLocations:     searchLocations,
		search.KeyEvidenceTypes: searchEvidence,
	} {
		if err := filters.Update(key, values); err != nil {
			return err
		}
	}

	limit := searchLimit
	if limit <= 0 {
		limit = a.cfg.SearchLimit
	}

	searcher := search.NewSearcher(a.client, a.logger.Named("search"))
	result, err := searcher.Search(ctx, strings.Join(args, " "), filters.Value(), limit)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	if result.AIAnswer.Text != "" {
		fmt.Fprintf(out, "%s\n\n", result.AIAnswer.Text)
	}
	took := ""
	if result.SearchTimeMs != nil {
		took = fmt.Sprintf(" in %.0fms", *result.SearchTimeMs)
	}
	fmt.Fprintf(out, "%s %s\n", bold(fmt.Sprintf("%d results", result.TotalResults)), faint(took))
	if filters.HasActive() {
		fmt.Fprintln(out, faint("(filtered)"))
	}
	for i, d := range result.Documents {
		printDocument(out, i+1, d)
	}
	return nil
}

func runDoc(cmd *cobra.Command, args []string) error {
	a := current
	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()
	out := cmd.OutOrStdout()

	doc, err := a.client.Document(ctx, args[0])
	if err != nil {
		return err
	}
	printDocument(out, 1, *doc)
	if doc.Content != nil {
		fmt.Fprintf(out, "\n%s\n", *doc.Content)
	}
	if doc.SourceURL != nil {
		fmt.Fprintf(out, "\n%s %s\n", faint("source:"), cyan(*doc.SourceURL))
	}

	if docRelated <= 0 {
		return nil
	}
	related, err := a.client.RelatedDocuments(ctx, doc.ID, docRelated)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n", bold("Related"))
	for i, d := range related {
		printDocument(out, i+1, d)
	}
	return nil
}
