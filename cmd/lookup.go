package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/wakefit-analytics/gmb-pipeline/internal/config"
	"github.com/wakefit-analytics/gmb-pipeline/internal/enrich"
	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
	"github.com/wakefit-analytics/gmb-pipeline/pkg/google"
)

var lookupDetails bool

var lookupCmd = &cobra.Command{
	Use:   "lookup <query>",
	Short: "Search places to find IDs for the input sheet",
	Long:  "Text-searches the places service and prints candidate place IDs. With --details the argument is treated as a store-locator URL or place ID and its rating data is fetched instead.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(config.ModeLookup); err != nil {
			return err
		}

		resolver, err := initResolver(ctx)
		if err != nil {
			return err
		}
		defer resolver.Close() //nolint:errcheck
		key, err := resolver.Resolve(ctx, cfg.Secrets.PlacesAPIKeyName)
		if err != nil {
			return eris.Wrap(err, "resolve places api key")
		}
		client := newPlacesClient(cfg.Places, strings.TrimSpace(key))
		query := strings.Join(args, " ")

		if lookupDetails {
			res := enrich.New(client, cfg.Places.EnrichOptions()).FetchOne(ctx, query)
			if res.Failed() {
				return eris.Errorf("lookup %s: %s", query, *res.Error)
			}
			formatEnrichment(os.Stdout, res)
			return nil
		}

		resp, err := client.TextSearch(ctx, query)
		if err != nil {
			return eris.Wrap(err, "lookup")
		}
		if len(resp.Places) == 0 {
			fmt.Fprintln(os.Stderr, "No places found.")
			return nil
		}
		formatPlaces(os.Stdout, resp.Places)
		return nil
	},
}

// formatPlaces writes text search candidates to w.
func formatPlaces(out io.Writer, places []google.Place) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PLACE_ID\tNAME\tRATING\tREVIEWS\tADDRESS")
	for _, p := range places {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\t%s\n",
			p.ID,
			p.DisplayName.Text,
			p.Rating,
			p.UserRatingCount,
			p.FormattedAddress,
		)
	}
	_ = w.Flush()
}

// formatEnrichment writes a single lookup result to w.
func formatEnrichment(out io.Writer, res model.EnrichmentResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Query:\t%s\n", res.OriginalURL)
	if res.Rating != nil {
		_, _ = fmt.Fprintf(w, "Rating:\t%.2f\n", *res.Rating)
	} else {
		_, _ = fmt.Fprintln(w, "Rating:\t-")
	}
	if res.TotalReviews != nil {
		_, _ = fmt.Fprintf(w, "Reviews:\t%d\n", *res.TotalReviews)
	} else {
		_, _ = fmt.Fprintln(w, "Reviews:\t-")
	}
	if res.BusinessStatus != nil && *res.BusinessStatus != "" {
		_, _ = fmt.Fprintf(w, "Status:\t%s\n", *res.BusinessStatus)
	}
	_ = w.Flush()
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupDetails, "details", false, "fetch rating data for a store-locator URL or place ID")
	rootCmd.AddCommand(lookupCmd)
}
