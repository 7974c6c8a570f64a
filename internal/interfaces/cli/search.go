package cli

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/similarity"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/providers"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

var (
	searchFeaturesPath string
	searchK            int
	searchOffline      bool
	searchCorpusPath   string
)

// NewSearchCmd builds the search command: find the indexed quanta most
// similar to a feature record.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find land quanta similar to a feature record",
		Long: `Search queries the similarity index for the k quanta whose feature
vectors are closest to the submitted record.

By default the query goes to the API server's index. With --offline a
temporary in-memory index is built from the --corpus fixture file and
queried locally.`,
		Example: `  landquant search --features parcel.json -k 5
  landquant search -f parcel.json -k 3 --offline --corpus corpus.json`,
		RunE: runSearch,
	}

	cmd.Flags().StringVarP(&searchFeaturesPath, "features", "f", "", "path to a feature record JSON file, or - for stdin (required)")
	cmd.Flags().IntVarP(&searchK, "k", "k", 10, "number of matches to return")
	cmd.Flags().BoolVar(&searchOffline, "offline", false, "query an in-process index instead of the API")
	cmd.Flags().StringVar(&searchCorpusPath, "corpus", "", "fixture file to index for --offline queries")
	_ = cmd.MarkFlagRequired("features")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if searchK < 1 {
		return fmt.Errorf("-k must be >= 1, got %d", searchK)
	}

	features, err := loadFeatures(cmd, searchFeaturesPath)
	if err != nil {
		return err
	}

	var matches []analysis.SimilarityMatch
	if searchOffline {
		matches, err = searchOfflineCorpus(cmd, cc, features)
	} else {
		if cc.Client == nil {
			return fmt.Errorf("no API client available (use --server or --offline)")
		}
		matches, err = cc.Client.Quanta().Similar(cmd.Context(), analysis.SimilarityQuery{
			Features: features,
			K:        searchK,
		})
	}
	if err != nil {
		return err
	}

	cc.Logger.Debug("similarity search complete", logging.Int("matches", len(matches)))
	return formatSearchMatches(cmd, matches, cc.OutputFormat)
}

// searchOfflineCorpus builds a throwaway in-memory index from the corpus
// fixture, keyed by the quantum ids the records resolve to on the configured
// grid, and queries it.
func searchOfflineCorpus(cmd *cobra.Command, cc *CLIContext, features analysis.FeatureRecord) ([]analysis.SimilarityMatch, error) {
	if searchCorpusPath == "" {
		return nil, fmt.Errorf("--offline search needs --corpus")
	}

	fixture, err := providers.LoadFixture(searchCorpusPath)
	if err != nil {
		return nil, err
	}
	g, err := buildGrid(cc.Config)
	if err != nil {
		return nil, err
	}

	index := similarity.NewMemoryIndex()
	err = fixture.Each(func(coord geo.Coordinate, rec *feature.Record) error {
		q, err := g.GetOrCreate(coord)
		if err != nil {
			return err
		}
		return index.Index(cmd.Context(), q.ID, rec)
	})
	if err != nil {
		return nil, err
	}

	found, err := index.Query(cmd.Context(), toDomainRecord(features), searchK)
	if err != nil {
		return nil, err
	}

	matches := make([]analysis.SimilarityMatch, len(found))
	for i, m := range found {
		matches[i] = analysis.SimilarityMatch{QuantumID: m.QuantumID, Similarity: m.Similarity}
	}
	return matches, nil
}

func formatSearchMatches(cmd *cobra.Command, matches []analysis.SimilarityMatch, format string) error {
	if format == "json" {
		return printJSON(cmd, matches)
	}

	out := cmd.OutOrStdout()
	if len(matches) == 0 {
		fmt.Fprintln(out, "No similar quanta found.")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "Quantum", "Similarity"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for i, m := range matches {
		table.Append([]string{
			strconv.Itoa(i + 1),
			m.QuantumID,
			fmt.Sprintf("%.4f", m.Similarity),
		})
	}
	table.Render()
	return nil
}
