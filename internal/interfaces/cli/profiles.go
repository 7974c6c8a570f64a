package cli

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

var profilesOffline bool

// NewProfilesCmd builds the profiles command: list the registered use-case
// profiles.
func NewProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the registered use-case profiles",
		Long: `Profiles lists every scoring profile the platform knows: the built-in
set plus any declared in configuration. Each row shows how many feature
weights and synergy rules the profile carries and the score range.`,
		Example: `  landquant profiles
  landquant profiles --offline -o json`,
		RunE: runProfiles,
	}

	cmd.Flags().BoolVar(&profilesOffline, "offline", false, "list from the local registry instead of the API")
	return cmd
}

func runProfiles(cmd *cobra.Command, args []string) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	var summaries []analysis.ProfileSummary
	if profilesOffline {
		summaries, err = profilesOfflineList(cc)
	} else {
		if cc.Client == nil {
			return fmt.Errorf("no API client available (use --server or --offline)")
		}
		summaries, err = cc.Client.Analysis().Profiles(cmd.Context())
	}
	if err != nil {
		return err
	}

	return formatProfileSummaries(cmd, summaries, cc.OutputFormat)
}

func profilesOfflineList(cc *CLIContext) ([]analysis.ProfileSummary, error) {
	registry, err := buildRegistry(cc.Config)
	if err != nil {
		return nil, err
	}
	params := buildScorer(cc.Config).Params()

	list := registry.List()
	summaries := make([]analysis.ProfileSummary, len(list))
	for i, p := range list {
		summaries[i] = analysis.ProfileSummary{
			Name:         p.Name,
			Title:        p.Title,
			Description:  p.Description,
			WeightCount:  len(p.Weights),
			SynergyCount: len(p.Synergies) + len(p.AntiSynergies),
			ScoreMin:     params.MinScore,
			ScoreMax:     params.MaxScore,
		}
	}
	return summaries, nil
}

func formatProfileSummaries(cmd *cobra.Command, summaries []analysis.ProfileSummary, format string) error {
	if format == "json" {
		return printJSON(cmd, summaries)
	}

	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No profiles registered.")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Name", "Title", "Weights", "Synergies", "Range"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, s := range summaries {
		table.Append([]string{
			s.Name,
			s.Title,
			strconv.Itoa(s.WeightCount),
			strconv.Itoa(s.SynergyCount),
			fmt.Sprintf("%.0f-%.0f", s.ScoreMin, s.ScoreMax),
		})
	}
	table.Render()
	return nil
}
