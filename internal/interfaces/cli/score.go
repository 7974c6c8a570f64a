package cli

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

var (
	scoreProfile      string
	scoreFeaturesPath string
	scoreQuantumID    string
	scoreOffline      bool
)

// NewScoreCmd builds the score command: rate one feature record against a
// use-case profile.
func NewScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a feature record against a use-case profile",
		Long: `Score computes the utilization score of one feature record against a
named profile and prints the bounded score with its term breakdown.

The record is read as JSON from --features (use "-" for stdin). By default
the request goes to the API server; --offline runs the scorer in-process.`,
		Example: `  landquant score --profile desalination_plant --features parcel.json
  cat parcel.json | landquant score --profile silicon_wafer_fab --features - --offline`,
		RunE: runScore,
	}

	cmd.Flags().StringVarP(&scoreProfile, "profile", "p", "", "use-case profile name (required)")
	cmd.Flags().StringVarP(&scoreFeaturesPath, "features", "f", "", "path to a feature record JSON file, or - for stdin (required)")
	cmd.Flags().StringVar(&scoreQuantumID, "quantum-id", "", "quantum id to stamp on the result")
	cmd.Flags().BoolVar(&scoreOffline, "offline", false, "score in-process instead of calling the API")
	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.MarkFlagRequired("features")

	return cmd
}

func runScore(cmd *cobra.Command, args []string) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	features, err := loadFeatures(cmd, scoreFeaturesPath)
	if err != nil {
		return err
	}

	var result *analysis.UtilizationResult
	if scoreOffline {
		result, err = scoreOfflineRecord(cc, features)
	} else {
		result, err = scoreViaAPI(cmd, cc, features)
	}
	if err != nil {
		return err
	}

	cc.Logger.Debug("scoring complete",
		logging.String("profile", result.Profile),
		logging.Float64("score", result.Score))

	return formatScoreResult(cmd, result, cc.OutputFormat)
}

func scoreViaAPI(cmd *cobra.Command, cc *CLIContext, features analysis.FeatureRecord) (*analysis.UtilizationResult, error) {
	if cc.Client == nil {
		return nil, fmt.Errorf("no API client available (use --server or --offline)")
	}
	return cc.Client.Analysis().Score(cmd.Context(), analysis.ScoreRequest{
		Features: features,
		Profile:  scoreProfile,
	})
}

func scoreOfflineRecord(cc *CLIContext, features analysis.FeatureRecord) (*analysis.UtilizationResult, error) {
	registry, err := buildRegistry(cc.Config)
	if err != nil {
		return nil, err
	}
	profile, err := registry.Get(scoreProfile)
	if err != nil {
		return nil, err
	}
	res, err := buildScorer(cc.Config).Score(toDomainRecord(features), profile)
	if err != nil {
		return nil, err
	}
	dto := res.ToDTO(scoreQuantumID)
	return &dto, nil
}

func formatScoreResult(cmd *cobra.Command, result *analysis.UtilizationResult, format string) error {
	if format == "json" {
		return printJSON(cmd, result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Profile:  %s\n", result.Profile)
	fmt.Fprintf(out, "Score:    %s / 10\n", colorizeScore(result.Score))
	if result.QuantumID != "" {
		fmt.Fprintf(out, "Quantum:  %s\n", result.QuantumID)
	}
	if result.Disqualified {
		fmt.Fprintf(out, "Status:   %s\n", color.RedString("DISQUALIFIED"))
	}
	fmt.Fprintln(out)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Term", "Kind", "Contribution"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, t := range result.Breakdown {
		table.Append([]string{t.Name, string(t.Kind), fmt.Sprintf("%+.2f", t.Contribution)})
	}
	table.Render()
	return nil
}

// colorizeScore renders a 0-10 utilization score with a traffic-light color.
func colorizeScore(score float64) string {
	s := strconv.FormatFloat(score, 'f', 2, 64)
	switch {
	case score >= 7.0:
		return color.GreenString(s)
	case score >= 4.0:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}
