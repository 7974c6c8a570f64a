package cli

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/LandQuant-Intelligence/internal/domain/mismatch"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/client"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

var (
	detectProfile      string
	detectFeaturesPath string
	detectQuantumID    string
	detectLearned      float64
	detectMinSeverity  float64
	detectOffline      bool
)

// NewDetectCmd builds the detect command: run mismatch detection over one
// observation.
func NewDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect cross-source mismatches on a feature record",
		Long: `Detect scores the record against the profile, then runs the mismatch
rules (slope, zoning opportunity, utility, flood/terrain) over the
observation and reports every disagreement above the severity floor.

Pass --learned to compare the rule-based score against a learned estimate.`,
		Example: `  landquant detect --profile general --features parcel.json
  landquant detect -p silicon_wafer_fab -f parcel.json --learned 3.1 --min-severity 0.4 --offline`,
		RunE: runDetect,
	}

	cmd.Flags().StringVarP(&detectProfile, "profile", "p", "", "use-case profile name (required)")
	cmd.Flags().StringVarP(&detectFeaturesPath, "features", "f", "", "path to a feature record JSON file, or - for stdin (required)")
	cmd.Flags().StringVar(&detectQuantumID, "quantum-id", "", "quantum id to stamp on the results")
	cmd.Flags().Float64Var(&detectLearned, "learned", 0, "learned utilization estimate to compare against")
	cmd.Flags().Float64Var(&detectMinSeverity, "min-severity", 0, "drop mismatches below this severity (default from config)")
	cmd.Flags().BoolVar(&detectOffline, "offline", false, "detect in-process instead of calling the API")
	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.MarkFlagRequired("features")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	features, err := loadFeatures(cmd, detectFeaturesPath)
	if err != nil {
		return err
	}

	var learned *float64
	if cmd.Flags().Changed("learned") {
		v := detectLearned
		learned = &v
	}
	minSeverity := detectMinSeverity
	if !cmd.Flags().Changed("min-severity") {
		minSeverity = cc.Config.Mismatch.MinSeverity
	}

	var report *client.MismatchReport
	if detectOffline {
		report, err = detectOfflineRecord(cc, features, learned, minSeverity)
	} else {
		if cc.Client == nil {
			return fmt.Errorf("no API client available (use --server or --offline)")
		}
		report, err = cc.Client.Analysis().DetectMismatches(cmd.Context(), analysis.DetectRequest{
			QuantumID:   detectQuantumID,
			Features:    features,
			Profile:     detectProfile,
			Learned:     learned,
			MinSeverity: minSeverity,
		})
	}
	if err != nil {
		return err
	}

	cc.Logger.Debug("mismatch detection complete",
		logging.String("profile", detectProfile),
		logging.Int("mismatches", len(report.Mismatches)))

	return formatMismatchReport(cmd, report, cc.OutputFormat)
}

func detectOfflineRecord(cc *CLIContext, features analysis.FeatureRecord, learned *float64, minSeverity float64) (*client.MismatchReport, error) {
	registry, err := buildRegistry(cc.Config)
	if err != nil {
		return nil, err
	}
	profile, err := registry.Get(detectProfile)
	if err != nil {
		return nil, err
	}

	rec := toDomainRecord(features)
	res, err := buildScorer(cc.Config).Score(rec, profile)
	if err != nil {
		return nil, err
	}

	found := buildDetector(cc.Config).ScanRegion([]mismatch.Observation{{
		QuantumID: detectQuantumID,
		Features:  rec,
		RuleScore: &res.Score,
		Learned:   learned,
	}}, minSeverity)

	report := &client.MismatchReport{RuleScore: res.Score}
	for _, m := range found {
		report.Mismatches = append(report.Mismatches, m.ToDTO())
	}
	return report, nil
}

func formatMismatchReport(cmd *cobra.Command, report *client.MismatchReport, format string) error {
	if format == "json" {
		return printJSON(cmd, report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rule score: %s / 10\n", colorizeScore(report.RuleScore))
	if len(report.Mismatches) == 0 {
		fmt.Fprintln(out, "No mismatches above the severity floor.")
		return nil
	}
	fmt.Fprintln(out)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Category", "Severity", "Left", "Right", "Explanation"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, m := range report.Mismatches {
		table.Append([]string{
			string(m.Category),
			colorizeSeverity(m.Severity),
			fmt.Sprintf("%s=%s", m.Left.Source, m.Left.Value),
			fmt.Sprintf("%s=%s", m.Right.Source, m.Right.Value),
			m.Explanation,
		})
	}
	table.Render()
	return nil
}

// colorizeSeverity renders a [0,1] severity with a traffic-light color.
func colorizeSeverity(severity float64) string {
	s := strconv.FormatFloat(severity, 'f', 2, 64)
	switch {
	case severity >= 0.7:
		return color.RedString(s)
	case severity >= 0.4:
		return color.YellowString(s)
	default:
		return color.GreenString(s)
	}
}
