package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	appanalysis "github.com/turtacn/LandQuant-Intelligence/internal/application/analysis"
	"github.com/turtacn/LandQuant-Intelligence/internal/application/scan"
	"github.com/turtacn/LandQuant-Intelligence/internal/application/worker"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/job"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/similarity"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/providers"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/queue/memory"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

var (
	scanCenter     string
	scanRadius     float64
	scanBox        string
	scanProfile    string
	scanResolution int
	scanPriority   int
	scanShowFailed bool
	scanLimit      int
	scanFixture    string
	scanWorkers    int
	scanWait       time.Duration
)

// NewScanCmd builds the scan command group: submit, inspect, and archive
// bulk region scans, or run one locally end to end.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Submit and inspect bulk region scans",
		Long: `Scan fans a region out into one analysis job per grid quantum. The
subcommands submit scans to the API server, follow their progress, archive
finished reports, and (with run) execute a whole scan locally against a
fixture corpus.`,
	}

	cmd.AddCommand(
		newScanStartCmd(),
		newScanStatusCmd(),
		newScanListCmd(),
		newScanArchiveCmd(),
		newScanRunCmd(),
	)
	return cmd
}

func newScanStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Submit a region scan to the API server",
		Example: `  landquant scan start --profile desalination_plant --center "33.45,-112.07" --radius 1200
  landquant scan start -p warehouse_distribution --box "33.40,-112.10,33.50,-112.00" --priority 5`,
		RunE: runScanStart,
	}

	cmd.Flags().StringVarP(&scanProfile, "profile", "p", "", "use-case profile name (required)")
	cmd.Flags().StringVar(&scanCenter, "center", "", `scan center as "lat,lon" (with --radius)`)
	cmd.Flags().Float64Var(&scanRadius, "radius", 0, "scan radius in meters around --center")
	cmd.Flags().StringVar(&scanBox, "box", "", `bounding box as "minLat,minLon,maxLat,maxLon"`)
	cmd.Flags().IntVar(&scanResolution, "resolution", 0, "expected grid resolution in meters (0 accepts the server's)")
	cmd.Flags().IntVar(&scanPriority, "priority", 0, "job priority, higher first")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}

func runScanStart(cmd *cobra.Command, args []string) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if cc.Client == nil {
		return fmt.Errorf("no API client available (use --server)")
	}

	region, err := parseRegion(scanCenter, scanRadius, scanBox)
	if err != nil {
		return err
	}

	s, err := cc.Client.Scans().Start(cmd.Context(), analysis.ScanRequest{
		Region:           region,
		ResolutionMeters: scanResolution,
		Profile:          scanProfile,
		Priority:         scanPriority,
	})
	if err != nil {
		return err
	}

	if cc.OutputFormat == "json" {
		return printJSON(cmd, s)
	}
	PrintSuccess(cmd, fmt.Sprintf("scan %s accepted: %d quanta queued for profile %s", s.ID, s.QuantumCount, s.Profile))
	return nil
}

func newScanStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <scan-id>",
		Short: "Show live progress for a scan",
		Args:  cobra.ExactArgs(1),
		RunE:  runScanStatus,
	}
	cmd.Flags().BoolVar(&scanShowFailed, "failed", false, "include permanently failed coordinates")
	return cmd
}

func runScanStatus(cmd *cobra.Command, args []string) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if cc.Client == nil {
		return fmt.Errorf("no API client available (use --server)")
	}

	if scanShowFailed {
		report, err := cc.Client.Scans().Report(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return formatScanReport(cmd, report, cc.OutputFormat)
	}

	s, err := cc.Client.Scans().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return formatScan(cmd, s, cc.OutputFormat)
}

func newScanListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent scans, newest first",
		RunE:  runScanList,
	}
	cmd.Flags().IntVar(&scanLimit, "limit", 20, "maximum number of scans to return")
	return cmd
}

func runScanList(cmd *cobra.Command, args []string) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if cc.Client == nil {
		return fmt.Errorf("no API client available (use --server)")
	}

	scans, err := cc.Client.Scans().List(cmd.Context(), scanLimit)
	if err != nil {
		return err
	}

	if cc.OutputFormat == "json" {
		return printJSON(cmd, scans)
	}
	out := cmd.OutOrStdout()
	if len(scans) == 0 {
		fmt.Fprintln(out, "No scans found.")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Profile", "Resolution", "Quanta", "Created"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, s := range scans {
		table.Append([]string{
			s.ID,
			s.Profile,
			fmt.Sprintf("%dm", s.ResolutionMeters),
			strconv.Itoa(s.QuantumCount),
			s.CreatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
	return nil
}

func newScanArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <scan-id>",
		Short: "Archive the scan's report to object storage",
		Args:  cobra.ExactArgs(1),
		RunE:  runScanArchive,
	}
}

func runScanArchive(cmd *cobra.Command, args []string) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if cc.Client == nil {
		return fmt.Errorf("no API client available (use --server)")
	}

	res, err := cc.Client.Scans().Archive(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if cc.OutputFormat == "json" {
		return printJSON(cmd, res)
	}
	PrintSuccess(cmd, fmt.Sprintf("report for scan %s archived as %s", args[0], res.ObjectKey))
	return nil
}

func newScanRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a whole scan locally against a fixture corpus",
		Long: `Run executes a scan end to end in-process: the region is enumerated on a
local grid, features come from the --fixture corpus, and a local worker pool
drains the queue through the full analysis pipeline. No server is involved.`,
		Example: `  landquant scan run -p general --center "33.45,-112.07" --radius 500 --fixture corpus.json`,
		RunE:    runScanRun,
	}

	cmd.Flags().StringVarP(&scanProfile, "profile", "p", "", "use-case profile name (required)")
	cmd.Flags().StringVar(&scanCenter, "center", "", `scan center as "lat,lon" (with --radius)`)
	cmd.Flags().Float64Var(&scanRadius, "radius", 0, "scan radius in meters around --center")
	cmd.Flags().StringVar(&scanBox, "box", "", `bounding box as "minLat,minLon,maxLat,maxLon"`)
	cmd.Flags().StringVar(&scanFixture, "fixture", "", "fixture corpus serving features (required)")
	cmd.Flags().IntVar(&scanWorkers, "workers", 4, "local worker concurrency")
	cmd.Flags().DurationVar(&scanWait, "wait", 2*time.Minute, "give up if the scan has not drained by then")
	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.MarkFlagRequired("fixture")

	return cmd
}

// collectingSink keeps every record the pipeline emits so the run can print
// per-quantum results at the end.
type collectingSink struct {
	mu      sync.Mutex
	records []*analysis.AnalysisRecord
}

func (s *collectingSink) Write(_ context.Context, rec *analysis.AnalysisRecord) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

func (s *collectingSink) sorted() []*analysis.AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*analysis.AnalysisRecord, len(s.records))
	copy(out, s.records)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Result.Score != out[j].Result.Score {
			return out[i].Result.Score > out[j].Result.Score
		}
		return out[i].QuantumID < out[j].QuantumID
	})
	return out
}

// scanRunOutput is the JSON shape of a local run: the accepted scan, the
// final report, and every analysis record ordered by score.
type scanRunOutput struct {
	Scan    *analysis.Scan             `json:"scan"`
	Report  *analysis.ScanReport       `json:"report"`
	Results []*analysis.AnalysisRecord `json:"results"`
}

func runScanRun(cmd *cobra.Command, args []string) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	region, err := parseRegion(scanCenter, scanRadius, scanBox)
	if err != nil {
		return err
	}

	g, err := buildGrid(cc.Config)
	if err != nil {
		return err
	}
	registry, err := buildRegistry(cc.Config)
	if err != nil {
		return err
	}

	fixture, err := providers.LoadFixture(scanFixture)
	if err != nil {
		return err
	}
	provider, err := fixture.Provider("fixture", g)
	if err != nil {
		return err
	}

	sink := &collectingSink{}
	pipeline, err := appanalysis.NewPipeline(appanalysis.Deps{
		Grid:     g,
		Profiles: registry,
		Scorer:   buildScorer(cc.Config),
		Detector: buildDetector(cc.Config),
		Provider: provider,
		Index:    similarity.NewMemoryIndex(),
		Sink:     sink,
		Logger:   cc.Logger,
	})
	if err != nil {
		return err
	}

	queue := memory.NewQueue()
	svc, err := scan.NewService(scan.Deps{
		Grid:     g,
		Profiles: registry,
		Queue:    queue,
		Scans:    memory.NewScanStore(),
		Logger:   cc.Logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), scanWait)
	defer cancel()

	s, err := svc.Start(ctx, analysis.ScanRequest{
		Region:  region,
		Profile: scanProfile,
	})
	if err != nil {
		return err
	}
	scanID, err := uuid.Parse(s.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Scanning %d quanta with %d workers...\n", s.QuantumCount, scanWorkers)

	pool, err := worker.NewPool(worker.Config{
		Concurrency:  scanWorkers,
		PollInterval: 10 * time.Millisecond,
		JobTimeout:   30 * time.Second,
	}, queue, pipeline, nil, cc.Logger)
	if err != nil {
		return err
	}

	// Cancel the pool once every job has settled; Run returns after the
	// in-flight attempts finish.
	runCtx, stop := context.WithCancel(ctx)
	go func() {
		defer stop()
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				counts, err := queue.CountByStatus(runCtx, scanID)
				if err != nil {
					return
				}
				if counts[job.StatusPending]+counts[job.StatusInProgress] == 0 {
					return
				}
			}
		}
	}()
	if err := pool.Run(runCtx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("scan %s did not drain within %s", s.ID, scanWait)
	}

	report, err := svc.Status(context.WithoutCancel(ctx), scanID)
	if err != nil {
		return err
	}

	if cc.OutputFormat == "json" {
		return printJSON(cmd, scanRunOutput{Scan: s, Report: report, Results: sink.sorted()})
	}
	if err := formatScanReport(cmd, report, cc.OutputFormat); err != nil {
		return err
	}
	return formatRunResults(cmd, sink.sorted())
}

// parseRegion builds the scan region from exactly one of center+radius or a
// bounding box.
func parseRegion(center string, radius float64, box string) (geo.Region, error) {
	switch {
	case center != "" && box != "":
		return geo.Region{}, fmt.Errorf("--center and --box are mutually exclusive")
	case center != "":
		c, err := parseCoordinate(center)
		if err != nil {
			return geo.Region{}, err
		}
		if radius <= 0 {
			return geo.Region{}, fmt.Errorf("--center needs --radius > 0")
		}
		return geo.Region{Center: &c, RadiusMeters: radius}, nil
	case box != "":
		parts := strings.Split(box, ",")
		if len(parts) != 4 {
			return geo.Region{}, fmt.Errorf("--box %q must be minLat,minLon,maxLat,maxLon", box)
		}
		vals := make([]float64, 4)
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return geo.Region{}, fmt.Errorf("--box component %q: %w", p, err)
			}
			vals[i] = v
		}
		b := geo.BoundingBox{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}
		if err := b.Validate(); err != nil {
			return geo.Region{}, err
		}
		return geo.Region{Box: &b}, nil
	default:
		return geo.Region{}, fmt.Errorf("a region is required: --center with --radius, or --box")
	}
}

func formatScan(cmd *cobra.Command, s *analysis.Scan, format string) error {
	if format == "json" {
		return printJSON(cmd, s)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scan:       %s\n", s.ID)
	fmt.Fprintf(out, "Profile:    %s\n", s.Profile)
	fmt.Fprintf(out, "Resolution: %dm\n", s.ResolutionMeters)
	fmt.Fprintf(out, "Quanta:     %d\n", s.QuantumCount)
	fmt.Fprintf(out, "Created:    %s\n", s.CreatedAt.Format(time.RFC3339))
	fmt.Fprintln(out)
	printStatusCounts(cmd, s.Counts)
	return nil
}

func formatScanReport(cmd *cobra.Command, report *analysis.ScanReport, format string) error {
	if format == "json" {
		return printJSON(cmd, report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scan:    %s\n", report.ScanID)
	fmt.Fprintf(out, "Profile: %s\n", report.Profile)
	fmt.Fprintln(out)
	printStatusCounts(cmd, report.Counts)

	if len(report.Failed) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, color.RedString("Permanently failed coordinates:"))
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Quantum", "Coordinate", "Attempts", "Reason"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, f := range report.Failed {
		table.Append([]string{
			f.QuantumID,
			f.Coordinate.String(),
			strconv.Itoa(f.Attempts),
			f.Reason,
		})
	}
	table.Render()
	return nil
}

func printStatusCounts(cmd *cobra.Command, counts analysis.ScanStatusCounts) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pending:      %d\n", counts.Pending)
	fmt.Fprintf(out, "In progress:  %d\n", counts.InProgress)
	fmt.Fprintf(out, "Done:         %s\n", color.GreenString(strconv.Itoa(counts.Done)))
	if counts.Failed > 0 {
		fmt.Fprintf(out, "Failed:       %s\n", color.RedString(strconv.Itoa(counts.Failed)))
	} else {
		fmt.Fprintf(out, "Failed:       0\n")
	}
}

// formatRunResults prints the analyzed quanta ordered by score, best first.
func formatRunResults(cmd *cobra.Command, records []*analysis.AnalysisRecord) error {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		return nil
	}
	fmt.Fprintln(out)

	const maxRows = 15
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Quantum", "Score", "Mismatches"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	shown := records
	if len(shown) > maxRows {
		shown = shown[:maxRows]
	}
	for _, r := range shown {
		score := colorizeScore(r.Result.Score)
		if r.Result.Disqualified {
			score = color.RedString("DQ")
		}
		table.Append([]string{r.QuantumID, score, strconv.Itoa(len(r.Mismatches))})
	}
	table.Render()
	if len(records) > maxRows {
		fmt.Fprintf(out, "...and %d more (use -o json for the full list)\n", len(records)-maxRows)
	}
	return nil
}
