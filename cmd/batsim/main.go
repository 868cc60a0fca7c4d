package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/experiment"
	"github.com/san-kum/batsim/internal/export"
	"github.com/san-kum/batsim/internal/logging"
	"github.com/san-kum/batsim/internal/optim"
	"github.com/san-kum/batsim/internal/stepper"
	"github.com/san-kum/batsim/internal/storage"
	"github.com/san-kum/batsim/internal/tui"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	logFormat  string

	dt          float64
	duration    float64
	current     float64
	initialSOC  float64
	samples     int
	bootstrap   string
	integrator  string
	profileKind string
	inclusive   bool
	noStop      bool

	currents   []float64
	socs       []float64
	ambients   []float64
	bestMetric string
	minimize   bool
	frameRate  int
	perFrame   int
	chartVar   string
	outputPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "batsim",
		Short:        "window-stepped battery cell simulator",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".batsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a discharge experiment and store it",
		Args:  cobra.NoArgs,
		RunE:  runExperiment,
	}
	addRunFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run an experiment with a live terminal view",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")
	liveCmd.Flags().IntVar(&perFrame, "per-frame", 10, "windows per frame")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run a grid of experiments in parallel and rank them",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&currents, "currents", []float64{1, 2.5, 5, 10}, "constant currents (A)")
	sweepCmd.Flags().Float64SliceVar(&socs, "socs", nil, "initial states of charge")
	sweepCmd.Flags().Float64SliceVar(&ambients, "ambients", nil, "ambient temperatures (K)")
	sweepCmd.Flags().StringVar(&bestMetric, "best", "energy_wh", "metric used to rank the points")
	sweepCmd.Flags().BoolVar(&minimize, "minimize", false, "rank by the lowest metric value")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	chartCmd := &cobra.Command{
		Use:   "chart [run_id]",
		Short: "render a stored run to an image (png, svg, pdf)",
		Args:  cobra.ExactArgs(1),
		RunE:  chartRun,
	}
	chartCmd.Flags().StringVar(&chartVar, "var", "voltage", "variable to chart (voltage, current, soc, temperature)")
	chartCmd.Flags().StringVarP(&outputPath, "out", "o", "", "output file, format from extension (default <run_id>_<var>.png)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run windows to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outputPath, "out", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and windows to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outputPath, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPROFILE\tDT\tDURATION\tBOOTSTRAP\tCAPACITY\tCUTOFF")
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				p := cfg.Cell.GetParams()
				fmt.Fprintf(w, "%s\t%s\t%.1fs\t%.0fs\t%s\t%.2gAh\t%.2g-%.2gV\n",
					name, cfg.Profile.Kind, cfg.Run.Dt, cfg.Run.Duration, cfg.Run.Bootstrap,
					p["nominal_capacity_ah"], p["lower_cutoff_v"], p["upper_cutoff_v"])
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, sweepCmd, listCmd, plotCmd, chartCmd, exportCSVCmd, exportJSONCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "window length (s)")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "simulated duration (s)")
	cmd.Flags().Float64Var(&current, "current", config.DefaultCurrent, "applied current (A), positive discharges")
	cmd.Flags().Float64Var(&initialSOC, "soc", config.DefaultInitialSOC, "initial state of charge")
	cmd.Flags().IntVar(&samples, "samples", stepper.DefaultSamples, "samples per window")
	cmd.Flags().StringVar(&bootstrap, "bootstrap", "cold", "first-window seeding (cold, prime)")
	cmd.Flags().StringVar(&integrator, "integrator", "rk45", "integrator (euler, rk4, rk45)")
	cmd.Flags().StringVar(&profileKind, "profile", "constant", "current profile (constant, pulse, steps)")
	cmd.Flags().BoolVar(&inclusive, "inclusive", false, "add a final window starting at the end time")
	cmd.Flags().BoolVar(&noStop, "no-stop", false, "keep stepping after a voltage cutoff")
}

// loadConfig layers defaults, preset, config file and changed flags, in
// that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.LoadOnto(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Run.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Run.Duration = duration
	}
	if flags.Changed("current") {
		cfg.Profile.Current = current
	}
	if flags.Changed("soc") {
		cfg.Run.InitialSOC = initialSOC
	}
	if flags.Changed("samples") {
		cfg.Run.Samples = samples
	}
	if flags.Changed("bootstrap") {
		cfg.Run.Bootstrap = bootstrap
	}
	if flags.Changed("integrator") {
		cfg.Solver.Integrator = integrator
	}
	if flags.Changed("profile") {
		cfg.Profile.Kind = profileKind
	}
	if flags.Changed("inclusive") {
		cfg.Run.Inclusive = inclusive
	}
	if flags.Changed("no-stop") {
		cfg.Run.StopOnCutoff = !noStop
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Close()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.New(cfg, experiment.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %s: %d windows of %.3gs\n", cfg.Name, exp.Windows(), cfg.Run.Dt)
	start := time.Now()

	result, runErr := exp.Run(ctx)
	elapsed := time.Since(start)

	// Partial runs are still worth keeping.
	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}

	printResult(result, runID, elapsed)
	return runErr
}

func printResult(result *experiment.Result, runID string, elapsed time.Duration) {
	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("windows: %d\n", len(result.Records))
	fmt.Printf("stopped: %s\n", result.Termination)
	fmt.Printf("final soc: %.4f\n", result.FinalSOC)

	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The terminal belongs to the view, so logs only go to a file.
	logger, err := logging.NewFile(dataDir, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Close()

	exp, err := experiment.New(cfg, experiment.WithLogger(logger))
	if err != nil {
		return err
	}

	m := tui.NewModel(exp, cfg.Name, perFrame, frameRate)
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(tui.Model); ok && fm.Err() != nil {
		return fm.Err()
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	axes := []optim.Axis{}
	for _, a := range []optim.Axis{
		{Name: "current", Values: currents},
		{Name: "soc", Values: socs},
		{Name: "ambient", Values: ambients},
	} {
		if len(a.Values) > 0 {
			axes = append(axes, a)
		}
	}
	grid, err := optim.NewGridSearch(axes...)
	if err != nil {
		return err
	}

	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(base)
	defer logger.Close()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	out, sweepErr := grid.Search(ctx, func() (*config.Config, error) { return loadConfig(cmd) }, bestMetric, !minimize, experiment.WithLogger(logger))
	if out == nil {
		return sweepErr
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tPOINT\tWINDOWS\tSTOPPED\tFINAL SOC\tENERGY (Wh)\tMIN V")
	for i, res := range out.Results {
		if res == nil {
			continue
		}
		runID, err := st.Save(out.Configs[i], res)
		if err != nil {
			return err
		}
		marker := ""
		if i == out.Best {
			marker = " *"
		}
		fmt.Fprintf(w, "%s\t%s%s\t%d\t%s\t%.4f\t%.3f\t%.3f\n",
			runID, out.Points[i], marker, len(res.Records), res.Termination, res.FinalSOC,
			res.Metrics["energy_wh"], res.Metrics["min_voltage"])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nswept %d points in %v\n", len(out.Points), time.Since(start).Round(time.Millisecond))
	if out.Best >= 0 {
		fmt.Printf("best %s: %.6f at %s\n", bestMetric, out.Value, out.Points[out.Best])
	}
	return sweepErr
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tPROFILE\tWINDOWS\tDT\tSOC\tSTOPPED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3gs\t%.3f -> %.3f\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Profile,
			run.Windows,
			run.Dt,
			run.InitialSOC,
			run.FinalSOC,
			run.Termination,
		)
	}

	return w.Flush()
}

// series picks one column out of stored windows.
func series(records []stepper.Report, name string) ([]float64, string, error) {
	var get func(stepper.Report) float64
	var label string

	switch strings.ToLower(name) {
	case "voltage":
		get, label = func(r stepper.Report) float64 { return r.AvgVoltageV }, "voltage (V)"
	case "current":
		get, label = func(r stepper.Report) float64 { return r.AvgCurrentA }, "current (A)"
	case "soc":
		get, label = func(r stepper.Report) float64 { return r.SOC }, "state of charge"
	case "temperature":
		get, label = func(r stepper.Report) float64 { return r.AvgTemperatureK }, "temperature (K)"
	default:
		return nil, "", fmt.Errorf("unknown variable: %s", name)
	}

	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = get(r)
	}
	return out, label, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	records, err := st.LoadRecords(runID)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("profile: %s\n", meta.Profile)
	fmt.Printf("windows: %d\n\n", len(records))

	for _, name := range []string{"voltage", "soc", "temperature", "current"} {
		data, caption, err := series(records, name)
		if err != nil {
			return err
		}

		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func chartRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	records, err := st.LoadRecords(runID)
	if err != nil {
		return err
	}

	ys, label, err := series(records, chartVar)
	if err != nil {
		return err
	}
	xs := make([]float64, len(records))
	for i, r := range records {
		xs[i] = r.Time
	}

	path := outputPath
	if path == "" {
		path = fmt.Sprintf("%s_%s.png", runID, chartVar)
	}
	if err := export.WriteChart(path, runID, label, xs, ys); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}

// output returns stdout, or the --out file when one was given.
func output() (io.WriteCloser, error) {
	if outputPath == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(outputPath)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	records, err := st.LoadRecords(args[0])
	if err != nil {
		return err
	}

	w, err := output()
	if err != nil {
		return err
	}
	defer w.Close()

	return storage.WriteCSV(w, records)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	records, err := st.LoadRecords(runID)
	if err != nil {
		return err
	}

	w, err := output()
	if err != nil {
		return err
	}
	defer w.Close()

	return storage.ExportJSON(w, *meta, records)
}
