package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kr1s0404/fmm/internal/analysis"
	"github.com/kr1s0404/fmm/internal/automation"
	"github.com/kr1s0404/fmm/internal/compute"
	"github.com/kr1s0404/fmm/internal/config"
	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/experiment"
	"github.com/kr1s0404/fmm/internal/export"
	"github.com/kr1s0404/fmm/internal/optim"
	"github.com/kr1s0404/fmm/internal/render"
	"github.com/kr1s0404/fmm/internal/scene"
	"github.com/kr1s0404/fmm/internal/storage"
	"github.com/kr1s0404/fmm/internal/viz"
)

var (
	configFile string
	logLevel   string
	log        zerolog.Logger

	preset     string
	numBodies  int
	seed       int64
	dt         float64
	frames     int
	integrator string
	backend    string
	mode       string
	theta      float64
	workers    int
	runsDir    string

	// rendering
	width    int
	height   int
	fps      int
	codec    string
	output   string
	noRender bool
	svgPath  string
	jsonPath string

	// validation
	levels    int
	maxBodies int
	tolerance float64
	timings   string

	// ensemble and sweep
	trials     int
	seedStart  int64
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int

	// analysis and tuning
	perturbation float64
	grid         []string
	tuneMetric   string
)

const svgTrailBodies = 64

// main registers the nbody commands and runs the scene menu when no
// subcommand is given.
func main() {
	rootCmd := &cobra.Command{
		Use:           "nbody",
		Short:         "gravitational n-body simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, "")
			if err != nil {
				return err
			}
			// the alt screen owns the terminal, so nothing is logged
			return viz.RunInteractive(cfg.Experiment(), experiment.NewRegistry(), zerolog.Nop())
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&runsDir, "data", config.DefaultRunsDir, "run storage directory")

	runCmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "run a simulation and render its frames",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	addRenderFlags(runCmd)
	runCmd.Flags().BoolVar(&noRender, "no-render", false, "skip frame output")
	runCmd.Flags().StringVar(&svgPath, "svg", "", "write body trajectories to this SVG file")
	runCmd.Flags().StringVar(&jsonPath, "json", "", "write the full result to this JSON file")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "compare an accelerated solver against direct summation",
		Args:  cobra.NoArgs,
		RunE:  runValidation,
	}
	validateCmd.Flags().StringVar(&backend, "backend", "tree", "accelerated backend")
	validateCmd.Flags().Float64Var(&theta, "theta", 0, "opening angle (0 for the backend default)")
	validateCmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines (0 for all cpus)")
	validateCmd.Flags().IntVar(&levels, "levels", 0, "number of schedule levels")
	validateCmd.Flags().IntVar(&maxBodies, "max-bodies", 0, "skip levels above this body count")
	validateCmd.Flags().Float64Var(&tolerance, "tolerance", 0, "largest accepted L2 discrepancy")
	validateCmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	validateCmd.Flags().StringVar(&timings, "output", "", "timing artifact path")

	compareCmd := &cobra.Command{
		Use:   "compare [scene] [integrator...]",
		Short: "compare integrators on the same scene",
		Args:  cobra.MinimumNArgs(1),
		RunE:  compareIntegrators,
	}
	addSimFlags(compareCmd)

	watchCmd := &cobra.Command{
		Use:   "watch [scene]",
		Short: "run a simulation with live terminal visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWatch,
	}
	addSimFlags(watchCmd)
	addRenderFlags(watchCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the energy of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export the energy series of a run to CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openRuns(cmd)
			if err != nil {
				return err
			}
			return st.CopyEnergy(args[0], os.Stdout)
		},
	}

	scenesCmd := &cobra.Command{
		Use:   "scenes",
		Short: "list scenes, backends and integrators",
		Args:  cobra.NoArgs,
		RunE:  listScenes,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [scene]",
		Short: "list available presets for a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := scene.ParseVariant(args[0]).String()
			presets := config.ListPresets(name)
			if len(presets) == 0 {
				fmt.Printf("no presets for scene: %s\n", name)
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRESET\tBODIES\tDT\tFRAMES\tBACKEND\tMODE")
			for _, p := range presets {
				cfg := config.GetPreset(name, p)
				fmt.Fprintf(w, "%s\t%d\t%g\t%d\t%s\t%s\n", p, cfg.Bodies, cfg.Dt, cfg.Frames, cfg.Backend, cfg.Mode)
			}
			return w.Flush()
		},
	}

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run every step of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	ensembleCmd := &cobra.Command{
		Use:   "ensemble [scene]",
		Short: "run one scene with many seeds in parallel",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEnsemble,
	}
	addSimFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&trials, "trials", 8, "number of runs")
	ensembleCmd.Flags().Int64Var(&seedStart, "seed-start", 1, "seed of the first run")

	sweepCmd := &cobra.Command{
		Use:   "sweep [scene]",
		Short: "run one scene across a range of dt, theta or softening",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addSimFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "dt", "parameter to sweep (dt, theta, softening)")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0.001, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 0.02, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "find the dominant oscillation in the energy of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	lyapunovCmd := &cobra.Command{
		Use:   "lyapunov [scene]",
		Short: "estimate the largest Lyapunov exponent of a scene",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLyapunov,
	}
	addSimFlags(lyapunovCmd)
	lyapunovCmd.Flags().Float64Var(&perturbation, "perturbation", 1e-8, "initial separation of the twin trajectory")

	tuneCmd := &cobra.Command{
		Use:   "tune [scene]",
		Short: "grid search parameters for the lowest value of a metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTune,
	}
	addSimFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&grid, "grid", []string{"dt=0.001:0.02:5"},
		fmt.Sprintf("parameter range as name=min:max:steps, repeatable %v", experiment.Tunable))
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "energy_drift", "metric to minimize")

	rootCmd.AddCommand(runCmd, validateCmd, compareCmd, watchCmd, listCmd, plotCmd, exportCSVCmd,
		scenesCmd, presetsCmd, batchCmd, ensembleCmd, sweepCmd, analyzeCmd, lyapunovCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().IntVar(&numBodies, "bodies", config.DefaultBodies, "number of bodies")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "number of frames")
	cmd.Flags().StringVar(&integrator, "integrator", "symplectic", "integrator")
	cmd.Flags().StringVar(&backend, "backend", "tree", "accelerated backend (tree, multipole)")
	cmd.Flags().StringVar(&mode, "mode", "direct", "force evaluation mode (direct, accelerated)")
	cmd.Flags().Float64Var(&theta, "theta", 0, "opening angle (0 for the backend default)")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines (0 for all cpus)")
}

func addRenderFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&width, "width", render.DefaultWidth, "frame width in pixels")
	cmd.Flags().IntVar(&height, "height", render.DefaultHeight, "frame height in pixels")
	cmd.Flags().IntVar(&fps, "fps", render.DefaultFPS, "frame rate")
	cmd.Flags().StringVar(&codec, "codec", render.DefaultCodec, fmt.Sprintf("frame codec %v", export.Codecs()))
	cmd.Flags().StringVar(&output, "output", "", "output name without extension")
}

func setupLogger() error {
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(lvl).With().Timestamp().Logger()
	return nil
}

// loadConfig layers the config file, the preset and any flags the user
// set explicitly. sceneArg wins over the file when given.
func loadConfig(cmd *cobra.Command, sceneArg string) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if sceneArg != "" {
		cfg.SetScene(scene.ParseVariant(sceneArg).String())
	}

	if preset != "" {
		name := scene.ParseVariant(cfg.Scene).String()
		p, ok := config.Presets[name][preset]
		if !ok {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(name))
		}
		p.Apply(cfg)
	}

	flags := cmd.Flags()
	if flags.Changed("bodies") {
		cfg.Bodies = numBodies
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("frames") {
		cfg.Frames = frames
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("mode") {
		cfg.Mode = mode
	}
	if flags.Changed("theta") {
		cfg.Theta = theta
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("data") {
		cfg.RunsDir = runsDir
	}
	if flags.Changed("width") {
		cfg.Render.Width = width
	}
	if flags.Changed("height") {
		cfg.Render.Height = height
	}
	if flags.Changed("fps") {
		cfg.Render.FPS = fps
	}
	if flags.Changed("codec") {
		cfg.Render.Codec = codec
	}
	if flags.Changed("output") {
		cfg.Render.Output = output
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func sceneArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func setup(cfg experiment.Config, reg *experiment.Registry) (*experiment.Experiment, error) {
	exp := experiment.New(cfg)
	if err := exp.Setup(reg, log, reg.DefaultMetrics(cfg.Gravity())...); err != nil {
		return nil, err
	}
	return exp, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, sceneArg(args))
	if err != nil {
		return err
	}
	expCfg := cfg.Experiment()
	reg := experiment.NewRegistry()

	exp, err := setup(expCfg, reg)
	if err != nil {
		return err
	}
	simulator := exp.GetSimulator()

	var sink *export.Lazy
	if !noRender {
		sink = export.NewLazy(export.NewFileSink(), cfg.Render, log)
		simulator.WithRenderer(render.NewProjector(cfg.Render), sink)
	}
	var trails *export.Trails
	if svgPath != "" {
		trails = export.NewTrails(svgTrailBodies, max(1, expCfg.Frames/500))
		simulator.AddObserver(trails)
	}

	ctx, cancel := interruptible()
	defer cancel()

	fmt.Printf("running %s with %d bodies...\n", expCfg.Scene, expCfg.Bodies)
	start := time.Now()
	result, runErr := exp.Run(ctx)
	elapsed := time.Since(start)

	if sink != nil {
		if err := sink.Close(); err != nil {
			log.Error().Err(err).Msg("could not finish output")
		}
	}
	if runErr != nil && (result == nil || !errors.Is(runErr, context.Canceled)) {
		return runErr
	}

	st := storage.New(cfg.RunsDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(expCfg, result)
	if err != nil {
		return err
	}

	if trails != nil {
		if err := writeSVG(svgPath, trails, cfg.Render); err != nil {
			return err
		}
		log.Info().Str("path", svgPath).Int("bodies", trails.Bodies()).Msg("trajectories saved")
	}
	if jsonPath != "" {
		if err := storage.ExportJSON(jsonPath, expCfg, result); err != nil {
			return err
		}
	}

	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	if runErr != nil {
		fmt.Printf("interrupted after %d frames\n", result.Frames)
	}
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("frames: %d\n", result.Frames)
	if sink != nil && !sink.Disabled() {
		fmt.Printf("output: %s\n", sink.Path())
	}
	if n := len(result.Errors); n > 0 {
		fmt.Printf("frame errors: %d\n", n)
	}
	printMetrics(result.Metrics)
	return nil
}

func writeSVG(path string, trails *export.Trails, rc render.Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := trails.WriteSVG(f, rc.Width, rc.Height); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printMetrics(metrics map[string]float64) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, metrics[name])
	}
}

func runValidation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	vc := cfg.Validation
	if flags.Changed("levels") {
		vc.Schedule.Levels = levels
	}
	if flags.Changed("max-bodies") {
		vc.Schedule.MaxBodies = maxBodies
	}
	if flags.Changed("tolerance") {
		vc.Tolerance = tolerance
	}
	if flags.Changed("seed") {
		vc.Seed = seed
	}
	if flags.Changed("output") {
		vc.Output = timings
	}
	if cfg.Backend == "" || cfg.Backend == "direct" {
		return fmt.Errorf("%w: validate needs an accelerated backend (available: %v)", dynamo.ErrInvalidConfig, compute.Names())
	}

	g := cfg.Physics()
	reg := experiment.NewRegistry()
	opts := compute.Options{Theta: cfg.Theta, Workers: cfg.Workers}
	direct, err := reg.GetBackend("direct", g, opts)
	if err != nil {
		return err
	}
	fast, err := reg.GetBackend(cfg.Backend, g, opts)
	if err != nil {
		return err
	}

	ctx, cancel := interruptible()
	defer cancel()

	report, err := experiment.NewValidator(direct, fast, g, vc.Schedule, vc.Tolerance).
		WithSeed(vc.Seed).WithLogger(log).Run(ctx)
	if err != nil && report == nil {
		return err
	}

	if vc.Output != "" {
		f, ferr := os.Create(vc.Output)
		if ferr != nil {
			return ferr
		}
		if _, werr := report.WriteTo(f); werr != nil {
			f.Close()
			return werr
		}
		if cerr := f.Close(); cerr != nil {
			return cerr
		}
		log.Info().Str("path", vc.Output).Int("levels", len(report.Levels)).Msg("timings saved")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "N\tFAST\tDIRECT\tL2\tBUILD\tMOMENTS\tTRAVERSE\tCELLS\tBODIES\tPASS")
	for _, l := range report.Levels {
		fmt.Fprintf(w, "%d\t%v\t%v\t%.3e\t%v\t%v\t%v\t%d\t%d\t%v\n",
			l.N,
			l.Fast.Round(time.Microsecond),
			l.Direct.Round(time.Microsecond),
			l.L2,
			l.Timings.Build.Round(time.Microsecond),
			l.Timings.Moments.Round(time.Microsecond),
			l.Timings.Traverse.Round(time.Microsecond),
			l.Timings.CellInteractions,
			l.Timings.BodyInteractions,
			l.Pass,
		)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}

	if fastSlope, directSlope, ok := report.Scaling(); ok {
		fmt.Printf("\nscaling: %s ~ n^%.2f, direct ~ n^%.2f\n", report.Backend, fastSlope, directSlope)
	}
	if err != nil {
		return err
	}
	if !report.Passed() {
		return fmt.Errorf("validation failed: discrepancy above %g", report.Tolerance)
	}
	fmt.Println("validation passed")
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	names := args[1:]
	if len(names) == 0 {
		names = []string{"symplectic", "explicit"}
	}

	reg := experiment.NewRegistry()
	ctx, cancel := interruptible()
	defer cancel()

	fmt.Printf("comparing integrators on %s (%d bodies, %d frames)\n\n", cfg.Scene, cfg.Bodies, cfg.Frames)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tFRAMES\tENERGY DRIFT\tMOMENTUM DRIFT\tTIME")

	series := make([][]float64, 0, len(names))
	for _, name := range names {
		expCfg := cfg.Experiment()
		expCfg.Integrator = name
		exp, err := setup(expCfg, reg)
		if err != nil {
			return err
		}

		start := time.Now()
		result, err := exp.Run(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintf(w, "%s\t%d\t%.3e\t%.3e\t%v\n",
			name,
			result.Frames,
			result.Metrics["energy_drift"],
			result.Metrics["momentum_drift"],
			time.Since(start).Round(time.Millisecond),
		)
		if len(result.Energies) > 1 {
			series = append(series, relativeDrift(result.Energies))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(series) > 0 {
		fmt.Println()
		fmt.Println(asciigraph.PlotMany(series,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("relative energy drift: %v", names)),
		))
	}
	return nil
}

// relativeDrift maps an energy series to |E - E0| / |E0|.
func relativeDrift(energies []float64) []float64 {
	out := make([]float64, len(energies))
	e0 := energies[0]
	if e0 == 0 {
		return out
	}
	for i, e := range energies {
		out[i] = math.Abs(e-e0) / math.Abs(e0)
	}
	return out
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, sceneArg(args))
	if err != nil {
		return err
	}
	rc := cfg.Render
	if !cmd.Flags().Changed("codec") {
		rc.Codec = "gif"
	}

	m, err := viz.Prepare(cfg.Experiment(), experiment.NewRegistry(), zerolog.Nop())
	if err != nil {
		return err
	}
	return viz.RunWatch(m.WithRecording(rc, zerolog.Nop()))
}

// openRuns returns the run store named by the config file or --data.
func openRuns(cmd *cobra.Command) (*storage.Store, error) {
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return nil, err
	}
	return storage.New(cfg.RunsDir), nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openRuns(cmd)
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tBODIES\tFRAMES\tDT\tINTEG\tBACKEND\tDRIFT")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.4f\t%s\t%s\t%.2e\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Bodies,
			run.Frames,
			run.Dt,
			run.Integrator,
			run.Mode+"/"+run.Backend,
			run.EnergyDrift,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := openRuns(cmd)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	times, energies, err := st.LoadEnergy(runID)
	if err != nil {
		return err
	}
	if len(energies) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s (%d bodies)\n", meta.Scene, meta.Bodies)
	fmt.Printf("samples: %d, t = %.3f .. %.3f\n\n", len(energies), times[0], times[len(times)-1])

	fmt.Println(asciigraph.Plot(energies,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("total energy"),
	))
	fmt.Println()
	fmt.Println(asciigraph.Plot(relativeDrift(energies),
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("relative energy drift"),
	))
	return nil
}

func listScenes(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENE\tPRESETS")
	for _, name := range reg.ListScenes() {
		fmt.Fprintf(w, "%s\t%v\n", name, config.ListPresets(name))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbackends: %v\n", reg.ListBackends())
	fmt.Printf("integrators: %v\n", reg.ListIntegrators())
	fmt.Printf("codecs: %v\n", export.Codecs())
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	base, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}

	ctx, cancel := interruptible()
	defer cancel()

	fmt.Printf("scenario: %s (%d steps)\n", sc.Name, len(sc.Steps))
	if sc.Description != "" {
		fmt.Println(sc.Description)
	}
	results, runErr := automation.RunScenario(ctx, sc, base, experiment.NewRegistry(), log)

	st := storage.New(base.RunsDir)
	if err := st.Init(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nSTEP\tRUN ID\tSCENE\tBODIES\tFRAMES\tDRIFT")
	for _, r := range results {
		runID, err := st.Save(r.Config, r.Result)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.3e\n",
			r.Name, runID, r.Config.Scene, r.Config.Bodies, r.Result.Frames, r.Result.EnergyDrift)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, sceneArg(args))
	if err != nil {
		return err
	}

	ctx, cancel := interruptible()
	defer cancel()

	mc := &automation.MonteCarloConfig{NumTrials: trials, SeedStart: seedStart}
	fmt.Printf("running %d copies of %s with %d bodies...\n", trials, cfg.Scene, cfg.Bodies)
	results, err := automation.RunMonteCarlo(ctx, mc, cfg.Experiment(), experiment.NewRegistry())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tENERGY DRIFT\tSTABILITY\tSTABLE")
	drifts := make([]float64, len(results))
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%.3e\t%.3f\t%v\n", r.Seed, r.EnergyDrift, r.Stability, r.Stable)
		drifts[i] = r.EnergyDrift
	}
	if err := w.Flush(); err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("\nstable: %d, unstable: %d\n", stable, unstable)
	if len(drifts) > 1 {
		fmt.Println(asciigraph.Plot(drifts, asciigraph.Height(6), asciigraph.Caption("energy drift by seed")))
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, sceneArg(args))
	if err != nil {
		return err
	}

	ctx, cancel := interruptible()
	defer cancel()

	sweep := &automation.ParameterSweep{Param: sweepParam, Min: sweepMin, Max: sweepMax, NumSteps: sweepSteps}
	results, err := automation.RunSweep(ctx, sweep, cfg.Experiment(), experiment.NewRegistry(), log)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tENERGY DRIFT\tMIN ENERGY\tMAX ENERGY\n", sweepParam)
	for _, r := range results {
		fmt.Fprintf(w, "%g\t%.3e\t%.6g\t%.6g\n", r.ParamValue, r.EnergyDrift, r.MinEnergy, r.MaxEnergy)
	}
	return w.Flush()
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st, err := openRuns(cmd)
	if err != nil {
		return err
	}
	times, energies, err := st.LoadEnergy(args[0])
	if err != nil {
		return err
	}
	if len(energies) < 4 {
		return fmt.Errorf("run %s has %d energy samples, need at least 4", args[0], len(energies))
	}

	step := (times[len(times)-1] - times[0]) / float64(len(times)-1)
	fmt.Printf("samples: %d, dt = %g\n", len(energies), step)
	period, ok := analysis.DominantPeriod(energies, step)
	if !ok {
		fmt.Println("energy is flat, no oscillation found")
		return nil
	}
	fmt.Printf("dominant period: %.6g (frequency %.6g)\n\n", period, 1/period)

	ps := analysis.PowerSpectrum(energies)
	fmt.Println(asciigraph.Plot(ps[1:],
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("energy power spectrum"),
	))
	return nil
}

func runLyapunov(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, sceneArg(args))
	if err != nil {
		return err
	}
	exp := experiment.New(cfg.Experiment())
	if err := exp.Setup(experiment.NewRegistry(), log); err != nil {
		return err
	}
	simCfg := exp.SimConfig()
	simCfg.RecordEnergy = false

	fmt.Printf("tracking %s with %d bodies for %d frames...\n", cfg.Scene, cfg.Bodies, cfg.Frames)
	lambda, err := analysis.Lyapunov(exp.GetSimulator(), exp.Scene(), simCfg, perturbation)
	if err != nil {
		return err
	}
	fmt.Printf("largest lyapunov exponent: %.6g\n", lambda)
	if lambda > 0 {
		fmt.Printf("e-folding time: %.6g\n", 1/lambda)
	}
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, sceneArg(args))
	if err != nil {
		return err
	}

	names := make([]string, 0, len(grid))
	ranges := make([][]float64, 0, len(grid))
	for _, g := range grid {
		name, values, err := parseGrid(g)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	ctx, cancel := interruptible()
	defer cancel()

	best, results, err := optim.NewGridSearch(names, ranges).WithLogger(log).
		Search(ctx, cfg.Experiment(), experiment.NewRegistry(), tuneMetric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(tuneMetric))
	for _, r := range results {
		for _, name := range names {
			fmt.Fprintf(w, "%g\t", r.Params[name])
		}
		fmt.Fprintf(w, "%.3e\n", r.Value)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbest: %v (%s = %.3e)\n", best.Params, tuneMetric, best.Value)
	return nil
}

// parseGrid reads name=min:max:steps.
func parseGrid(arg string) (string, []float64, error) {
	name, rng, ok := strings.Cut(arg, "=")
	parts := strings.Split(rng, ":")
	if !ok || len(parts) != 3 {
		return "", nil, fmt.Errorf("%w: grid %q is not name=min:max:steps", dynamo.ErrInvalidConfig, arg)
	}
	lo, err1 := strconv.ParseFloat(parts[0], 64)
	hi, err2 := strconv.ParseFloat(parts[1], 64)
	n, err3 := strconv.Atoi(parts[2])
	if err := errors.Join(err1, err2, err3); err != nil {
		return "", nil, fmt.Errorf("grid %q: %w", arg, err)
	}
	if n < 1 {
		return "", nil, fmt.Errorf("%w: grid %q needs at least one step", dynamo.ErrInvalidConfig, arg)
	}
	return strings.TrimSpace(name), optim.Linspace(lo, hi, n), nil
}
