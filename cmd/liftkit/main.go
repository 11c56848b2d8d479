package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/embq/liftkit/internal/canbus"
	"github.com/embq/liftkit/internal/config"
	"github.com/embq/liftkit/internal/das"
	"github.com/embq/liftkit/internal/lift"
	liftlog "github.com/embq/liftkit/internal/log"
	"github.com/embq/liftkit/internal/messages"
	"github.com/embq/liftkit/internal/metrics"
	"github.com/embq/liftkit/internal/plant"
	"github.com/embq/liftkit/internal/scenario"
	"github.com/embq/liftkit/internal/servohal"
	"github.com/embq/liftkit/internal/storage"
	"github.com/embq/liftkit/internal/tui"
	"github.com/embq/liftkit/internal/web"
)

var (
	configFile  string
	preset      string
	profileName string
	kp          float64
	ki          float64
	kd          float64
	maxErrorSum float64
	startAngle  float64

	scenarioFile string
	dataDir      string
	logLevel     string
	exportOut    string

	driveHeight float64
	driveTime   float64
	scanServos  bool
)

var rootCmd = &cobra.Command{
	Use:   "liftkit",
	Short: "Closed-loop lift motor control bench",
	Long: `liftkit runs a calibrated lift joint controller against a simulated
plant, a live TUI bench, a web dashboard, a CAN bridge, or a real
bus servo.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLive(cmd, args)
	},
}

var runCmd = &cobra.Command{
	Use:   "run [scenario]",
	Short: "Run a scenario against the simulated plant and save the result",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScenario,
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List built-in scenarios",
	RunE:  listScenarios,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs",
	RunE:  listRuns,
}

var plotCmd = &cobra.Command{
	Use:   "plot [run_id]",
	Short: "Plot a saved run in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  plotRun,
}

var exportCmd = &cobra.Command{
	Use:   "export [run_id]",
	Short: "Export a saved run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  exportRun,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List configuration presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range config.ListPresets() {
			fmt.Println(name)
		}
		return nil
	},
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Interactive lift bench in the terminal",
	RunE:  runLive,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web dashboard and HTTP API",
	RunE:  runServe,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports, optionally scanning one for servos",
	RunE:  listPorts,
}

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Drive a real bus servo as the lift joint",
	RunE:  runDrive,
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Expose the simulated lift on a SocketCAN interface",
	RunE:  runBridge,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "config preset name")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory for saved runs")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd.Flags().StringVar(&scenarioFile, "file", "", "scenario file (yaml) instead of a built-in")
	runCmd.Flags().StringVar(&profileName, "profile", "physical", "gain profile (physical, simulation)")
	runCmd.Flags().Float64Var(&kp, "kp", 0, "proportional gain override")
	runCmd.Flags().Float64Var(&ki, "ki", 0, "integral gain override")
	runCmd.Flags().Float64Var(&kd, "kd", 0, "derivative gain override")
	runCmd.Flags().Float64Var(&maxErrorSum, "max-error-sum", 0, "integral clamp override")
	runCmd.Flags().Float64Var(&startAngle, "start-angle", 0, "start angle above the low stop (deg)")

	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")

	portsCmd.Flags().BoolVar(&scanServos, "scan", false, "pick a port and scan it for servos")

	driveCmd.Flags().Float64Var(&driveHeight, "height", lift.HeightHighDockMM, "target height once calibrated (mm)")
	driveCmd.Flags().Float64Var(&driveTime, "time", 10.0, "drive duration in seconds")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(plotCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(driveCmd)
	rootCmd.AddCommand(bridgeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves preset, config file, then changed flags, in
// that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q (have: %s)",
				preset, strings.Join(config.ListPresets(), ", "))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("profile") {
		cfg.Profile = profileName
	}
	if flags.Changed("kp") {
		cfg.Gains.Kp = kp
	}
	if flags.Changed("ki") {
		cfg.Gains.Ki = ki
	}
	if flags.Changed("kd") {
		cfg.Gains.Kd = kd
	}
	if flags.Changed("max-error-sum") {
		cfg.Gains.MaxErrorSum = maxErrorSum
	}
	if flags.Changed("start-angle") {
		cfg.StartAngleDeg = startAngle
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	return cfg, nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	liftlog.Init(logLevel)

	var sc *scenario.Scenario
	switch {
	case scenarioFile != "":
		sc, err = scenario.Load(scenarioFile)
		if err != nil {
			return err
		}
	case len(args) == 1:
		sc = scenario.GetPreset(args[0])
		if sc == nil {
			return fmt.Errorf("unknown scenario %q (have: %s)",
				args[0], strings.Join(scenario.ListPresets(), ", "))
		}
	default:
		sc = scenario.GetPreset("startup")
	}

	runner := scenario.NewRunner(cfg, liftlog.L())
	if cfg.MQTT.Broker != "" {
		sink, err := das.NewMQTTSink(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic)
		if err != nil {
			return err
		}
		defer sink.Close()
		runner.Sinks = append(runner.Sinks, sink)
	}

	res, err := runner.Run(cmd.Context(), sc)
	if err != nil {
		return err
	}

	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(cfg.Profile, res)
	if err != nil {
		return err
	}

	fmt.Printf("run saved: %s\n", runID)
	fmt.Printf("scenario: %s (%.1fs, %d samples)\n", sc.Name, res.Duration, len(res.Samples))
	if len(res.LoadChecks) > 0 {
		fmt.Printf("load checks: %v\n", res.LoadChecks)
	}
	fmt.Println("\nmetrics:")
	printMetrics(res.Metrics)
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func listScenarios(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDURATION\tDESCRIPTION")
	for _, name := range scenario.ListPresets() {
		sc := scenario.GetPreset(name)
		fmt.Fprintf(w, "%s\t%.1fs\t%s\n", sc.Name, sc.Duration, sc.Description)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st := storage.New(cfg.DataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tDURATION\tPROFILE")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1fs\t%s\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Profile,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runID := args[0]

	st := storage.New(cfg.DataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n\n", len(samples))

	series := []struct {
		caption string
		pick    func(s metrics.Sample) float64
	}{
		{"lift angle (rad)", func(s metrics.Sample) float64 { return s.Angle }},
		{"profile setpoint (rad)", func(s metrics.Sample) float64 { return s.Setpoint }},
		{"motor power", func(s metrics.Sample) float64 { return s.Power }},
	}

	for _, sp := range series {
		data := make([]float64, len(samples))
		for i, s := range samples {
			data[i] = sp.pick(s)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(sp.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st := storage.New(cfg.DataDir)
	if exportOut != "" {
		return st.ExportJSONFile(exportOut, args[0])
	}
	return st.ExportJSON(os.Stdout, args[0])
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return tui.Run(cfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	liftlog.Init(logLevel)
	l := liftlog.L()

	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}

	srv := web.NewServer(cfg, st, l)
	l.Info("serving", "addr", cfg.Web.Addr)
	return srv.Listen(cfg.Web.Addr)
}

func listPorts(cmd *cobra.Command, args []string) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}

	if !scanServos {
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	}

	options := make([]huh.Option[string], 0, len(ports))
	for _, p := range ports {
		if strings.Contains(p, "Bluetooth") {
			continue
		}
		options = append(options, huh.NewOption(p, p))
	}
	if len(options) == 0 {
		fmt.Println("no usable serial ports found")
		return nil
	}

	var port string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which port has the lift servo?").
				Options(options...).
				Value(&port),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	found, err := servohal.Scan(ctx, port, 1, 10)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Println("no servos found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL")
	for _, s := range found {
		name := fmt.Sprintf("unknown (%d)", s.ModelNumber)
		if s.Model != nil {
			name = s.Model.Name
		}
		fmt.Fprintf(w, "%d\t%s\n", s.ID, name)
	}
	return w.Flush()
}

func runDrive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	liftlog.Init(logLevel)
	l := liftlog.L()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hal, err := servohal.Open(ctx, servohal.DefaultConfig(cfg.Bus.Port, cfg.Bus.ServoID))
	if err != nil {
		return err
	}
	defer hal.Close()

	c := lift.New(hal, servohal.StaticSensors{}, messages.NewSlogNotifier(l), cfg.LiftProfile())
	c.SetLogger(l)
	c.StartCalibrationRoutine(true, lift.ReasonStartup)

	ticker := time.NewTicker(lift.ControlDTMS * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(time.Duration(driveTime * float64(time.Second)))

	moved := false
	for {
		select {
		case <-ctx.Done():
			c.Disable(false)
			hal.Sync(context.Background())
			return nil
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			break
		}

		if err := hal.Sync(ctx); err != nil {
			l.Warn("bus sync failed", "err", err)
		}
		c.Update()

		if !moved && c.IsCalibrated() {
			c.SetDesiredHeight(driveHeight, 2.0, 20.0, true)
			moved = true
		}
	}

	c.Disable(false)
	hal.Sync(ctx)
	fmt.Printf("final: height=%.1fmm angle=%.4frad in_position=%v\n",
		c.HeightMM(), c.AngleRad(), c.IsInPosition())
	return nil
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	liftlog.Init(logLevel)
	l := liftlog.L()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := canbus.NewBridge(ctx, cfg.CAN.Interface, l)
	if err != nil {
		return err
	}
	defer b.Close()

	p := plant.New(cfg.Plant, cfg.StartAngleRad())
	notifier := messages.FanOut{messages.NewSlogNotifier(l), b.Notifier(ctx)}
	c := lift.New(p, p, notifier, cfg.LiftProfile())
	c.SetLogger(l)
	c.StartCalibrationRoutine(true, lift.ReasonStartup)

	// The bridge transmits from its own goroutine; the mutex keeps
	// snapshots off mid-tick state.
	var mu sync.Mutex
	var seq uint8
	source := func() canbus.State {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return canbus.Snapshot(c, seq)
	}

	commands := make(chan canbus.Command, 16)
	go func() {
		if err := b.Run(ctx, source, commands, 20*time.Millisecond); err != nil && ctx.Err() == nil {
			l.Error("can bridge stopped", "err", err)
		}
	}()

	l.Info("bridging lift state", "interface", cfg.CAN.Interface)
	ticker := time.NewTicker(lift.ControlDTMS * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fr := <-commands:
			mu.Lock()
			canbus.Apply(c, fr)
			mu.Unlock()
		case <-ticker.C:
			mu.Lock()
			p.Tick()
			c.Update()
			mu.Unlock()
		}
	}
}
