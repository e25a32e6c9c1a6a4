package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mrcode/glucose-share/internal/app"
	"github.com/mrcode/glucose-share/internal/badge"
	"github.com/mrcode/glucose-share/internal/dexcom"
	"github.com/mrcode/glucose-share/internal/models"
	"github.com/mrcode/glucose-share/internal/notifications"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	latestJSON bool

	readingsHours float64
	readingsMax   int
	readingsChart bool
	readingsJSON  bool

	watchNoNotify         bool
	watchTestNotification bool
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the latest glucose reading",
	RunE:  runLatest,
}

var readingsCmd = &cobra.Command{
	Use:   "readings",
	Short: "Print recent glucose readings with a sparkline",
	Long: `Prints the readings of the last hours, newest first, followed by a
Braille sparkline (or a taller chart with --chart).

Examples:
  glucose-share readings
  glucose-share readings --hours 6 --chart`,
	RunE: runReadings,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll Dexcom and raise desktop alerts for low and high readings",
	RunE:  runWatch,
}

func init() {
	latestCmd.Flags().BoolVar(&latestJSON, "json", false, "Print the reading as JSON")

	readingsCmd.Flags().Float64Var(&readingsHours, "hours", 2, "How many hours to look back")
	readingsCmd.Flags().IntVar(&readingsMax, "max", 0, "Maximum number of readings (default: one per 5 minutes)")
	readingsCmd.Flags().BoolVar(&readingsChart, "chart", false, "Print a multi-line chart instead of the sparkline")
	readingsCmd.Flags().BoolVar(&readingsJSON, "json", false, "Print the readings as JSON")

	watchCmd.Flags().BoolVar(&watchNoNotify, "no-notify", false, "Only log readings, never send desktop notifications")
	watchCmd.Flags().BoolVar(&watchTestNotification, "test-notification", false, "Send one test notification and exit")
}

func runLatest(cmd *cobra.Command, args []string) error {
	settings, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(settings, logger)
	if err != nil {
		return err
	}

	reading, err := client.GetLatestGlucose(cmd.Context())
	if err != nil {
		return err
	}
	if reading == nil {
		return fmt.Errorf("no glucose reading found")
	}

	if latestJSON {
		return writeJSON(cmd.OutOrStdout(), reading)
	}
	printReading(cmd.OutOrStdout(), settings, reading)
	return nil
}

func runReadings(cmd *cobra.Command, args []string) error {
	if readingsHours <= 0 || math.IsInf(readingsHours, 0) {
		return fmt.Errorf("--hours must be positive")
	}

	settings, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(settings, logger)
	if err != nil {
		return err
	}

	maxReadings := readingsMax
	if maxReadings <= 0 {
		maxReadings = max(1, int(math.Round(readingsHours*60/5)))
	}
	minutes := max(1, int(math.Ceil(readingsHours*60)))

	readings, err := client.GetGlucoseReadings(cmd.Context(), maxReadings, minutes)
	if err != nil {
		return err
	}

	if readingsJSON {
		return writeJSON(cmd.OutOrStdout(), readings)
	}
	printReadings(cmd.OutOrStdout(), settings, readings, readingsChart)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	settings, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	if watchTestNotification {
		return sendTestNotification(cmd.OutOrStdout(), notifications.NewManager(settings, nil))
	}

	client, err := newClient(settings, logger)
	if err != nil {
		return err
	}

	var notifier app.Notifier
	if !watchNoNotify {
		notifier = notifications.NewManager(settings, nil)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher := app.NewWatcher(client, notifier, time.Duration(settings.RefreshInterval)*time.Second, logger)
	watcher.OnUpdate(func(r *models.Reading) {
		printReading(cmd.OutOrStdout(), settings, r)
	})

	return watcher.Run(ctx)
}

func sendTestNotification(w io.Writer, manager *notifications.Manager) error {
	if err := manager.SendTestNotification(); err != nil {
		return fmt.Errorf("sending test notification: %w", err)
	}
	fmt.Fprintln(w, "Test notification sent")
	return nil
}

// printReading prints one line such as "120 mg/dL → IN RANGE (+5) 3 minutes ago"
func printReading(w io.Writer, settings *models.Settings, r *models.Reading) {
	diff := ""
	if r.ValueDifference != nil {
		diff = fmt.Sprintf(" (%+d)", *r.ValueDifference)
	}
	fmt.Fprintf(w, "%s %s %s %s%s %s\n",
		settings.FormatValue(r.Value), settings.Unit, r.Trend.Symbol, r.Status, diff, r.TimeAgo)
}

// printReadings prints a table of readings and a chart, oldest on the left
func printReadings(w io.Writer, settings *models.Settings, readings []models.Reading, chart bool) {
	if len(readings) == 0 {
		fmt.Fprintln(w, "No readings in this window")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "TIME\tVALUE\tTREND\tSTATUS\n")
	for _, r := range readings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.Time.Local().Format("15:04"), settings.FormatValue(r.Value), r.Trend.Symbol, r.Status)
	}
	_ = tw.Flush()

	values := lo.Reverse(lo.Map(readings, func(r models.Reading, _ int) float64 {
		if settings.Unit == models.UnitMmolL {
			return r.ValueMmolL()
		}
		return float64(r.Value)
	}))

	var graph string
	if chart {
		graph = badge.Chart(values, 10)
	} else {
		graph = badge.Sparkline(values)
	}
	if graph != "" {
		fmt.Fprintf(w, "\n%s\n", graph)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// regionsCmd lists the supported Dexcom regions
var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List supported Dexcom Share regions",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "REGION\tNAME\tSHARE SERVER\n")
		for _, region := range dexcom.Regions() {
			profile, err := region.Profile()
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", region, profile.Name, profile.BaseURL)
		}
		return tw.Flush()
	},
}

