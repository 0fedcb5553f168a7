package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ghalamif/mlatflow"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "replay":
		err = replayCommand(os.Args[2:])
	case "station":
		err = stationCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("mlat-server %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to server configuration file")
	listen := fs.String("listen", "", "Override the station listen address")
	captureDir := fs.String("capture", "", "Override the capture directory")
	scan := fs.Duration("scan", 0, "Override the scan interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var opts []mlatflow.FlowOption
	if *scan > 0 {
		opts = append(opts, mlatflow.WithScanInterval(*scan))
	}
	flow, err := mlatflow.Conf(*cfgPath, opts...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var in []mlatflow.StreamInOption
	if *listen != "" {
		in = append(in, mlatflow.StreamInListen(*listen))
	}
	if *captureDir != "" {
		in = append(in, mlatflow.StreamInCaptureDir(*captureDir))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.StreamIN(in...).Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := mlatflow.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good: window=%gs stale=%gs min_stations=%d listen=%s\n",
		*cfgPath, cfg.Correlation.Window, cfg.Correlation.Stale, cfg.Correlation.MinStations, cfg.Listen.Addr)
	return nil
}

func replayCommand(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	captureDir := fs.String("capture", "./data/capture", "Capture directory to replay")
	cfgPath := fs.String("config", "", "Optional config file for correlation parameters")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := mlatflow.DefaultConfig()
	if *cfgPath != "" {
		loaded, err := mlatflow.LoadConfig(*cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	c, err := mlatflow.OpenCapture(*captureDir)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	printer := mlatflow.NewCallbackSink("stdout", func(g mlatflow.EligibleGroup) error {
		return mlatflow.FormatGroup(out, g)
	})

	st, err := mlatflow.Replay(ctx, c, cfg.Correlation.Params, cfg.Correlation.ScanInterval, printer)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "replayed batches=%d rejected=%d reports=%d scans=%d groups=%d\n",
		st.Batches, st.Rejected, st.Reports, st.Scans, st.Groups)
	return nil
}

var statsTargets = []string{
	"mlat_batches_received_total",
	"mlat_batches_rejected_total",
	"mlat_reports_ingested_total",
	"mlat_groups_emitted_total",
	"mlat_index_payloads",
	"mlat_queue_length",
	"mlat_stations_connected",
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := scrapeMetrics(resp.Body, statsTargets)
	if err != nil {
		return err
	}

	parts := make([]string, 0, len(statsTargets))
	for _, key := range statsTargets {
		parts = append(parts, fmt.Sprintf("%s=%g", strings.TrimPrefix(key, "mlat_"), values[key]))
	}
	fmt.Printf("[%s] %s\n", time.Now().Format(time.RFC3339), strings.Join(parts, " "))
	return nil
}

// scrapeMetrics picks unlabelled samples for the given names out of the
// Prometheus text format.
func scrapeMetrics(r io.Reader, names []string) (map[string]float64, error) {
	targets := make(map[string]float64, len(names))
	for _, n := range names {
		targets[n] = 0
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	return targets, scanner.Err()
}

func printUsage() {
	fmt.Printf(`MLATFlow CLI

Usage:
  mlat-server <command> [flags]

Commands:
  run        Start the correlation server using the provided config
  validate   Load and validate a config file without starting the server
  stats      Poll the Prometheus metrics endpoint and print live counters
  replay     Correlate a capture offline and print every group found
  station    Connect as a station and ship "payload secs frac" lines from stdin

Examples:
  mlat-server run -config ./data/config.yaml
  mlat-server validate -config ./data/config.yaml
  mlat-server stats -url http://localhost:9100/metrics -interval 1s
  mlat-server replay -capture ./data/capture -config ./data/config.yaml
  mlat-server station -addr localhost:31337 -name north -lat 52.1 -lon 4.3 < reports.txt
`)
}
