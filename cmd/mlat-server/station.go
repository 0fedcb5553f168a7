package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ghalamif/mlatflow"
	"github.com/ghalamif/mlatflow/internal/adapters/session"
	"github.com/ghalamif/mlatflow/internal/domain"
)

func stationCommand(args []string) error {
	fs := flag.NewFlagSet("station", flag.ExitOnError)
	addr := fs.String("addr", "localhost:31337", "Server station listener")
	name := fs.String("name", "", "Station name")
	lat := fs.Float64("lat", 0, "Latitude in degrees")
	lon := fs.Float64("lon", 0, "Longitude in degrees")
	alt := fs.Float64("alt", 0, "Altitude in metres")
	batchSize := fs.Int("batch", 16, "Reports per batch frame")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *batchSize < 1 {
		*batchSize = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := session.Dial(ctx, *addr, mlatflow.StationInfo{
		Name: *name, Latitude: *lat, Longitude: *lon, Altitude: *alt,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	go printGroups(client)

	return shipReports(os.Stdin, *batchSize, client.SendBatch)
}

// shipReports reads "payload secs frac" lines and calls send every batchSize
// reports and once more at EOF. Blank lines and # comments are skipped.
func shipReports(r io.Reader, batchSize int, send func([]domain.Report) error) error {
	var pending []domain.Report
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		err := send(pending)
		pending = nil
		return err
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rep, err := parseReportLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		pending = append(pending, rep)
		if len(pending) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}

func parseReportLine(line string) (domain.Report, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return domain.Report{}, errors.New("want: payload secs frac")
	}
	payload, err := strconv.ParseUint(fields[0], 0, 64)
	if err != nil {
		return domain.Report{}, fmt.Errorf("payload: %w", err)
	}
	secs, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return domain.Report{}, fmt.Errorf("secs: %w", err)
	}
	frac, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return domain.Report{}, fmt.Errorf("frac: %w", err)
	}
	rep := domain.Report{Payload: domain.Payload(payload), Secs: secs, FracSecs: frac}
	return rep, rep.Validate()
}

func printGroups(client *session.Client) {
	for {
		msg, err := client.ReadGroup()
		if err != nil {
			return
		}
		fmt.Printf("Report with data %s\n", msg.Payload)
		for _, m := range msg.Members {
			fmt.Printf("Stamp from %s: %.9f\n", m.Station, float64(m.Secs)+m.FracSecs)
		}
	}
}
