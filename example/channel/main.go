package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/mlatflow"
)

// Feeds three in-process stations through a Publisher and prints what the
// correlator groups.
func main() {
	cfg := mlatflow.DefaultConfig()
	cfg.Listen.Addr = "127.0.0.1:0"
	cfg.Metrics.Addr = "127.0.0.1:0"

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub := mlatflow.NewPublisher()
	sink, scans, closeScans := mlatflow.NewChannelSink("print", 32)

	rt, err := mlatflow.NewRuntime(cfg, mlatflow.WithCollector(pub), mlatflow.WithGroupSink(sink))
	if err != nil {
		log.Fatalf("runtime: %v", err)
	}
	if err := rt.Start(); err != nil {
		log.Fatalf("start: %v", err)
	}

	go printScans(scans)
	go feed(ctx, pub)

	<-ctx.Done()
	closeScans()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

func feed(ctx context.Context, pub *mlatflow.Publisher) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for payload := mlatflow.Payload(1); ; payload++ {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			secs := now.Unix()
			frac := float64(now.Nanosecond()) / 1e9 * 0.5
			for i, st := range []mlatflow.StationID{"north", "south", "east"} {
				rep := mlatflow.Report{Payload: payload, Secs: secs, FracSecs: frac + float64(i)*0.0002}
				if err := pub.Publish(ctx, st, []mlatflow.Report{rep}); err != nil {
					log.Printf("publish %s: %v", st, err)
				}
			}
		}
	}
}

func printScans(scans <-chan []mlatflow.EligibleGroup) {
	for groups := range scans {
		for _, g := range groups {
			fmt.Printf("payload %x window %.6f stations %v\n", uint64(g.Payload), g.WindowStart.Float64(), g.Stations())
		}
	}
}
