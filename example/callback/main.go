package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ghalamif/mlatflow/pkg/mlatflow"
)

func main() {
	flow, err := mlatflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(g mlatflow.EligibleGroup) error {
		return mlatflow.FormatGroup(os.Stdout, g)
	}

	if err := flow.Run(ctx, mlatflow.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
