package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chefbooks/foodcost_backend/alerting"
	"github.com/chefbooks/foodcost_backend/config"
)

func main() {
	logger := config.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	logger.Info("alert worker starting")
	if err := alerting.Run(ctx, logger, &alerting.LogNotifier{Logger: logger}); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "alert worker stopped: %v\n", err)
		os.Exit(1)
	}
}
