// main.go - HTTP server for the analytics API
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trafficlens/internal"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

func main() {
	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	log.Println("Starting application...")
	if err := app.StartAsync(); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	waitForShutdownSignal(app)
}

// waitForShutdownSignal blocks until a termination signal arrives.
// SIGHUP reopens the GeoIP database without restarting.
func waitForShutdownSignal(app *internal.Application) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			log.Println("Received SIGHUP, reloading GeoIP database")
			app.Geo.Reload()
			continue
		}
		log.Printf("Received signal: %v", sig)
		if err := shutdown(app); err != nil {
			os.Exit(1)
		}
		return
	}
}

func shutdown(app *internal.Application) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	log.Println("Initiating graceful shutdown...")
	if err := app.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
		return err
	}
	log.Println("Server shutdown complete")
	return nil
}
