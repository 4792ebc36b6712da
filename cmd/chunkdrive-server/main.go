// Command chunkdrive-server boots a ChunkDrive process: load config, build
// a Global, load the root Directory, and run whatever services the config
// names until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/chunkdrive/chunkdrive/config"
	"github.com/chunkdrive/chunkdrive/inode"
	"github.com/chunkdrive/chunkdrive/metrics"
	"github.com/chunkdrive/chunkdrive/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("cfg", "./chunkdrive.yaml", "Location of the server's config file.")
	flag.Parse()

	cfg, err := config.FromFile(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.NewRegistry(nil)
	global, services, err := cfg.Build(ctx, reg)
	if err != nil {
		log.Fatalf("failed to build global: %v", err)
	}
	defer global.Repair.Close()

	root, err := inode.LoadRoot(global)
	if err != nil {
		log.Fatalf("failed to load root: %v", err)
	}
	log.Printf("root loaded from %s with %d entries", global.RootPath, len(root.List()))

	if len(services) == 0 {
		log.Println("no services configured; nothing to run")
		return
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Println("shutting down")
		cancel()
	}()

	log.Println("chunkdrive-server successfully started")
	service.NewRegistry(services...).Run(ctx, global)
}
