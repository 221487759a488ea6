// kikiscroll hosts the scroll narrative: browsers connect over WebSocket,
// each visitor gets its own engine and the monitor dashboard follows them
// live.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KikinaStudio/kikiscroll/internal/config"
	"github.com/KikinaStudio/kikiscroll/internal/log"
	"github.com/KikinaStudio/kikiscroll/pkg/expression"
	"github.com/KikinaStudio/kikiscroll/pkg/expression/cascade"
	"github.com/KikinaStudio/kikiscroll/pkg/narrative"
	"github.com/KikinaStudio/kikiscroll/pkg/visitor"
	"github.com/KikinaStudio/kikiscroll/pkg/web"
)

var (
	version = "0.3.0"

	port     = flag.String("port", "", "HTTP server port")
	variant  = flag.String("variant", "", "Built-in narrative (kikina, scenography)")
	file     = flag.String("narrative", "", "Narrative YAML file; overrides -variant")
	webDir   = flag.String("web", "", "Static site directory")
	cascades = flag.String("cascades", "", "Haar cascade directory; enables server-side smile detection")
	level    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	variants = flag.Bool("variants", true, "Let visitors pick a built-in narrative with ?variant=")
	check    = flag.Bool("check", false, "Validate the configuration and narrative, then exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kikiscroll: %v\n", err)
		os.Exit(1)
	}
	overrides(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "kikiscroll: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)
	logger := log.With("component", "main")

	story, err := cfg.Narrative()
	if err != nil {
		logger.Error("narrative", "error", err)
		os.Exit(1)
	}
	if *check {
		fmt.Printf("%s: %d sections, %d tracks (built-in: %v)\n",
			story.Name, len(story.Sections), len(story.Tracks), narrative.Names())
		return
	}

	opts := []visitor.Option{visitor.WithLogger(log.L())}
	if *variants {
		opts = append(opts, visitor.WithVariants())
	}
	if cfg.CascadeDir != "" {
		models := expression.NewModels(cascade.Loader(cascade.DefaultConfig(cfg.CascadeDir)))
		defer models.Close()
		opts = append(opts, visitor.WithModels(models))
		logger.Info("server-side smile detection", "cascades", cfg.CascadeDir)
	}
	visitors := visitor.NewHub(story, opts...)

	server := web.NewServer(web.Config{
		Port:      cfg.Port,
		WebDir:    cfg.WebDir,
		Narrative: story,
	}, visitors, log.L())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("kikiscroll starting",
		"version", version,
		"narrative", story.Name,
		"port", cfg.Port,
		"visitor_ws", fmt.Sprintf("ws://localhost:%s/ws/visitor", cfg.Port),
		"monitor_ws", fmt.Sprintf("ws://localhost:%s/ws/monitor", cfg.Port),
	)
	if err := server.Start(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("goodbye")
}

func overrides(cfg *config.Config) {
	if *port != "" {
		cfg.Port = *port
	}
	if *variant != "" {
		cfg.Variant = *variant
	}
	if *file != "" {
		cfg.NarrativeFile = *file
	}
	if *webDir != "" {
		cfg.WebDir = *webDir
	}
	if *cascades != "" {
		cfg.CascadeDir = *cascades
	}
	if *level != "" {
		cfg.LogLevel = *level
	}
}
