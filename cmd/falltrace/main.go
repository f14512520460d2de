package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ayusman/falldetect/internal/config"
	"github.com/ayusman/falldetect/internal/trace"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file whose thresholds are drawn on the plots")
		plotDir    = flag.String("plot", "", "write PNG plots to this directory")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] trace.jsonl\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	samples, err := trace.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to read trace: %v", err)
	}

	if err := trace.Summarize(samples).Fprint(os.Stdout); err != nil {
		log.Fatalf("Failed to print summary: %v", err)
	}

	if *plotDir == "" {
		return
	}
	paths, err := trace.Plot(samples, cfg.FallThresholds(), *plotDir)
	if err != nil {
		log.Fatalf("Failed to plot trace: %v", err)
	}
	for _, p := range paths {
		fmt.Println("Wrote", p)
	}
}
