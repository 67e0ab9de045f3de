package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/cubny/taximeter"
	"github.com/cubny/taximeter/internal/config"
)

func main() {
	infile := flag.String("input", "", "input csv file path")
	outfile := flag.String("output", "fares.csv", "output csv file path")
	concurrency := flag.Int("c", 0, "concurrent workers, defaults to TAXIMETER_CONCURRENCY")
	presetID := flag.String("preset", "", "fare preset id, defaults to the first configured preset")
	configFile := flag.String("config", "", "config file with the fare presets")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		log.Fatalf("config: %s\n", err)
	}

	preset := cfg.Presets.Default()
	if *presetID != "" {
		if preset, err = cfg.Presets.Find(*presetID); err != nil {
			log.Fatalf("preset: %s\n", err)
		}
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}

	in, err := os.Open(*infile)
	if err != nil {
		log.Fatalf("open input file: %s\n", err)
	}

	out, err := os.Create(*outfile)
	if err != nil {
		log.Fatalf("open output in: %s\n", err)
	}

	defer func() {
		if err := in.Close(); err != nil {
			log.Fatalf("close input file: %s\n", err)
		}
		if err := out.Close(); err != nil {
			log.Fatalf("close output file: %s\n", err)
		}
	}()

	estimator, err := taximeter.NewEstimator(in, out, taximeter.Config{
		Preset:      preset,
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		log.Fatalf("NewEstimator: %s\n", err)
	}

	ctx, stop := context.WithCancel(context.Background())

	exit := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint
		stop()
	}()

	go func() {
		if err := estimator.Run(ctx); err != nil {
			log.Fatalf("estimator: %s\n", err)
		}
		exit <- struct{}{}
	}()

	<-exit
	fmt.Printf("fares under preset %s are written to %s\n", preset.ID, *outfile)
	fmt.Println("exit.")
}
