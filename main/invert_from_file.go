package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/kpaschen/crosswell/lib"
	"github.com/kpaschen/crosswell/lib/loader"
	"github.com/kpaschen/crosswell/lib/settings"
	"github.com/prometheus/common/version"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
)

func main() {
	flags := settings.RegisterFlags(flag.CommandLine)
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile here")
	printVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [rank ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *printVersion {
		fmt.Println(version.Print("tsvd_invert"))
		return
	}

	// Ranks are checked before any numerical work.
	config, err := flags.Settings(flag.Args())
	if err != nil {
		log.Fatalf("bad arguments: %v", err)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err = run(ctx, config); err != nil {
		log.Printf("inversion failed: %v\n", err)
		pprof.StopCPUProfile()
		os.Exit(1)
	}
}

func run(ctx context.Context, config settings.InversionSettings) error {
	g, d, err := loader.Load(config)
	if err != nil {
		return err
	}
	pipeline, err := lib.NewPipeline(config, g, d)
	if err != nil {
		return err
	}
	figure, results, err := pipeline.Process(ctx, config.Ranks)
	if err != nil {
		return err
	}
	fmt.Println(lib.Summary(figure, results))
	return nil
}
