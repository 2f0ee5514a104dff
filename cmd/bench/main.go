package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/tuannm99/novabuf/internal"
	"github.com/tuannm99/novabuf/internal/bufferpool"
	"github.com/tuannm99/novabuf/internal/storage"
	"github.com/tuannm99/novabuf/internal/workload"
)

func main() {
	flags := pflag.NewFlagSet("novabuf-bench", pflag.ExitOnError)
	internal.RegisterStorageFlags(flags)
	internal.RegisterBenchFlags(flags)
	var (
		configPath = flags.String("config", "", "YAML config file")
		only       = flags.StringSlice("only", nil, "strategies to run (default: all)")
		keep       = flags.Bool("keep", false, "keep the page files after the run")
		inMemory   = flags.Bool("mem", false, "run against an in-memory filesystem")
	)
	_ = flags.Parse(os.Args[1:])

	cfg, err := internal.LoadConfig(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := internal.SetupLogging(os.Stderr, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	strategies := bufferpool.Strategies()
	if len(*only) > 0 {
		strategies = strategies[:0]
		for _, name := range *only {
			s, err := bufferpool.ParseStrategy(name)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
			strategies = append(strategies, s)
		}
	}

	var afs afero.Fs
	if *inMemory {
		afs = afero.NewMemMapFs()
	} else {
		afs = afero.NewOsFs()
		if err := afs.MkdirAll(cfg.Storage.Dir, storage.FileMode0755); err != nil {
			fmt.Fprintf(os.Stderr, "data dir: %v\n", err)
			os.Exit(1)
		}
		afs = afero.NewBasePathFs(afs, cfg.Storage.Dir)
	}
	sm := storage.NewStorageManager(afs)

	wcfg := workload.Config{
		Workers:    cfg.Bench.Workers,
		Ops:        cfg.Bench.Ops,
		Pages:      cfg.Bench.Pages,
		Seed:       cfg.Bench.Seed,
		WriteRatio: cfg.Bench.WriteRatio,
	}
	trace, err := workload.Trace(wcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trace: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("%s accesses over %s pages (%s), %d workers, %d frames (%s), seed %d\n",
		humanize.Comma(int64(wcfg.Ops)),
		humanize.Comma(int64(wcfg.Pages)),
		humanize.IBytes(uint64(wcfg.Pages)*storage.PageSize),
		wcfg.Workers,
		cfg.BufferPool.NumFrames,
		humanize.IBytes(uint64(cfg.BufferPool.NumFrames)*storage.PageSize),
		wcfg.Seed,
	)

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "strategy\thit ratio\thits\tmisses\tevictions\tread io\twrite io\tretries\telapsed\t")

	failed := false
	for _, s := range strategies {
		file := fmt.Sprintf("%s.%s", strings.TrimSuffix(cfg.Storage.PageFile, ".pages"), s)
		res, err := workload.RunStrategy(ctx, sm, file, cfg.BufferPool.NumFrames, s, trace, wcfg.Workers, *keep)
		if err != nil {
			slog.Error("bench.run", "strategy", s.String(), "err", err)
			failed = true
			continue
		}
		st := res.Stats
		fmt.Fprintf(tw, "%s\t%.2f%%\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s,
			st.HitRatio()*100,
			humanize.Comma(int64(st.Hits)),
			humanize.Comma(int64(st.Misses)),
			humanize.Comma(int64(st.Evictions)),
			humanize.Comma(int64(st.ReadIO)),
			humanize.Comma(int64(st.WriteIO)),
			humanize.Comma(int64(res.Retries)),
			res.Elapsed.Round(time.Microsecond),
		)
	}
	_ = tw.Flush()

	if failed {
		os.Exit(1)
	}
	fmt.Println("all page contents verified")
}
