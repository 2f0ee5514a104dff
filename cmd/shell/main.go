package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/tuannm99/novabuf/internal"
	"github.com/tuannm99/novabuf/internal/shell"
	"github.com/tuannm99/novabuf/internal/storage"
)

const prompt = "novabuf> "

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".novabuf_history"
	}
	return filepath.Join(home, ".novabuf_history")
}

func isMetaCommand(line string) bool {
	return strings.HasPrefix(line, "\\") || line == "quit" || line == "exit"
}

func main() {
	flags := pflag.NewFlagSet("novabuf-shell", pflag.ExitOnError)
	internal.RegisterStorageFlags(flags)
	var (
		configPath = flags.String("config", "", "YAML config file")
		histPath   = flags.String("history", defaultHistoryPath(), "history file path")
		histMax    = flags.Int("history-max", 2000, "max history lines loaded into memory")
		oneShot    = flags.StringP("command", "c", "", "run ';'-separated commands and exit")
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

	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(cfg.Storage.Dir, storage.FileMode0755); err != nil {
		fmt.Fprintf(os.Stderr, "data dir: %v\n", err)
		os.Exit(1)
	}
	sm := storage.NewStorageManager(afero.NewBasePathFs(osFs, cfg.Storage.Dir))
	sess := shell.NewSession(sm, os.Stdout, shell.Options{
		Frames:   cfg.BufferPool.NumFrames,
		Strategy: cfg.Strategy(),
	})
	defer func() {
		if err := sess.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", err)
		}
	}()

	// one-shot mode
	if strings.TrimSpace(*oneShot) != "" {
		if err := sess.ExecScript(*oneShot); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			_ = sess.Close()
			os.Exit(1)
		}
		return
	}

	h := shell.NewHistory(osFs, *histPath)
	_ = h.Load(*histMax)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		return
	}
	defer func() { _ = rl.Close() }()

	for _, line := range h.Lines() {
		_ = rl.SaveHistory(line)
	}

	fmt.Printf("novabuf shell, data dir %s\n", cfg.Storage.Dir)
	fmt.Println("type \\help for help")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			fmt.Println("^C")
			continue
		}
		if err != nil {
			// EOF
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if isMetaCommand(line) {
			switch line {
			case "\\q", "quit", "exit":
				return
			case "\\help":
				fmt.Println(`meta commands:
  \q | quit | exit       quit
  \history               print history
  \help                  show help`)
				fmt.Println(shell.Help)
			case "\\history":
				h.Print(os.Stdout, 50)
			default:
				fmt.Printf("unknown command: %s\n", line)
			}
			continue
		}

		_ = h.Append(line)
		_ = rl.SaveHistory(line)

		if err := sess.ExecScript(line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}
