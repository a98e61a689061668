package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atinyakov/soundpad/internal/client"
)

var (
	version   string
	buildDate string
)

// main parses command-line flags and runs either the command given as
// arguments or the interactive shell.
func main() {
	var (
		baseURL     string
		caFile      string
		sessionPath string
		timeout     time.Duration
		showVer     bool
	)

	flag.StringVar(&baseURL, "url", "https://localhost:7331", "server base URL")
	flag.StringVar(&caFile, "ca", "certs/ca.crt", "path to CA cert; empty uses the system roots")
	flag.StringVar(&sessionPath, "session", client.DefaultSessionPath(), "file that keeps the session between runs")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "per-command timeout")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("Soundpad Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	if _, err := os.Stat(caFile); caFile != "" && errors.Is(err, os.ErrNotExist) {
		caFile = ""
	}
	httpClient, err := client.NewHTTPClient(caFile)
	if err != nil {
		log.Fatal(err)
	}
	sessions, err := client.OpenSessionFile(sessionPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sh := &client.Shell{
		Client:   client.New(baseURL, httpClient, sessions),
		Prompter: client.NewPrompter(os.Stdin, os.Stdout),
		Out:      os.Stdout,
		Timeout:  timeout,
	}

	if args := flag.Args(); len(args) > 0 {
		if err := sh.Exec(ctx, args); err != nil && !errors.Is(err, client.ErrExit) {
			stop()
			log.Fatal(err)
		}
		return
	}
	if err := sh.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		log.Fatal(err)
	}
}
