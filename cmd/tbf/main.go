// SPDX-License-Identifier: MIT

// Command tbf converts Typecraft binary format documents on the
// command line. A file argument of "-" reads stdin or writes stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Typecraft/tbf/internal/config"
	"github.com/Typecraft/tbf/internal/jobs"
	"github.com/Typecraft/tbf/internal/log"
	"github.com/Typecraft/tbf/internal/tbf"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: tbf <command> [flags] [file]

Commands:
  encode    read document JSON, write binary tbf
  decode    read binary tbf, write document JSON
  inspect   print layer, object, attribute and relation counts
  convert   batch convert a directory of .tbf and .json files
  version   print version and exit

Use "tbf <command> -h" for command flags.
`)
}

func main() {
	log.Configure(log.Config{Level: "warn", Service: "tbf", Version: version})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "encode":
		err = runEncode(os.Args[2:])
	case "decode":
		err = runDecode(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "convert":
		err = runConvert(os.Args[2:])
	case "version":
		fmt.Printf("tbf %s (commit: %s, built: %s)\n", version, commit, buildDate)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "tbf: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "tbf:", err)
		os.Exit(1)
	}
}

func runEncode(args []string) error {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	out := fs.String("o", "-", "output file")
	_ = fs.Parse(args)

	data, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	doc := tbf.NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("parse document JSON: %w", err)
	}
	raw, err := tbf.Marshal(doc)
	if err != nil {
		return err
	}
	return writeOutput(*out, raw)
}

func runDecode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	out := fs.String("o", "-", "output file")
	compact := fs.Bool("compact", false, "emit compact JSON")
	_ = fs.Parse(args)

	data, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	doc, err := tbf.Unmarshal(data)
	if err != nil {
		return err
	}

	var body []byte
	if *compact {
		body, err = json.Marshal(doc)
	} else {
		body, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return err
	}
	return writeOutput(*out, append(body, '\n'))
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "emit stats as JSON")
	_ = fs.Parse(args)

	data, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	doc, err := tbf.Unmarshal(data)
	if err != nil {
		return err
	}
	stats := doc.Summarize()

	if *asJSON {
		body, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	}

	fmt.Printf("encoding:  %s\n", doc.Header.Encoding)
	fmt.Printf("layers:    %d\n", stats.Layers)
	for _, l := range doc.Layers {
		fmt.Printf("  [%d] %-20s %d objects\n", l.ID, l.Name, len(l.Objects))
	}
	fmt.Printf("objects:   %d\n", stats.Objects)
	fmt.Printf("attrs:     %d\n", stats.Attrs)
	fmt.Printf("relations: %d\n", stats.Relations)
	return nil
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	in := fs.String("in", ".", "input directory")
	out := fs.String("out", "", "output directory (defaults to input directory)")
	overwrite := fs.Bool("overwrite", false, "replace existing outputs")
	concurrency := fs.Int("concurrency", 4, "max parallel conversions")
	filesPerSec := fs.Float64("rate", 0, "max files per second (0 = unlimited)")
	_ = fs.Parse(args)

	if *out == "" {
		*out = *in
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.JobsConfig{Concurrency: *concurrency, FilesPerSec: *filesPerSec}
	status, err := jobs.Convert(ctx, cfg, jobs.Options{
		InputDir:  *in,
		OutputDir: *out,
		Overwrite: *overwrite,
	})
	if err != nil {
		return err
	}

	fmt.Printf("converted %d, skipped %d, failed %d in %dms\n",
		status.Converted, status.Skipped, status.Failed, status.DurationMS)
	for _, f := range status.Files {
		if f.Status == "failed" {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", f.Input, f.Error)
		}
	}
	if status.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", status.Failed)
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
