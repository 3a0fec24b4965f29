package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	iso9660 "github.com/bgrewell/iso9660nav"
	"github.com/bgrewell/iso9660nav/pkg/directory"
	"github.com/bgrewell/iso9660nav/pkg/logging"
	"github.com/bgrewell/iso9660nav/pkg/option"
	"github.com/bgrewell/iso9660nav/pkg/source"
	"github.com/bgrewell/usage"
	"github.com/theckman/yacspin"
	"golang.org/x/term"
)

// openBackend picks a FileBackend or HTTPBackend depending on whether path
// looks like a URL, starting a spinner around the HTTP mount's initial
// descriptor/path-table fetch when stdout is a terminal.
func openBackend(ctx context.Context, path string) (iso9660.Backend, func(), error) {
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		backend, err := source.NewFileBackend(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open %q: %w", path, err)
		}
		return backend, func() {}, nil
	}

	var spinner *yacspin.Spinner
	if term.IsTerminal(int(os.Stdout.Fd())) {
		cfg := yacspin.Config{
			Frequency:       100 * time.Millisecond,
			CharSet:         yacspin.CharSets[9],
			Suffix:          " ",
			SuffixAutoColon: true,
			Message:         "fetching remote volume descriptors",
			StopCharacter:   "✓",
			StopColors:      []string{"fgGreen"},
		}
		s, err := yacspin.New(cfg)
		if err == nil {
			spinner = s
			_ = spinner.Start()
		}
	}

	backend, err := source.NewHTTPBackend(ctx, http.DefaultClient, path)
	stop := func() {
		if spinner != nil {
			_ = spinner.Stop()
		}
	}
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("open %q: %w", path, err)
	}
	return backend, stop, nil
}

func printTree(rec *directory.Record, prefix string) error {
	children, err := rec.Children()
	if err != nil {
		return err
	}
	for _, c := range children {
		marker := " "
		if c.IsDir() {
			marker = "/"
		}
		fmt.Printf("%s%s%s\n", prefix, c.Name(), marker)
		if c.IsDir() {
			if err := printTree(c, prefix+"  "); err != nil {
				return err
			}
		}
	}
	return nil
}

func main() {
	u := usage.NewUsage(
		usage.WithApplicationName("isoview"),
		usage.WithApplicationDescription("isoview inspects an ECMA-119/ISO 9660 image (plain file, raw 2352-byte sectors, or an http(s) URL), reporting Joliet/Rock Ridge/boot presence and optionally a recursive listing."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print a recursive directory listing", "optional", nil)
	noJoliet := u.AddBooleanOption("", "no-joliet", false, "Resolve paths against the plain ISO9660 hierarchy even if Joliet is present", "optional", nil)
	noRockRidge := u.AddBooleanOption("", "no-rockridge", false, "Disable Rock Ridge name/permission/timestamp decoding", "optional", nil)
	path := u.AddArgument(1, "iso-path", "Path to a local image file or an http(s):// URL", "")

	if !u.Parse() {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if path == nil || *path == "" {
		u.PrintError(fmt.Errorf("iso-path must be provided"))
		os.Exit(1)
	}

	ctx := context.Background()
	backend, stop, err := openBackend(ctx, *path)
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}

	logger := logging.NewSimpleLogger(os.Stderr, logging.LEVEL_INFO, term.IsTerminal(int(os.Stderr.Fd())))

	opts := []option.OpenOption{option.WithContext(ctx), option.WithLogger(logger)}
	if *noJoliet {
		opts = append(opts, option.WithoutJoliet())
	}
	if *noRockRidge {
		opts = append(opts, option.WithoutRockRidge())
	}

	img, err := iso9660.Open(backend, opts...)
	stop()
	if err != nil {
		u.PrintError(fmt.Errorf("mount %q: %w", *path, err))
		os.Exit(1)
	}
	defer img.Close()

	fmt.Println("=== ISO Information ===")
	fmt.Printf("Volume Label:   %s\n", img.VolumeLabel())
	fmt.Printf("Joliet:         %t\n", img.HasJoliet())
	fmt.Printf("Rock Ridge:     %t\n", img.HasRockRidge())
	fmt.Printf("Boot Record:    %t\n", img.HasBootRecord())
	fmt.Printf("Partitions:     %d\n", img.PartitionCount())
	fmt.Println("=========================")

	if *verbose {
		fmt.Println("\n=== Contents ===")
		if err := printTree(img.Root(), ""); err != nil {
			u.PrintError(fmt.Errorf("list contents: %w", err))
			os.Exit(1)
		}
	}
}
