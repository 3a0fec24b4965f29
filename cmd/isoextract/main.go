package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
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

func newSpinner(message string) *yacspin.Spinner {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil
	}
	s, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " ",
		SuffixAutoColon: true,
		Message:         message,
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	})
	if err != nil {
		return nil
	}
	_ = s.Start()
	return s
}

func stopSpinner(s *yacspin.Spinner) {
	if s != nil {
		_ = s.Stop()
	}
}

func openBackend(ctx context.Context, path string) (iso9660.Backend, error) {
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		return source.NewFileBackend(path)
	}
	spinner := newSpinner("fetching remote volume descriptors")
	defer stopSpinner(spinner)
	return source.NewHTTPBackend(ctx, http.DefaultClient, path)
}

// extractFile copies rec's content to destPath, creating parent directories
// as needed.
func extractFile(rec *directory.Record, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	r, err := rec.Open()
	if err != nil {
		return fmt.Errorf("open %q: %w", rec.Name(), err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", destPath, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("write %q: %w", destPath, err)
	}
	return nil
}

// extractTree recursively extracts rec (a directory) into destDir.
func extractTree(rec *directory.Record, destDir string) (int, error) {
	children, err := rec.Children()
	if err != nil {
		return 0, fmt.Errorf("list %q: %w", rec.Name(), err)
	}

	count := 0
	for _, c := range children {
		dest := filepath.Join(destDir, c.Name())
		if c.IsDir() {
			n, err := extractTree(c, dest)
			if err != nil {
				return count, err
			}
			count += n
			continue
		}
		if err := extractFile(c, dest); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func main() {
	u := usage.NewUsage(
		usage.WithApplicationName("isoextract"),
		usage.WithApplicationDescription("isoextract resolves a path inside an ECMA-119/ISO 9660 image and extracts its content (or, for a directory, its full subtree) to the local filesystem."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Enable debug logging", "optional", nil)
	noJoliet := u.AddBooleanOption("", "no-joliet", false, "Resolve the requested path against the plain ISO9660 hierarchy", "optional", nil)
	noRockRidge := u.AddBooleanOption("", "no-rockridge", false, "Disable Rock Ridge name/permission/timestamp decoding", "optional", nil)
	isoPath := u.AddArgument(1, "iso-path", "Path to a local image file or an http(s):// URL", "")
	innerPath := u.AddArgument(2, "inner-path", "Slash-separated path inside the image to extract (use \"/\" for the whole image)", "/")
	outputDir := u.AddArgument(3, "output-dir", "Output directory for extracted content", "./extracted")

	if !u.Parse() {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if isoPath == nil || *isoPath == "" {
		u.PrintError(fmt.Errorf("iso-path must be provided"))
		os.Exit(1)
	}

	ctx := context.Background()
	backend, err := openBackend(ctx, *isoPath)
	if err != nil {
		u.PrintError(fmt.Errorf("open %q: %w", *isoPath, err))
		os.Exit(1)
	}

	level := logging.LEVEL_INFO
	if *verbose {
		level = logging.LEVEL_DEBUG
	}
	logger := logging.NewSimpleLogger(os.Stderr, level, term.IsTerminal(int(os.Stderr.Fd())))

	opts := []option.OpenOption{option.WithContext(ctx), option.WithLogger(logger)}
	if *noJoliet {
		opts = append(opts, option.WithoutJoliet())
	}
	if *noRockRidge {
		opts = append(opts, option.WithoutRockRidge())
	}

	img, err := iso9660.Open(backend, opts...)
	if err != nil {
		u.PrintError(fmt.Errorf("mount %q: %w", *isoPath, err))
		os.Exit(1)
	}
	defer img.Close()

	var components []string
	if innerPath != nil && *innerPath != "" && *innerPath != "/" {
		components = strings.Split(strings.Trim(*innerPath, "/"), "/")
	}

	var rec *directory.Record
	if len(components) == 0 {
		rec = img.Root()
	} else {
		rec, err = img.Record(components...)
		if err != nil {
			u.PrintError(fmt.Errorf("resolve %q: %w", *innerPath, err))
			os.Exit(1)
		}
	}

	spinner := newSpinner("extracting")

	if rec.IsDir() {
		count, err := extractTree(rec, *outputDir)
		stopSpinner(spinner)
		if err != nil {
			u.PrintError(err)
			os.Exit(1)
		}
		fmt.Printf("Extracted %d file(s) to %q.\n", count, *outputDir)
		return
	}

	dest := filepath.Join(*outputDir, rec.Name())
	err = extractFile(rec, dest)
	stopSpinner(spinner)
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}
	fmt.Printf("Extracted %q to %q.\n", rec.Name(), dest)
}
