// Command matchtest matches SIFT features between two images and prints the
// ratio-test results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"feature-matcher/internal/config"
	"feature-matcher/internal/cv"
	pimage "feature-matcher/internal/image"
	"feature-matcher/internal/matching"
	"feature-matcher/internal/report"
	"feature-matcher/internal/version"
)

func main() {
	first := flag.String("a", "", "Path to first image")
	second := flag.String("b", "", "Path to second image")
	configPath := flag.String("config", "", "YAML options file")
	ratio := flag.Float64("ratio", 0, "Lowe's ratio threshold (overrides config; default 0.75)")
	doVerify := flag.Bool("verify", false, "Keep only matches consistent with one affine transform")
	backend := flag.String("backend", cv.BackendGoCV, "Search/render backend: gocv or go")
	workers := flag.Int("workers", 0, "Ratio-test workers (overrides config)")
	out := flag.String("out", "", "Write the match visualization to this PNG")
	hist := flag.String("hist", "", "Write a ratio histogram to this PNG")
	quiet := flag.Bool("q", false, "Suppress pipeline diagnostics")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *first == "" || *second == "" {
		fmt.Println("Usage: matchtest -a <img1> -b <img2> [-ratio 0.75] [-verify] [-backend gocv|go] [-out vis.png] [-hist ratios.png]")
		os.Exit(1)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	opts := config.Default()
	if *configPath != "" {
		var err error
		if opts, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ratio":
			opts.Ratio = *ratio
		case "verify":
			opts.Verify.Enabled = *doVerify
		case "workers":
			opts.Workers = *workers
		}
	})
	opts.Render.Skip = *out == ""

	img1, err := pimage.Load(*first)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load first image: %v\n", err)
		os.Exit(1)
	}
	img2, err := pimage.Load(*second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load second image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %s (%dx%d) and %s (%dx%d)\n",
		img1.Name(), img1.Width(), img1.Height(), img2.Name(), img2.Width(), img2.Height())

	var logger *log.Logger
	if !*quiet {
		logger = log.New(os.Stdout, "", 0)
	}
	m, err := cv.NewMatcher(*backend, opts, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	res, err := m.FindAndFilterMatches(context.Background(), img1.Image, img2.Image, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Matching failed: %v\n", err)
		os.Exit(1)
	}

	printResult(res, opts)

	if *out != "" && res.Visualization != nil {
		if err := pimage.SavePNG(*out, res.Visualization); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save visualization: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *out)
	}
	if *hist != "" {
		if err := report.RatioHistogram(*hist, res.Pairs, opts.Ratio, 25); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write histogram: %v\n", err)
		} else {
			fmt.Printf("Wrote %s\n", *hist)
		}
	}
}

func printResult(res *matching.Result, opts config.Options) {
	fmt.Printf("\n=== Result (ratio %.2f) ===\n", opts.Ratio)
	fmt.Printf("Keypoints: %d / %d\n", res.Stats.Keypoints1, res.Stats.Keypoints2)
	fmt.Printf("Candidate pairs: %d\n", res.Stats.Candidates)
	fmt.Printf("Ratio test kept: %d (%.1f%%)\n", res.Stats.Retained, 100*res.Stats.RetainedFraction())
	if res.Verification != nil {
		t := res.Verification.Transform
		fmt.Printf("Geometric inliers: %d\n", res.Stats.Inliers)
		fmt.Printf("Rotation: %.4f°\n", t.RotationDegrees())
		fmt.Printf("Scale: %.6f\n", t.ScaleFactor())
		fmt.Printf("Translation: (%.1f, %.1f)\n", t.TX, t.TY)
		fmt.Printf("Mean error: %.2f px\n", res.Verification.MeanError)
		if inv, ok := t.Inverse(); ok {
			fmt.Printf("Image 2 -> image 1: [%.4f %.4f %.1f; %.4f %.4f %.1f]\n",
				inv.A, inv.B, inv.TX, inv.C, inv.D, inv.TY)
		}
	}
	fmt.Println(report.RatioSummary(res.Pairs, opts.Ratio))

	fmt.Printf("\nTimings:\n")
	for _, st := range []struct {
		name string
		d    time.Duration
	}{
		{"detect", res.Timings.Detect},
		{"search", res.Timings.Search},
		{"filter", res.Timings.Filter},
		{"verify", res.Timings.Verify},
		{"render", res.Timings.Render},
		{"total", res.Timings.Total()},
	} {
		fmt.Printf("  %-7s %v\n", st.name, st.d.Round(time.Microsecond))
	}
}
