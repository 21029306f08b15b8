// Package main provides the entry point for the Feature Matcher viewer.
package main

import (
	"log"
	"os"

	"feature-matcher/internal/config"
	"feature-matcher/internal/cv"
	"feature-matcher/internal/version"
	"feature-matcher/ui/prefs"
	"feature-matcher/ui/viewer"

	"fyne.io/fyne/v2/app"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s", version.String())

	opts := config.Default()
	if len(os.Args) > 3 {
		var err error
		if opts, err = config.Load(os.Args[3]); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	backend, err := cv.NewMatcher(cv.BackendGoCV, opts, log.Default())
	if err != nil {
		log.Fatalf("Failed to create matcher: %v", err)
	}
	defer backend.Close()

	fyneApp := app.NewWithID("feature-matcher")
	fyneApp.Settings().SetTheme(viewer.Theme())
	win := viewer.New(fyneApp, backend.Matcher, prefs.Load(), opts)

	// feature-matcher [img1 img2 [config.yaml]]
	if len(os.Args) > 2 {
		win.Open(os.Args[1], os.Args[2])
	}

	win.ShowAndRun()
}
