// Package viewer provides a desktop window that shows the matches between
// two images and re-runs the ratio test as the threshold slider moves.
package viewer

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"feature-matcher/internal/config"
	"feature-matcher/internal/features"
	pimage "feature-matcher/internal/image"
	"feature-matcher/internal/matching"
	"feature-matcher/internal/version"
	"feature-matcher/ui/prefs"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

// Window is the match viewer.
type Window struct {
	fyne.Window
	matcher *matching.Matcher
	prefs   *prefs.Prefs
	opts    config.Options

	mu     sync.Mutex
	img1   *pimage.Source
	img2   *pimage.Source
	result *matching.Result

	picture    *fynecanvas.Image
	ratioLabel *widget.Label
	slider     *widget.Slider
	verify     *widget.Check
	statusBar  *widget.Label
}

// New creates the viewer window. The matcher's collaborators stay owned by
// the caller.
func New(app fyne.App, m *matching.Matcher, p *prefs.Prefs, opts config.Options) *Window {
	w := &Window{
		Window:  app.NewWindow("Feature Matcher"),
		matcher: m,
		prefs:   p,
		opts:    opts,
	}
	w.opts.Ratio = p.FloatWithFallback(prefs.KeyRatio, opts.Ratio)
	w.opts.Verify.Enabled = p.Bool(prefs.KeyVerify, opts.Verify.Enabled)
	w.opts.Render.Skip = false

	w.setupUI()
	w.Resize(fyne.NewSize(1200, 700))
	w.SetOnClosed(func() {
		if err := w.prefs.Save(); err != nil {
			log.Printf("Failed to save preferences: %v", err)
		}
	})
	return w
}

func (w *Window) setupUI() {
	w.picture = fynecanvas.NewImageFromImage(nil)
	w.picture.FillMode = fynecanvas.ImageFillContain

	w.ratioLabel = widget.NewLabel("")
	w.slider = widget.NewSlider(0.05, 1.0)
	w.slider.Step = 0.01
	w.slider.SetValue(w.opts.Ratio)
	w.updateRatioLabel()
	w.slider.OnChanged = func(v float64) {
		w.mu.Lock()
		w.opts.Ratio = v
		w.mu.Unlock()
		w.updateRatioLabel()
	}
	w.slider.OnChangeEnded = func(v float64) {
		w.prefs.SetFloat(prefs.KeyRatio, v)
		go w.refilter()
	}

	w.verify = widget.NewCheck("Geometric check", func(on bool) {
		w.mu.Lock()
		w.opts.Verify.Enabled = on
		w.mu.Unlock()
		w.prefs.SetBool(prefs.KeyVerify, on)
		go w.refilter()
	})
	w.verify.SetChecked(w.opts.Verify.Enabled)

	open1 := widget.NewButton("Image 1...", func() { w.chooseImage(1) })
	open2 := widget.NewButton("Image 2...", func() { w.chooseImage(2) })
	run := widget.NewButton("Match", func() { go w.run() })

	toolbar := container.NewHBox(
		open1, open2, run,
		widget.NewSeparator(),
		w.ratioLabel,
		container.NewGridWrap(fyne.NewSize(240, 36), w.slider),
		w.verify,
	)

	w.statusBar = widget.NewLabel(version.String())

	w.SetContent(container.NewBorder(
		toolbar,                          // top
		container.NewPadded(w.statusBar), // bottom
		nil,                              // left
		nil,                              // right
		w.picture,                        // center
	))
}

func (w *Window) updateRatioLabel() {
	w.mu.Lock()
	ratio := w.opts.Ratio
	w.mu.Unlock()
	w.ratioLabel.SetText(fmt.Sprintf("Ratio %.2f", ratio))
}

// Open loads both images and runs matching in the background.
func (w *Window) Open(path1, path2 string) {
	if err := w.load(1, path1); err != nil {
		w.showError(err)
		return
	}
	if err := w.load(2, path2); err != nil {
		w.showError(err)
		return
	}
	go w.run()
}

func (w *Window) load(which int, path string) error {
	src, err := pimage.Load(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	if which == 1 {
		w.img1 = src
		w.prefs.SetString(prefs.KeyLastImage1, path)
	} else {
		w.img2 = src
		w.prefs.SetString(prefs.KeyLastImage2, path)
	}
	w.result = nil
	w.mu.Unlock()
	w.prefs.SetString(prefs.KeyLastDir, filepath.Dir(path))
	w.statusBar.SetText(fmt.Sprintf("Loaded %s (%dx%d)", src.Name(), src.Width(), src.Height()))
	return nil
}

func (w *Window) chooseImage(which int) {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			w.showError(err)
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()
		if err := w.load(which, path); err != nil {
			w.showError(err)
		}
	}, w.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}))
	if dir := w.lastDir(); dir != nil {
		fd.SetLocation(dir)
	}
	fd.Show()
}

func (w *Window) lastDir() fyne.ListableURI {
	path := w.prefs.String(prefs.KeyLastDir)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// run detects, searches and filters from scratch.
func (w *Window) run() {
	w.mu.Lock()
	img1, img2, opts := w.img1, w.img2, w.opts
	w.mu.Unlock()
	if img1 == nil || img2 == nil {
		w.statusBar.SetText("Choose two images first")
		return
	}

	w.statusBar.SetText("Detecting features...")
	res, err := w.matcher.FindAndFilterMatches(context.Background(), img1.Image, img2.Image, opts)
	if err != nil {
		w.showError(err)
		return
	}
	w.show(res)
}

// refilter reruns only the ratio test over the cached candidate pairs.
func (w *Window) refilter() {
	w.mu.Lock()
	img1, img2, prev, opts := w.img1, w.img2, w.result, w.opts
	w.mu.Unlock()
	if prev == nil {
		return
	}

	res, err := w.matcher.Refilter(context.Background(), prev, img1.Image, img2.Image, opts)
	if err != nil {
		w.showError(err)
		return
	}
	w.show(res)
}

func (w *Window) show(res *matching.Result) {
	w.mu.Lock()
	w.result = res
	w.mu.Unlock()

	w.picture.Image = res.Visualization
	w.picture.Refresh()
	w.statusBar.SetText(statusText(res.Stats))
}

func statusText(s features.Stats) string {
	text := fmt.Sprintf("Keypoints %d / %d  |  pairs %d  |  ratio test kept %d (%.0f%%)",
		s.Keypoints1, s.Keypoints2, s.Candidates, s.Retained, 100*s.RetainedFraction())
	if s.Inliers >= 0 {
		text += fmt.Sprintf("  |  geometric inliers %d", s.Inliers)
	}
	return text
}

func (w *Window) showError(err error) {
	log.Printf("viewer: %v", err)
	dialog.ShowError(err, w.Window)
}
