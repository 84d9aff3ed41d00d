package invoice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultPDFTimeout = 30 * time.Second

// A4 in inches.
const (
	a4Width  = 8.27
	a4Height = 11.69
)

var errEmptyDocument = errors.New("empty html document")

// chromeCandidates are checked in order when no path is configured.
var chromeCandidates = []string{
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/snap/bin/chromium",
}

// detectChromePath returns the configured path if it exists, then CHROME_PATH,
// then the first installed candidate. Empty lets chromedp search $PATH.
func detectChromePath(configured string) string {
	for _, p := range []string{configured, os.Getenv("CHROME_PATH")} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range chromeCandidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Printer turns rendered invoice HTML into PDF with headless Chrome.
type Printer struct {
	chromePath string
	timeout    time.Duration
	logger     *zap.Logger
}

func NewPrinter(chromePath string, timeout time.Duration, logger *zap.Logger) *Printer {
	if timeout <= 0 {
		timeout = defaultPDFTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Printer{
		chromePath: detectChromePath(chromePath),
		timeout:    timeout,
		logger:     logger,
	}
}

// PrintPDF loads html into a blank tab and prints it as A4.
func (p *Printer) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	if html == "" {
		return nil, errEmptyDocument
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.NoSandbox)
	if p.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(p.chromePath))
	} else {
		p.logger.Debug("No Chrome path detected, relying on chromedp lookup")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	chromedpCtx, chromedpCancel := chromedp.NewContext(allocCtx)
	defer chromedpCancel()

	var pdf []byte
	err := chromedp.Run(chromedpCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4Width).
				WithPaperHeight(a4Height).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return pdf, nil
}
