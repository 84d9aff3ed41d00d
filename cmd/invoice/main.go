// Command invoice reconciles a raw order file and writes its invoice as HTML
// or PDF.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/bookadmin/pkg/auth"
	"github.com/example/bookadmin/pkg/catalog"
	"github.com/example/bookadmin/pkg/config"
	"github.com/example/bookadmin/pkg/discovery"
	"github.com/example/bookadmin/pkg/invoice"
	"github.com/example/bookadmin/pkg/logging"
	"github.com/example/bookadmin/pkg/models"
	"github.com/example/bookadmin/pkg/money"
	"github.com/example/bookadmin/pkg/orderview"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	orderPath := flag.String("order", "", "raw order JSON file (required)")
	apiURL := flag.String("api", os.Getenv("BOOKADMIN_UPSTREAM_BASE_URL"), "catalog API base URL; enables enrichment with -token")
	token := flag.String("token", os.Getenv("BOOKADMIN_TOKEN"), "bearer token for catalog lookups")
	out := flag.String("out", "", "output file, .html or .pdf; empty prints only the summary")
	gst := flag.Float64("gst", orderview.DefaultGSTRate, "GST rate included in prices")
	number := flag.String("number", "DRAFT", "invoice number to print")
	seller := flag.String("seller", "Bookstore", "seller name")
	symbol := flag.String("currency", "₹", "currency symbol")
	chromePath := flag.String("chrome", "", "Chrome executable for PDF output")
	flag.Parse()

	logger, err := logging.New(config.LogConfig{Level: "info", Encoding: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	if *orderPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(logger, options{
		orderPath:  *orderPath,
		apiURL:     *apiURL,
		token:      *token,
		out:        *out,
		gstRate:    *gst,
		number:     *number,
		seller:     *seller,
		symbol:     *symbol,
		chromePath: *chromePath,
	}); err != nil {
		logger.Fatal("Invoice generation failed", zap.Error(err))
	}
}

type options struct {
	orderPath  string
	apiURL     string
	token      string
	out        string
	gstRate    float64
	number     string
	seller     string
	symbol     string
	chromePath string
}

func run(logger *zap.Logger, opts options) error {
	data, err := os.ReadFile(opts.orderPath)
	if err != nil {
		return err
	}
	var raw models.RawOrder
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse %s: %w", opts.orderPath, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var enricher orderview.Enricher
	if opts.apiURL != "" && opts.token != "" {
		enricher = catalog.NewClient(discovery.StaticEndpoint(opts.apiURL), auth.StaticToken(opts.token), logger, catalog.Options{})
	} else {
		logger.Info("No API or token given, skipping catalog enrichment")
	}

	view, err := orderview.NewReconciler(enricher, opts.gstRate, logger).Reconcile(ctx, raw)
	if err != nil {
		return err
	}
	inv := orderview.ComputeInvoice(view.Items, view.AuthoritativeTotalMinor, opts.gstRate)

	logger.Info("Invoice totals",
		zap.String("order_id", view.ID),
		zap.String("customer", view.CustomerName),
		zap.Int("lines", len(view.Items)),
		zap.String("subtotal_before_tax", money.FormatWithSymbol(opts.symbol, inv.SubtotalBeforeTaxMinor)),
		zap.String("gst", money.FormatWithSymbol(opts.symbol, inv.GSTMinor)),
		zap.String("shipping", money.FormatWithSymbol(opts.symbol, inv.ShippingMinor)),
		zap.String("total", money.FormatWithSymbol(opts.symbol, inv.TotalMinor)),
		zap.Bool("authoritative_total", inv.Authoritative))

	if opts.out == "" {
		return nil
	}

	renderer, err := invoice.NewRenderer(opts.symbol)
	if err != nil {
		return err
	}
	html, err := renderer.Render(invoice.Document{
		Number:   opts.number,
		IssuedAt: time.Now(),
		Seller:   invoice.Seller{Name: opts.seller},
		Order:    view,
		Invoice:  inv,
	})
	if err != nil {
		return err
	}

	output := []byte(html)
	switch strings.ToLower(filepath.Ext(opts.out)) {
	case ".pdf":
		output, err = invoice.NewPrinter(opts.chromePath, 0, logger).PrintPDF(ctx, html)
		if err != nil {
			return err
		}
	case ".html", ".htm":
	default:
		return fmt.Errorf("unsupported output %q, use .html or .pdf", opts.out)
	}

	if err := os.WriteFile(opts.out, output, 0o644); err != nil {
		return err
	}
	logger.Info("Invoice written", zap.String("path", opts.out), zap.Int("bytes", len(output)))
	return nil
}
