package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/alexandria/internal/eventstore"
	"github.com/dgallion1/alexandria/internal/parser"
	"github.com/dgallion1/alexandria/internal/publish"
	"github.com/dgallion1/alexandria/internal/pubtree"
)

var (
	// Global flags
	verbose   bool
	pubkey    string
	title     string
	maxTokens int
	noPdftext bool
)

var rootCmd = &cobra.Command{
	Use:   "alexandria",
	Short: "Split documents into publications and inspect their structure",
	Long: `alexandria parses a document (AsciiDoc, Markdown, HTML, text, PDF or DOCX),
splits it into index and section events, and shows how a reader walking the
sections in order would meet the headings.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&pubkey, "pubkey", "local", "Author pubkey for generated events")
	rootCmd.PersistentFlags().StringVar(&title, "title", "", "Override the document title")
	rootCmd.PersistentFlags().IntVar(&maxTokens, "max-section-tokens", publish.DefaultMaxSectionTokens, "Split sections above this size")
	rootCmd.PersistentFlags().BoolVar(&noPdftext, "no-pdftotext", false, "Do not fall back to pdftotext for PDFs")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// publication is a document split into events and loaded back as a tree
// from an in-memory store.
type publication struct {
	pub  *publish.Publication
	tree *pubtree.Tree
}

func loadPublication(ctx context.Context, path string, log *slog.Logger) (*publication, error) {
	p, err := parser.ForFile(path, parser.Options{PDFFallbackPdftotext: !noPdftext})
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	doc, err := p.Parse(f, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if title != "" {
		doc.Title = title
	}
	log.Debug("parsed document", "path", path, "title", doc.Title, "top_level", len(doc.Children))

	pub, err := publish.Split(doc, publish.Options{
		Pubkey:           pubkey,
		CreatedAt:        time.Now(),
		MaxSectionTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", path, err)
	}

	store := eventstore.NewMemoryStore()
	for _, ev := range pub.Events {
		if err := store.Put(ctx, ev); err != nil {
			return nil, err
		}
	}
	tree := pubtree.New(pub.Root, store, pubtree.WithLogger(log))
	if err := tree.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load publication: %w", err)
	}
	log.Debug("loaded publication", "root", pub.Root, "events", len(pub.Events), "leaves", len(tree.Leaves()))
	return &publication{pub: pub, tree: tree}, nil
}

// printJSON outputs data as indented JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
