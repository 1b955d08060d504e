package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/boshilin123/chatbot-circuit-diagram/config"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Parse the catalog and build the search index",
	Long: `Parse every catalog CSV under the given directory, build the keyword
index and store a snapshot in .chatbot/catalog.db. Later runs reuse the
snapshot until a catalog file or the catalog settings change.

Examples:
  chatbot index .                 # Index current directory
  chatbot index /path/to/catalog  # Index specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	fmt.Printf("Scanning %s...\n", path)

	a, err := buildApp(cmd.Context(), GetConfig(), path, GetLogger(), newIndexProgress())
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	defer a.Close()

	r := a.indexed
	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Catalog files:    %d\n", r.Files)
	fmt.Printf("  Documents:        %d\n", r.Documents)
	fmt.Printf("  Brand tokens:     %d\n", r.Index.BrandTokens)
	fmt.Printf("  Model tokens:     %d\n", r.Index.ModelTokens)
	fmt.Printf("  ECU tokens:       %d\n", r.Index.ECUTokens)
	fmt.Printf("  Component tokens: %d\n", r.Index.ComponentTokens)
	fmt.Printf("  Duration:         %s\n", formatDuration(r.Duration))
	if r.FromSnapshot {
		fmt.Println("  Source:           snapshot (catalog unchanged)")
	} else {
		fmt.Printf("  Source:           parsed (%s)\n", r.Reason)
	}

	fmt.Printf("\nSnapshot stored at: %s\n", config.CatalogDBPath(path))
	return nil
}

// newIndexProgress returns a callback that lazily creates a progress bar
// once the total is known and keeps an ETA in its description.
func newIndexProgress() func(done, total int) {
	var (
		bar         *progressbar.ProgressBar
		barMu       sync.Mutex
		startTime   time.Time
		initialized bool
	)
	return func(processed, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if !initialized {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
			initialized = true
		}

		_ = bar.Set(processed)

		if processed > 0 {
			elapsed := time.Since(startTime)
			rate := float64(processed) / elapsed.Seconds()
			remaining := total - processed
			if rate > 0 {
				eta := time.Duration(float64(remaining)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Indexing[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
