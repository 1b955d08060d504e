package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/adapter/cache"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the catalog once without a dialogue",
	Long: `Search the catalog and print the ranked documents. When the external
model is enabled the request is interpreted by it first.

Examples:
  chatbot query -q "Sany SY215 fuse box"
  chatbot query -q "EDC17 wiring" --top-k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	_ = queryCmd.MarkFlagRequired("query")
}

type queryResult struct {
	ID            int     `json:"id"`
	FileName      string  `json:"fileName"`
	HierarchyPath string  `json:"hierarchyPath"`
	Score         float64 `json:"score"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	a, err := buildApp(cmd.Context(), cfg, GetRootDir(), GetLogger(), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	topK := cfg.Search.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	info := a.extractor.Extract(queryText)
	if a.understander != nil {
		understood, err := cache.NewCachedUnderstander(a.understander, a.cache).Understand(cmd.Context(), queryText)
		if err != nil {
			GetLogger().Warn("cli", "query understanding failed, using local extraction", map[string]interface{}{"error": err.Error()})
		} else if understood.HasValidInfo() {
			info = understood
		}
	}

	var scored []domain.ScoredDocument
	if info.HasValidInfo() {
		scored, err = a.engine.Search(&info, topK)
	} else {
		scored, err = a.engine.SearchByKeyword(queryText, topK)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	results := make([]queryResult, len(scored))
	for i, s := range scored {
		results[i] = queryResult{
			ID:            s.Doc.ID,
			FileName:      s.Doc.FileName,
			HierarchyPath: s.Doc.HierarchyPath,
			Score:         s.Score,
		}
	}

	if queryJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		fmt.Printf("[%d] ID %d  %s (score: %.1f)\n", i+1, r.ID, r.FileName, r.Score)
		fmt.Printf("    %s\n", r.HierarchyPath)
	}
	return nil
}
