package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// searchFlags holds the search options. Flags left unset take their value
// from the retrieval settings.
type searchFlags struct {
	strategy        string
	metric          string
	maxItems        int
	maxTokens       int
	overshoot       int
	alphaRecency    float64
	alphaImportance float64
	alphaRelevance  float64
	halfLife        float64
	touch           bool
	filters         []string
}

var searchOpts searchFlags

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Rank tree nodes or memories against a query",
	Long: `Ranks stored entities against a query.

Strategies:
  vector     embedding similarity
  rerank     a wider vector pass re-scored by a cross-encoder
  genagents  weighted recency, importance and relevance (memories only)

Filters take the form field=value, field!=value, field<value, field<=value,
field>value, field>=value or "field in a,b,c". Unknown fields are looked up
in metadata.`,
}

var searchNodesCmd = &cobra.Command{
	Use:   "nodes <query>",
	Short: "Search summary tree nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args[0], func(s driving.SearchService) searchFunc { return s.SearchNodes })
	},
}

var searchMemoriesCmd = &cobra.Command{
	Use:   "memories <query>",
	Short: "Search agent memories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args[0], func(s driving.SearchService) searchFunc { return s.SearchMemories })
	},
}

func init() {
	for _, c := range []*cobra.Command{searchNodesCmd, searchMemoriesCmd} {
		f := c.Flags()
		f.StringVarP(&searchOpts.strategy, "strategy", "s", "", "vector, rerank or genagents")
		f.StringVarP(&searchOpts.metric, "metric", "m", "", "cosine, ip or euclidean")
		f.IntVarP(&searchOpts.maxItems, "limit", "n", 0, "maximum results, 0 for unlimited")
		f.IntVar(&searchOpts.maxTokens, "max-tokens", 0, "token budget for returned content, 0 for unlimited")
		f.IntVar(&searchOpts.overshoot, "overshoot", 0, "rerank first-pass multiplier")
		f.Float64Var(&searchOpts.alphaRecency, "alpha-recency", 0, "recency weight")
		f.Float64Var(&searchOpts.alphaImportance, "alpha-importance", 0, "importance weight")
		f.Float64Var(&searchOpts.alphaRelevance, "alpha-relevance", 0, "relevance weight")
		f.Float64Var(&searchOpts.halfLife, "half-life", 0, "recency half-life in seconds")
		f.BoolVar(&searchOpts.touch, "touch", false, "record access on returned memories")
		f.StringArrayVarP(&searchOpts.filters, "filter", "f", nil, "filter expression, repeatable")
		searchCmd.AddCommand(c)
	}
	rootCmd.AddCommand(searchCmd)
}

type searchFunc func(ctx context.Context, req driving.SearchRequest) ([]driving.SearchHit, error)

func runSearch(cmd *cobra.Command, query string, pick func(driving.SearchService) searchFunc) error {
	svc, err := loadedServices()
	if err != nil {
		return err
	}
	if svc.Search == nil {
		return unavailable("search")
	}
	if svc.Settings == nil {
		return fmt.Errorf("settings service not configured")
	}
	settings, err := svc.Settings.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	req, err := buildSearchRequest(cmd, query, settings.Retrieval)
	if err != nil {
		return err
	}
	hits, err := pick(svc.Search)(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	return render(cmd, hits, func() { printHits(cmd, req.Strategy, hits) })
}

// buildSearchRequest overlays the flags the user set on the retrieval settings.
func buildSearchRequest(cmd *cobra.Command, query string, r domain.RetrievalSettings) (driving.SearchRequest, error) {
	changed := cmd.Flags().Changed
	pick := func(name string, flag, setting float64) float64 {
		if changed(name) {
			return flag
		}
		return setting
	}

	req := driving.SearchRequest{
		Query:     query,
		Strategy:  r.Strategy,
		Overshoot: r.Overshoot,
		Params: domain.GenAgentsParams{
			SearchParams: domain.SearchParams{
				MaxItems:  r.MaxItems,
				MaxTokens: r.MaxTokens,
				Metric:    r.Metric,
			},
			AlphaRecency:       pick("alpha-recency", searchOpts.alphaRecency, r.AlphaRecency),
			AlphaImportance:    pick("alpha-importance", searchOpts.alphaImportance, r.AlphaImportance),
			AlphaRelevance:     pick("alpha-relevance", searchOpts.alphaRelevance, r.AlphaRelevance),
			HalfLifeSeconds:    pick("half-life", searchOpts.halfLife, r.HalfLifeSeconds),
			MaxImportanceScore: r.MaxImportanceScore,
			TouchAccessed:      searchOpts.touch,
		},
	}
	if changed("strategy") {
		req.Strategy = domain.Strategy(searchOpts.strategy)
	}
	if changed("metric") {
		req.Params.Metric = domain.Metric(searchOpts.metric)
	}
	if changed("limit") {
		req.Params.MaxItems = searchOpts.maxItems
	}
	if changed("max-tokens") {
		req.Params.MaxTokens = searchOpts.maxTokens
	}
	if changed("overshoot") {
		req.Overshoot = searchOpts.overshoot
	}

	for _, expr := range searchOpts.filters {
		f, err := parseFilter(expr)
		if err != nil {
			return req, err
		}
		req.Params.Filters = append(req.Params.Filters, f)
	}
	return req, nil
}

// filterOps is ordered so two-character operators match first.
var filterOps = []domain.FilterOp{
	domain.FilterNe, domain.FilterLte, domain.FilterGte,
	domain.FilterEq, domain.FilterLt, domain.FilterGt,
}

func parseFilter(expr string) (domain.Filter, error) {
	if field, list, ok := strings.Cut(expr, " in "); ok {
		var values []any
		for _, v := range strings.Split(list, ",") {
			values = append(values, parseFilterValue(strings.TrimSpace(v)))
		}
		return domain.Filter{Field: strings.TrimSpace(field), Op: domain.FilterIn, Value: values}, nil
	}
	for _, op := range filterOps {
		if field, value, ok := strings.Cut(expr, string(op)); ok && strings.TrimSpace(field) != "" {
			return domain.Filter{
				Field: strings.TrimSpace(field),
				Op:    op,
				Value: parseFilterValue(strings.TrimSpace(value)),
			}, nil
		}
	}
	return domain.Filter{}, fmt.Errorf("%w: filter %q has no operator", domain.ErrInvalidInput, expr)
}

func parseFilterValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return strings.Trim(s, `"'`)
}

func printHits(cmd *cobra.Command, strategy domain.Strategy, hits []driving.SearchHit) {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return
	}
	for i, h := range hits {
		score := fmt.Sprintf("%.4f", h.Score)
		cmd.Printf("[%d] %s %s\n", i+1, styles.Score.Render(score), preview(h.Content, 100))
		detail := fmt.Sprintf("id=%s similarity=%.4f", h.ID, h.Similarity)
		switch strategy {
		case domain.StrategyRerank:
			detail += fmt.Sprintf(" rerank=%.4f", h.RerankScore)
		case domain.StrategyGenAgents:
			detail += fmt.Sprintf(" recency=%.3f importance=%.3f relevance=%.3f", h.Recency, h.Importance, h.Relevance)
		}
		cmd.Println("    " + styles.Muted.Render(detail))
	}
}
