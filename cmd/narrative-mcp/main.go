// Command narrative-mcp exposes the same read-only narrative/entity queries
// httpapi serves over HTTP (§6) as MCP tools over stdio, so an agent client
// (grounded on the donor's internal/mcpclient.Manager, which speaks the same
// SDK from the other side) can query the pipeline directly instead of
// shelling out to curl.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/config"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/logging"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence/databases"
)

type server struct {
	store *persistence.Manager
}

type listNarrativesArgs struct {
	LifecycleState string `json:"lifecycle_state,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

func (s *server) listNarratives(ctx context.Context, req *mcp.CallToolRequest, args listNarrativesArgs) (*mcp.CallToolResult, any, error) {
	limit := args.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	filter := persistence.NarrativeFilter{
		LifecycleState: persistence.LifecycleState(args.LifecycleState),
		Limit:          limit,
	}
	narratives, err := s.store.Narratives.ListActive(ctx, filter)
	if err != nil {
		return errResult(err), nil, nil
	}
	return textResult(summarizeNarratives(narratives)), nil, nil
}

type narrativeTimelineArgs struct {
	NarrativeID string `json:"narrative_id"`
}

func (s *server) narrativeTimeline(ctx context.Context, req *mcp.CallToolRequest, args narrativeTimelineArgs) (*mcp.CallToolResult, any, error) {
	n, ok, err := s.store.Narratives.Get(ctx, args.NarrativeID)
	if err != nil {
		return errResult(err), nil, nil
	}
	if !ok {
		return errResult(fmt.Errorf("narrative %s not found", args.NarrativeID)), nil, nil
	}
	out := fmt.Sprintf("%s (%s)\n", n.Title, n.LifecycleState)
	for _, snap := range n.TimelineData {
		out += fmt.Sprintf("  %s: %d articles, velocity %.2f\n", snap.Date, snap.ArticleCount, snap.Velocity)
	}
	return textResult(out), nil, nil
}

type trendingEntitiesArgs struct {
	Window string `json:"window,omitempty"`
	TopN   int    `json:"top_n,omitempty"`
}

func (s *server) trendingEntities(ctx context.Context, req *mcp.CallToolRequest, args trendingEntitiesArgs) (*mcp.CallToolResult, any, error) {
	window := args.Window
	if window == "" {
		window = "24h"
	}
	topN := args.TopN
	if topN <= 0 || topN > 100 {
		topN = 20
	}
	scores, err := s.store.SignalScores.Trending(ctx, window, topN, 0)
	if err != nil {
		return errResult(err), nil, nil
	}
	out := ""
	for _, sc := range scores {
		out += fmt.Sprintf("%s (%s): score %.2f\n", sc.Entity, sc.EntityType, sc.Windows[window].Score)
	}
	if out == "" {
		out = "no trending entities"
	}
	return textResult(out), nil, nil
}

type entityAlertsArgs struct {
	Severity string `json:"severity,omitempty"`
}

func (s *server) entityAlerts(ctx context.Context, req *mcp.CallToolRequest, args entityAlertsArgs) (*mcp.CallToolResult, any, error) {
	unresolved := false
	alerts, err := s.store.EntityAlerts.List(ctx, persistence.EntityAlertFilter{Severity: args.Severity, Resolved: &unresolved})
	if err != nil {
		return errResult(err), nil, nil
	}
	out := ""
	for _, a := range alerts {
		out += fmt.Sprintf("[%s] %s: %s (raised %s)\n", a.Severity, a.Entity, a.Reason, a.CreatedAt.Format(time.RFC3339))
	}
	if out == "" {
		out = "no open alerts"
	}
	return textResult(out), nil, nil
}

func summarizeNarratives(narratives []persistence.Narrative) string {
	if len(narratives) == 0 {
		return "no active narratives"
	}
	out := ""
	for _, n := range narratives {
		out += fmt.Sprintf("%s | %s | %s | %d articles | velocity %.2f\n", n.ID, n.Title, n.LifecycleState, n.ArticleCount, n.MentionVelocity)
	}
	return out
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Log.Fatal().Err(err).Msg("load_config_failed")
	}

	ctx := context.Background()
	store, err := databases.NewManager(ctx, cfg.DB)
	if err != nil {
		logging.Log.Fatal().Err(err).Msg("init_store_failed")
	}
	defer store.Close()

	s := &server{store: store}
	impl := &mcp.Implementation{Name: "narrative-query", Version: "1.0.0"}
	mcpServer := mcp.NewServer(impl, nil)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "list_active_narratives",
		Description: "Lists active narratives, optionally filtered by lifecycle state.",
	}, s.listNarratives)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "get_narrative_timeline",
		Description: "Returns the daily article-count/velocity timeline for one narrative.",
	}, s.narrativeTimeline)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "list_trending_entities",
		Description: "Lists entities ranked by signal score over a window (1h, 24h, 7d, 30d).",
	}, s.trendingEntities)
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "list_entity_alerts",
		Description: "Lists open entity alerts, optionally filtered by severity.",
	}, s.entityAlerts)

	if err := mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		fmt.Fprintln(os.Stderr, "mcp server exited:", err)
		os.Exit(1)
	}
}
