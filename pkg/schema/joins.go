package schema

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultMaxHops bounds the breadth-first path search.
const DefaultMaxHops = 3

// EdgeScore ranks an edge for path selection. It is a pure function of
// (confidence, rel_type, warning presence); scores order candidates, they
// never accept or reject.
func EdgeScore(e JoinEdge) int {
	var score int
	switch e.Confidence {
	case ConfidenceHigh:
		score = 100
	case ConfidenceMedium:
		score = 50
	default:
		score = 25
	}
	switch e.RelType {
	case RelUniversal:
		score += 50
	case RelTableMatch:
		score += 30
	case RelWithinFamily:
		score += 10
	case RelHeuristicHome:
		score -= 20
	}
	if e.HasWarning() {
		score -= 30
	}
	return score
}

// JoinPath is an ordered chain of edges from a source to a destination table.
type JoinPath struct {
	Tables []string   `json:"tables"`
	Edges  []JoinEdge `json:"edges"`
	Score  int        `json:"score"`
}

// Hops is the number of edges in the path.
func (p JoinPath) Hops() int { return len(p.Edges) }

// JoinValidation is the outcome of checking one proposed equality join.
type JoinValidation struct {
	Valid      bool   `json:"valid"`
	Confidence string `json:"confidence,omitempty"`
	Score      int    `json:"score"`
	Reason     string `json:"reason,omitempty"`
	Warning    string `json:"warning,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// JoinStep is one edge of a recommended join plan, annotated with its score.
type JoinStep struct {
	Edge  JoinEdge `json:"edge"`
	Score int      `json:"score"`
}

// JoinPlan is the output of RecommendJoins.
type JoinPlan struct {
	Steps    []JoinStep `json:"steps"`
	Warnings []string   `json:"warnings,omitempty"`
}

// JoinGraph answers path and validation queries over the catalog's edge
// list. Construction is cheap; a graph is built per catalog publication.
type JoinGraph struct {
	catalog *Catalog
	// adjacency by uppercase table name, both directions present
	adj map[string][]JoinEdge
}

// NewJoinGraph indexes the catalog's join edges, synthesizing the reverse of
// every edge so search can treat them as undirected.
func NewJoinGraph(cat *Catalog) *JoinGraph {
	g := &JoinGraph{catalog: cat, adj: make(map[string][]JoinEdge)}
	for _, e := range cat.JoinEdges {
		g.adj[e.FromTable] = append(g.adj[e.FromTable], e)
		g.adj[e.ToTable] = append(g.adj[e.ToTable], e.Reversed())
	}
	return g
}

// DirectEdges returns the outgoing edges of a table, including synthesized
// reverses.
func (g *JoinGraph) DirectEdges(table string) []JoinEdge {
	return g.adj[strings.ToUpper(table)]
}

// FindPaths returns every acyclic path between two tables within maxHops
// edges, sorted by (hops ascending, score descending). A self-join returns
// no paths. maxHops <= 0 uses DefaultMaxHops.
func (g *JoinGraph) FindPaths(from, to string, maxHops int) []JoinPath {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return nil
	}

	type state struct {
		table   string
		edges   []JoinEdge
		visited map[string]bool
	}
	var found []JoinPath
	queue := []state{{table: from, visited: map[string]bool{from: true}}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.edges) >= maxHops {
			continue
		}
		for _, e := range g.adj[cur.table] {
			if cur.visited[e.ToTable] {
				continue
			}
			edges := append(append([]JoinEdge(nil), cur.edges...), e)
			if e.ToTable == to {
				found = append(found, buildPath(from, edges))
				continue
			}
			visited := make(map[string]bool, len(cur.visited)+1)
			for k := range cur.visited {
				visited[k] = true
			}
			visited[e.ToTable] = true
			queue = append(queue, state{table: e.ToTable, edges: edges, visited: visited})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if len(found[i].Edges) != len(found[j].Edges) {
			return len(found[i].Edges) < len(found[j].Edges)
		}
		return found[i].Score > found[j].Score
	})
	return found
}

func buildPath(from string, edges []JoinEdge) JoinPath {
	p := JoinPath{Tables: []string{from}, Edges: edges}
	for _, e := range edges {
		p.Tables = append(p.Tables, e.ToTable)
		p.Score += EdgeScore(e)
	}
	return p
}

// ValidateJoin checks a proposed equality join between two qualified columns.
func (g *JoinGraph) ValidateJoin(fromTable, fromColumn, toTable, toColumn string) JoinValidation {
	fromTable = strings.ToUpper(fromTable)
	toTable = strings.ToUpper(toTable)
	fromColumn = strings.ToLower(fromColumn)
	toColumn = strings.ToLower(toColumn)

	cat := g.catalog
	for _, ref := range []struct{ table, column string }{
		{fromTable, fromColumn}, {toTable, toColumn},
	} {
		if !cat.TableExists(ref.table) {
			return JoinValidation{Reason: fmt.Sprintf("unknown table %s", ref.table)}
		}
		if !cat.ColumnExists(ref.table, ref.column) {
			return JoinValidation{Reason: fmt.Sprintf("unknown column %s.%s", ref.table, ref.column)}
		}
	}

	if e, ok := g.findEdge(fromTable, fromColumn, toTable, toColumn); ok {
		v := JoinValidation{Valid: true, Confidence: e.Confidence, Score: EdgeScore(e)}
		if e.HasWarning() {
			v.Warning = strings.TrimSpace(strings.Join(nonEmpty(e.WarningFrom, e.WarningTo), "; "))
			if better, ok := g.betterEdge(fromTable, toTable, EdgeScore(e)); ok {
				v.Suggestion = fmt.Sprintf("prefer %s.%s = %s.%s (%s)",
					better.FromTable, better.FromColumn, better.ToTable, better.ToColumn, better.Confidence)
			}
		}
		return v
	}

	if fromColumn == toColumn {
		return JoinValidation{
			Valid:      true,
			Confidence: ConfidenceHeuristic,
			Score:      25,
			Warning:    fmt.Sprintf("join %s.%s = %s.%s not in schema knowledge - verify manually", fromTable, fromColumn, toTable, toColumn),
		}
	}

	return JoinValidation{Reason: fmt.Sprintf("no known relationship between %s.%s and %s.%s", fromTable, fromColumn, toTable, toColumn)}
}

// findEdge looks for the exact edge in either direction.
func (g *JoinGraph) findEdge(ft, fc, tt, tc string) (JoinEdge, bool) {
	for _, e := range g.adj[ft] {
		if e.FromColumn == fc && e.ToTable == tt && e.ToColumn == tc {
			return e, true
		}
	}
	return JoinEdge{}, false
}

// betterEdge returns a warning-free edge between the same tables whose score
// strictly exceeds minScore, if one exists.
func (g *JoinGraph) betterEdge(fromTable, toTable string, minScore int) (JoinEdge, bool) {
	var best JoinEdge
	bestScore := minScore
	found := false
	for _, e := range g.adj[fromTable] {
		if e.ToTable != toTable || e.HasWarning() {
			continue
		}
		if s := EdgeScore(e); s > bestScore {
			best, bestScore, found = e, s, true
		}
	}
	return best, found
}

// RecommendJoins builds a greedy join plan over a set of tables starting from
// base (or the first table when base is empty). At each step it takes the
// highest-scoring direct edge from a joined table to an unjoined one, falling
// back to a two-hop path; tables that remain unreachable produce a warning.
func (g *JoinGraph) RecommendJoins(tables []string, base string) JoinPlan {
	var plan JoinPlan
	if len(tables) == 0 {
		return plan
	}

	remaining := make(map[string]bool, len(tables))
	for _, t := range tables {
		remaining[strings.ToUpper(t)] = true
	}
	if base == "" {
		base = tables[0]
	}
	base = strings.ToUpper(base)
	joined := map[string]bool{base: true}
	delete(remaining, base)

	for len(remaining) > 0 {
		if step, ok := g.bestDirectStep(joined, remaining); ok {
			plan.Steps = append(plan.Steps, step)
			joined[step.Edge.ToTable] = true
			delete(remaining, step.Edge.ToTable)
			continue
		}
		if steps, ok := g.bestTwoHop(joined, remaining); ok {
			for _, step := range steps {
				plan.Steps = append(plan.Steps, step)
				joined[step.Edge.ToTable] = true
				delete(remaining, step.Edge.ToTable)
			}
			continue
		}
		unjoined := make([]string, 0, len(remaining))
		for t := range remaining {
			unjoined = append(unjoined, t)
		}
		sort.Strings(unjoined)
		plan.Warnings = append(plan.Warnings,
			fmt.Sprintf("no join path found for: %s", strings.Join(unjoined, ", ")))
		break
	}
	return plan
}

func (g *JoinGraph) bestDirectStep(joined, remaining map[string]bool) (JoinStep, bool) {
	var best JoinStep
	found := false
	for t := range joined {
		for _, e := range g.adj[t] {
			if !remaining[e.ToTable] {
				continue
			}
			if s := EdgeScore(e); !found || s > best.Score {
				best = JoinStep{Edge: e, Score: s}
				found = true
			}
		}
	}
	return best, found
}

// bestTwoHop finds the highest-scoring two-edge path from any joined table to
// any remaining table through an intermediate not yet joined.
func (g *JoinGraph) bestTwoHop(joined, remaining map[string]bool) ([]JoinStep, bool) {
	var best []JoinStep
	bestScore := 0
	for t := range joined {
		for target := range remaining {
			for _, p := range g.FindPaths(t, target, 2) {
				if p.Hops() != 2 {
					continue
				}
				if joined[p.Edges[0].ToTable] {
					continue
				}
				if best == nil || p.Score > bestScore {
					best = []JoinStep{
						{Edge: p.Edges[0], Score: EdgeScore(p.Edges[0])},
						{Edge: p.Edges[1], Score: EdgeScore(p.Edges[1])},
					}
					bestScore = p.Score
				}
				break // paths are sorted; first two-hop is the best for this pair
			}
		}
	}
	return best, best != nil
}

func nonEmpty(ss ...string) []string {
	var out []string
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
