// Package guard is the static SQL validator. It decides, for a candidate SQL
// string and a schema catalog, whether the statement is safe to execute:
// read-only, referencing only known objects, exposing no PHI in the result
// set, and bounded in rows. The SQL producer is untrusted; every layer is
// conservative.
package guard

import (
	"fmt"
	"sort"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v5"
	"go.uber.org/zap"

	"github.com/kcmh-data/sqlbot-engine/pkg/schema"
)

// Guard validates SQL statements against a catalog. Safe for concurrent use.
type Guard struct {
	maxRows int
	strict  bool
	logger  *zap.Logger
}

// New builds a Guard. maxRows bounds the LIMIT rule; strict mode turns
// unknown tables and columns into errors instead of warnings.
func New(maxRows int, strict bool, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{maxRows: maxRows, strict: strict, logger: logger.Named("guard")}
}

// Validate runs the full pipeline, short-circuiting on the first failure.
// graph may be nil, which skips the join-quality layer only.
func (g *Guard) Validate(sqlText string, cat *schema.Catalog, graph *schema.JoinGraph) *ValidationResult {
	sqlText = normalizeStatement(sqlText)
	if sqlText == "" {
		return failed(newError(ErrSQLParse, "empty SQL statement"))
	}

	scrubbed, literals := stripStringLiterals(sqlText)
	if kw, found := findForbiddenKeyword(scrubbed); found {
		g.logger.Warn("forbidden keyword rejected", zap.String("keyword", kw))
		return failed(newError(ErrForbiddenKeyword, "forbidden keyword: %s", kw))
	}

	parsed, err := pg_query.Parse(sqlText)
	if err != nil {
		g.logger.Warn("SQL parse failed", zap.Error(err))
		return failed(newError(ErrSQLParse, "SQL parse error: %v", err))
	}
	if len(parsed.Stmts) != 1 {
		return failed(newError(ErrSQLParse, "expected a single statement, got %d", len(parsed.Stmts)))
	}

	stmtNode := parsed.Stmts[0].Stmt
	selWrap, ok := stmtNode.Node.(*pg_query.Node_SelectStmt)
	if !ok {
		kind := statementKind(stmtNode)
		g.logger.Warn("forbidden statement rejected", zap.String("kind", kind))
		return failed(newError(ErrForbiddenStatement, "only SELECT statements are allowed, got %s", kind))
	}
	sel := selWrap.SelectStmt
	if verr := checkSelectShape(sel); verr != nil {
		g.logger.Warn("forbidden statement rejected", zap.String("reason", verr.Message))
		return failed(verr)
	}

	refs := extractReferences(sel)

	// No SELECT *, qualified or bare.
	if _, ok := refs.exposed[starKey]; ok {
		return failed(newError(ErrSelectStar, "SELECT * is not allowed - list the columns explicitly"))
	}
	for _, table := range sortedKeys(refs.exposed) {
		if _, ok := refs.exposed[table][starCol]; ok {
			return failed(newError(ErrSelectStar, "SELECT %s.* is not allowed - list the columns explicitly", table))
		}
	}

	// PHI exposure. Columns inside aggregates are absent from the exposed
	// map, so counting by a PHI key passes while selecting it does not.
	if phi := exposedPHIColumns(refs, cat); len(phi) > 0 {
		g.logger.Warn("PHI exposure rejected", zap.Strings("columns", phi))
		res := failed(newError(ErrPHIExposure, "query would expose PHI columns: %s", strings.Join(phi, ", ")))
		res.PHIColumnsFound = phi
		res.TablesUsed = realTables(refs)
		return res
	}

	result := &ValidationResult{
		TablesUsed:     realTables(refs),
		ColumnsUsed:    columnMap(refs.exposed, refs.ctes),
		AllColumns:     columnMap(refs.all, refs.ctes),
		HasAggregation: refs.hasAggregate || refs.hasGroupBy || refs.hasDistinct,
		HasLimit:       refs.hasLimit,
		LimitValue:     refs.limitValue,
	}

	// Catalog existence. CTE names are in-query relations, not catalog
	// objects, and are exempt.
	if cat != nil {
		invalidTables, invalidColumns := cat.ValidateSQLReferences(result.TablesUsed, result.AllColumns)
		if g.strict {
			var verr *ValidationError
			if len(invalidTables) > 0 {
				verr = newError(ErrUnknownTable, "unknown tables: %s", strings.Join(invalidTables, ", "))
			} else if len(invalidColumns) > 0 {
				verr = newError(ErrUnknownColumn, "unknown columns: %s", strings.Join(invalidColumns, ", "))
			}
			if verr != nil {
				res := failed(verr)
				res.TablesUsed = result.TablesUsed
				return res
			}
		} else {
			for _, t := range invalidTables {
				result.Warnings = append(result.Warnings, fmt.Sprintf("unknown table: %s", t))
			}
			for _, c := range invalidColumns {
				result.Warnings = append(result.Warnings, fmt.Sprintf("unknown column: %s", c))
			}
		}
	}

	// LIMIT rule. Aggregate queries are exempt regardless of LIMIT.
	if !result.HasAggregation {
		var verr *ValidationError
		switch {
		case !refs.hasLimit:
			verr = newError(ErrMissingLimit, "non-aggregate queries must include LIMIT (max %d rows)", g.maxRows)
		case refs.limitValue <= 0:
			verr = newError(ErrMissingLimit, "LIMIT must be a positive integer constant")
		case refs.limitValue > g.maxRows:
			verr = newError(ErrMissingLimit, "LIMIT %d exceeds the maximum of %d rows", refs.limitValue, g.maxRows)
		}
		if verr != nil {
			res := failed(verr)
			res.TablesUsed = result.TablesUsed
			return res
		}
	}

	if graph != nil {
		result.JoinWarnings = joinQualityWarnings(refs, graph)
	}
	result.Warnings = append(result.Warnings, literalInjectionWarnings(literals)...)

	result.Valid = true
	return result
}

// checkSelectShape permits a plain SELECT, a set operation whose branches
// are all SELECT, or a WITH-wrapped one of those. Data-modifying CTEs,
// VALUES lists and SELECT INTO are rejected.
func checkSelectShape(sel *pg_query.SelectStmt) *ValidationError {
	if sel == nil {
		return newError(ErrForbiddenStatement, "empty SELECT body")
	}
	if len(sel.ValuesLists) > 0 {
		return newError(ErrForbiddenStatement, "VALUES lists are not allowed")
	}
	if sel.IntoClause != nil {
		return newError(ErrForbiddenStatement, "SELECT INTO creates a table and is not allowed")
	}
	if sel.WithClause != nil {
		for _, cte := range sel.WithClause.Ctes {
			c, ok := cte.Node.(*pg_query.Node_CommonTableExpr)
			if !ok {
				continue
			}
			body, isSelect := c.CommonTableExpr.Ctequery.Node.(*pg_query.Node_SelectStmt)
			if !isSelect {
				return newError(ErrForbiddenStatement, "common table expression %q is not a SELECT", c.CommonTableExpr.Ctename)
			}
			if verr := checkSelectShape(body.SelectStmt); verr != nil {
				return verr
			}
		}
	}
	if sel.Op != pg_query.SetOperation_SETOP_NONE {
		if verr := checkSelectShape(sel.Larg); verr != nil {
			return verr
		}
		if verr := checkSelectShape(sel.Rarg); verr != nil {
			return verr
		}
	}
	return nil
}

// exposedPHIColumns returns the sorted PHI columns that would appear in the
// output. The fixed name set always applies; the catalog adds its own
// markings for attributable columns.
func exposedPHIColumns(refs *references, cat *schema.Catalog) []string {
	found := make(map[string]struct{})
	for table, cols := range refs.exposed {
		if table == starKey {
			continue
		}
		for col := range cols {
			if col == starCol {
				continue
			}
			if schema.IsPHIName(col) {
				found[col] = struct{}{}
				continue
			}
			if cat != nil && table != unknownKey {
				if c := cat.GetColumn(table, col); c != nil && c.IsPHI {
					found[col] = struct{}{}
				}
			}
		}
	}
	out := make([]string, 0, len(found))
	for c := range found {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// joinQualityWarnings checks every extracted equality condition against the
// join graph. Warnings only; this layer never rejects.
func joinQualityWarnings(refs *references, graph *schema.JoinGraph) []JoinWarning {
	var out []JoinWarning
	seen := make(map[string]struct{})
	for _, p := range refs.joinPairs {
		if p.fromTable == p.toTable {
			continue
		}
		if _, ok := refs.ctes[strings.ToLower(p.fromTable)]; ok {
			continue
		}
		if _, ok := refs.ctes[strings.ToLower(p.toTable)]; ok {
			continue
		}
		key := p.fromTable + "." + p.fromColumn + "=" + p.toTable + "." + p.toColumn
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		v := graph.ValidateJoin(p.fromTable, p.fromColumn, p.toTable, p.toColumn)
		w := JoinWarning{
			From:       p.fromTable + "." + p.fromColumn,
			To:         p.toTable + "." + p.toColumn,
			Confidence: v.Confidence,
			Suggestion: v.Suggestion,
		}
		switch {
		case !v.Valid:
			w.Message = v.Reason
		case v.Warning != "":
			w.Message = v.Warning
		case v.Confidence == schema.ConfidenceHeuristic:
			w.Message = "heuristic join - verify the relationship manually"
		default:
			continue
		}
		out = append(out, w)
	}
	return out
}

func realTables(refs *references) []string {
	var out []string
	for t := range refs.tables {
		if _, isCTE := refs.ctes[strings.ToLower(t)]; isCTE {
			continue
		}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func columnMap(m map[string]map[string]struct{}, ctes map[string]struct{}) map[string][]string {
	out := make(map[string][]string, len(m))
	for table, cols := range m {
		if table == starKey {
			continue
		}
		if _, isCTE := ctes[strings.ToLower(table)]; isCTE {
			continue
		}
		list := make([]string, 0, len(cols))
		for c := range cols {
			if c == starCol {
				continue
			}
			list = append(list, c)
		}
		if len(list) == 0 {
			continue
		}
		sort.Strings(list)
		out[table] = list
	}
	return out
}

func sortedKeys(m map[string]map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func statementKind(n *pg_query.Node) string {
	switch n.Node.(type) {
	case *pg_query.Node_InsertStmt:
		return "INSERT"
	case *pg_query.Node_UpdateStmt:
		return "UPDATE"
	case *pg_query.Node_DeleteStmt:
		return "DELETE"
	case *pg_query.Node_CreateStmt:
		return "CREATE TABLE"
	case *pg_query.Node_DropStmt:
		return "DROP"
	case *pg_query.Node_TruncateStmt:
		return "TRUNCATE"
	case *pg_query.Node_VariableSetStmt:
		return "SET"
	case *pg_query.Node_VariableShowStmt:
		return "SHOW"
	case *pg_query.Node_ExplainStmt:
		return "EXPLAIN"
	case *pg_query.Node_TransactionStmt:
		return "transaction control"
	case *pg_query.Node_CopyStmt:
		return "COPY"
	default:
		return "a non-SELECT statement"
	}
}
