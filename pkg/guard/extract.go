package guard

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v5"
)

// Pseudo table keys used in the reference maps.
const (
	starKey    = "_STAR_"    // unqualified SELECT *
	unknownKey = "_UNKNOWN_" // unqualified column not attributable to one table
	starCol    = "*"
)

// Aggregate functions whose argument subtrees do not expose values in the
// result set.
var aggregateFuncs = map[string]struct{}{
	"count": {}, "sum": {}, "avg": {}, "min": {}, "max": {}, "array_agg": {},
}

type joinPair struct {
	fromTable, fromColumn, toTable, toColumn string
}

// references is everything the walker learns about one statement.
type references struct {
	tables    map[string]struct{}            // uppercase real names from FROM/JOIN
	aliases   map[string]string              // lowercase alias -> uppercase real
	ctes      map[string]struct{}            // lowercase CTE names
	exposed   map[string]map[string]struct{} // table key -> columns visible in output
	all       map[string]map[string]struct{} // table key -> every referenced column
	joinPairs []joinPair

	hasAggregate bool
	hasGroupBy   bool
	hasDistinct  bool
	hasLimit     bool
	limitValue   int
}

type walkCtx struct {
	exposed  bool // inside a SELECT projection, outside any aggregate
	joinCond bool // inside JOIN ON or WHERE, descending through AND only
}

// scope tracks one SELECT's FROM entries so unqualified columns can be
// attributed when exactly one table is in scope. Multi-table scopes leave
// them under _UNKNOWN_; over-attribution would mask real errors.
type scope struct {
	tables         []string
	unknownExposed map[string]struct{}
	unknownAll     map[string]struct{}
}

func newScope() *scope {
	return &scope{
		unknownExposed: make(map[string]struct{}),
		unknownAll:     make(map[string]struct{}),
	}
}

func extractReferences(stmt *pg_query.SelectStmt) *references {
	r := &references{
		tables:  make(map[string]struct{}),
		aliases: make(map[string]string),
		ctes:    make(map[string]struct{}),
		exposed: make(map[string]map[string]struct{}),
		all:     make(map[string]map[string]struct{}),
	}
	r.walkSelect(stmt)
	if stmt.LimitCount != nil {
		r.hasLimit = true
		if c, ok := stmt.LimitCount.Node.(*pg_query.Node_AConst); ok {
			if ival := c.AConst.GetIval(); ival != nil {
				r.limitValue = int(ival.Ival)
			}
		}
	}
	r.resolveAliases()
	return r
}

func (r *references) walkSelect(sel *pg_query.SelectStmt) {
	if sel == nil {
		return
	}
	if sel.WithClause != nil {
		for _, cte := range sel.WithClause.Ctes {
			c, ok := cte.Node.(*pg_query.Node_CommonTableExpr)
			if !ok {
				continue
			}
			r.ctes[strings.ToLower(c.CommonTableExpr.Ctename)] = struct{}{}
			if body, ok := c.CommonTableExpr.Ctequery.Node.(*pg_query.Node_SelectStmt); ok {
				r.walkSelect(body.SelectStmt)
			}
		}
	}
	if sel.Op != pg_query.SetOperation_SETOP_NONE {
		r.walkSelect(sel.Larg)
		r.walkSelect(sel.Rarg)
		return
	}

	sc := newScope()
	for _, f := range sel.FromClause {
		r.collectFrom(f, sc)
	}
	if len(sel.DistinctClause) > 0 {
		r.hasDistinct = true
	}
	if len(sel.GroupClause) > 0 {
		r.hasGroupBy = true
		for _, g := range sel.GroupClause {
			r.walkExpr(g, walkCtx{}, sc)
		}
	}
	for _, t := range sel.TargetList {
		if rt, ok := t.Node.(*pg_query.Node_ResTarget); ok {
			r.walkExpr(rt.ResTarget.Val, walkCtx{exposed: true}, sc)
		}
	}
	r.walkExpr(sel.WhereClause, walkCtx{joinCond: true}, sc)
	r.walkExpr(sel.HavingClause, walkCtx{}, sc)
	for _, s := range sel.SortClause {
		r.walkExpr(s, walkCtx{}, sc)
	}
	r.walkExpr(sel.LimitCount, walkCtx{}, sc)
	r.walkExpr(sel.LimitOffset, walkCtx{}, sc)

	r.closeScope(sc)
}

// collectFrom records FROM/JOIN entries into the scope.
func (r *references) collectFrom(node *pg_query.Node, sc *scope) {
	if node == nil {
		return
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_RangeVar:
		rv := n.RangeVar
		real := strings.ToUpper(rv.Relname)
		r.tables[real] = struct{}{}
		key := real
		if rv.Alias != nil && rv.Alias.Aliasname != "" {
			r.aliases[strings.ToLower(rv.Alias.Aliasname)] = real
			key = strings.ToUpper(rv.Alias.Aliasname)
		}
		sc.tables = append(sc.tables, key)
	case *pg_query.Node_JoinExpr:
		r.collectFrom(n.JoinExpr.Larg, sc)
		r.collectFrom(n.JoinExpr.Rarg, sc)
		r.walkExpr(n.JoinExpr.Quals, walkCtx{joinCond: true}, sc)
	case *pg_query.Node_RangeSubselect:
		// Derived table: its body is a scope of its own. Its alias is not a
		// catalog table, so it contributes nothing to this scope.
		if body, ok := n.RangeSubselect.Subquery.Node.(*pg_query.Node_SelectStmt); ok {
			r.walkSelect(body.SelectStmt)
		}
	}
}

func (r *references) walkExpr(node *pg_query.Node, ctx walkCtx, sc *scope) {
	if node == nil {
		return
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_ColumnRef:
		r.recordColumnRef(n.ColumnRef, ctx, sc)

	case *pg_query.Node_FuncCall:
		fc := n.FuncCall
		name := funcName(fc)
		argCtx := walkCtx{exposed: ctx.exposed}
		if _, ok := aggregateFuncs[name]; ok {
			r.hasAggregate = true
			argCtx.exposed = false
		}
		for _, a := range fc.Args {
			r.walkExpr(a, argCtx, sc)
		}
		for _, a := range fc.AggOrder {
			r.walkExpr(a, argCtx, sc)
		}
		r.walkExpr(fc.AggFilter, walkCtx{}, sc)

	case *pg_query.Node_AExpr:
		ae := n.AExpr
		if ctx.joinCond {
			r.recordJoinPair(ae)
		}
		inner := walkCtx{exposed: ctx.exposed}
		r.walkExpr(ae.Lexpr, inner, sc)
		r.walkExpr(ae.Rexpr, inner, sc)

	case *pg_query.Node_BoolExpr:
		inner := walkCtx{exposed: ctx.exposed}
		if n.BoolExpr.Boolop == pg_query.BoolExprType_AND_EXPR {
			inner.joinCond = ctx.joinCond
		}
		for _, a := range n.BoolExpr.Args {
			r.walkExpr(a, inner, sc)
		}

	case *pg_query.Node_SubLink:
		if body, ok := n.SubLink.Subselect.Node.(*pg_query.Node_SelectStmt); ok {
			r.walkSelect(body.SelectStmt)
		}
		r.walkExpr(n.SubLink.Testexpr, walkCtx{exposed: ctx.exposed}, sc)

	case *pg_query.Node_CaseExpr:
		ce := n.CaseExpr
		inner := walkCtx{exposed: ctx.exposed}
		r.walkExpr(ce.Arg, inner, sc)
		for _, w := range ce.Args {
			r.walkExpr(w, inner, sc)
		}
		r.walkExpr(ce.Defresult, inner, sc)

	case *pg_query.Node_CaseWhen:
		inner := walkCtx{exposed: ctx.exposed}
		r.walkExpr(n.CaseWhen.Expr, inner, sc)
		r.walkExpr(n.CaseWhen.Result, inner, sc)

	case *pg_query.Node_CoalesceExpr:
		for _, a := range n.CoalesceExpr.Args {
			r.walkExpr(a, walkCtx{exposed: ctx.exposed}, sc)
		}

	case *pg_query.Node_MinMaxExpr:
		for _, a := range n.MinMaxExpr.Args {
			r.walkExpr(a, walkCtx{exposed: ctx.exposed}, sc)
		}

	case *pg_query.Node_RowExpr:
		for _, a := range n.RowExpr.Args {
			r.walkExpr(a, walkCtx{exposed: ctx.exposed}, sc)
		}

	case *pg_query.Node_AArrayExpr:
		for _, a := range n.AArrayExpr.Elements {
			r.walkExpr(a, walkCtx{exposed: ctx.exposed}, sc)
		}

	case *pg_query.Node_List:
		for _, item := range n.List.Items {
			r.walkExpr(item, ctx, sc)
		}

	case *pg_query.Node_TypeCast:
		r.walkExpr(n.TypeCast.Arg, walkCtx{exposed: ctx.exposed}, sc)

	case *pg_query.Node_NullTest:
		r.walkExpr(n.NullTest.Arg, walkCtx{}, sc)

	case *pg_query.Node_BooleanTest:
		r.walkExpr(n.BooleanTest.Arg, walkCtx{}, sc)

	case *pg_query.Node_ResTarget:
		r.walkExpr(n.ResTarget.Val, ctx, sc)

	case *pg_query.Node_SortBy:
		r.walkExpr(n.SortBy.Node, walkCtx{}, sc)

	case *pg_query.Node_SelectStmt:
		r.walkSelect(n.SelectStmt)
	}
}

func (r *references) recordColumnRef(cr *pg_query.ColumnRef, ctx walkCtx, sc *scope) {
	table, column, isStar := columnRefParts(cr)
	switch {
	case isStar && table == "":
		r.record(starKey, starCol, ctx.exposed)
	case isStar:
		r.record(strings.ToUpper(table), starCol, ctx.exposed)
	case table == "":
		sc.unknownAll[column] = struct{}{}
		if ctx.exposed {
			sc.unknownExposed[column] = struct{}{}
		}
	default:
		r.record(strings.ToUpper(table), column, ctx.exposed)
	}
}

// columnRefParts flattens a ColumnRef's field list. The last field is the
// column (or star); the field before it, if any, is the table or alias.
func columnRefParts(cr *pg_query.ColumnRef) (table, column string, isStar bool) {
	var names []string
	for _, f := range cr.Fields {
		switch fn := f.Node.(type) {
		case *pg_query.Node_String_:
			names = append(names, fn.String_.Sval)
		case *pg_query.Node_AStar:
			isStar = true
		}
	}
	if len(names) > 0 {
		if isStar {
			table = names[len(names)-1]
		} else {
			column = strings.ToLower(names[len(names)-1])
			if len(names) > 1 {
				table = names[len(names)-2]
			}
		}
	}
	return table, column, isStar
}

func (r *references) record(key, column string, exposed bool) {
	addTo := func(m map[string]map[string]struct{}) {
		if m[key] == nil {
			m[key] = make(map[string]struct{})
		}
		m[key][column] = struct{}{}
	}
	addTo(r.all)
	if exposed {
		addTo(r.exposed)
	}
}

// recordJoinPair captures Ta.ca = Tb.cb equality conditions for the
// join-quality layer. Unqualified sides are skipped.
func (r *references) recordJoinPair(ae *pg_query.A_Expr) {
	if ae.Kind != pg_query.A_Expr_Kind_AEXPR_OP || len(ae.Name) != 1 {
		return
	}
	op, ok := ae.Name[0].Node.(*pg_query.Node_String_)
	if !ok || op.String_.Sval != "=" {
		return
	}
	lt, lc, lok := qualifiedColumn(ae.Lexpr)
	rt, rc, rok := qualifiedColumn(ae.Rexpr)
	if !lok || !rok {
		return
	}
	r.joinPairs = append(r.joinPairs, joinPair{
		fromTable: lt, fromColumn: lc,
		toTable: rt, toColumn: rc,
	})
}

func qualifiedColumn(node *pg_query.Node) (table, column string, ok bool) {
	if node == nil {
		return "", "", false
	}
	cr, isRef := node.Node.(*pg_query.Node_ColumnRef)
	if !isRef {
		return "", "", false
	}
	table, column, isStar := columnRefParts(cr.ColumnRef)
	if isStar || table == "" || column == "" {
		return "", "", false
	}
	return strings.ToUpper(table), column, true
}

// closeScope attributes the scope's unqualified columns. With exactly one
// table in scope they belong to it; otherwise they stay under _UNKNOWN_.
func (r *references) closeScope(sc *scope) {
	single := ""
	if len(dedupe(sc.tables)) == 1 {
		single = dedupe(sc.tables)[0]
	}
	assign := func(cols map[string]struct{}, exposed bool) {
		for col := range cols {
			key := unknownKey
			if single != "" {
				key = single
			}
			r.record(key, col, exposed)
		}
	}
	assign(sc.unknownAll, false)
	assign(sc.unknownExposed, true)
}

// resolveAliases rewrites alias keys in both maps to real table names.
func (r *references) resolveAliases() {
	r.exposed = r.resolveMap(r.exposed)
	r.all = r.resolveMap(r.all)
	for i, p := range r.joinPairs {
		r.joinPairs[i].fromTable = r.resolveKey(p.fromTable)
		r.joinPairs[i].toTable = r.resolveKey(p.toTable)
	}
}

func (r *references) resolveMap(m map[string]map[string]struct{}) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(m))
	for key, cols := range m {
		resolved := r.resolveKey(key)
		if out[resolved] == nil {
			out[resolved] = make(map[string]struct{}, len(cols))
		}
		for c := range cols {
			out[resolved][c] = struct{}{}
		}
	}
	return out
}

func (r *references) resolveKey(key string) string {
	if key == starKey || key == unknownKey {
		return key
	}
	if real, ok := r.aliases[strings.ToLower(key)]; ok {
		return real
	}
	return strings.ToUpper(key)
}

func funcName(fc *pg_query.FuncCall) string {
	for i := len(fc.Funcname) - 1; i >= 0; i-- {
		if s, ok := fc.Funcname[i].Node.(*pg_query.Node_String_); ok {
			return strings.ToLower(s.String_.Sval)
		}
	}
	return ""
}

func dedupe(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	var out []string
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
