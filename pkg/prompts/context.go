package prompts

import (
	"fmt"
	"strings"

	"github.com/kcmh-data/sqlbot-engine/pkg/concepts"
	"github.com/kcmh-data/sqlbot-engine/pkg/schema"
)

// priorityTables are presented first and in full; they carry most analytic
// questions. Remaining tables get a compact one-line listing.
var priorityTables = []string{
	"PT", "OVST", "OVSTDIAG", "IPT", "IPTDIAG", "OPITEMRECE",
	"LAB_HEAD", "LAB_ORDER", "DOCTOR", "CLINIC", "SPCLTY", "DRUGITEMS",
}

// maxJoinPatterns caps the high-confidence join examples in the context.
const maxJoinPatterns = 30

// SchemaContext renders the catalog for the LLM: priority tables with
// columns and markers, the rest by name, universal-key guidance and the
// high-confidence join patterns.
func SchemaContext(cat *schema.Catalog) string {
	var b strings.Builder

	b.WriteString("Universal join keys: hn (patient), an (admission), vn (visit). ")
	b.WriteString("They appear in many tables and are the preferred way to join across table families.\n\n")

	shown := make(map[string]bool)
	for _, name := range priorityTables {
		t := cat.GetTable(name)
		if t == nil {
			continue
		}
		shown[t.Name] = true
		writeTable(&b, cat, t)
	}

	var rest []string
	for _, name := range cat.TableNames() {
		if !shown[name] {
			rest = append(rest, name)
		}
	}
	if len(rest) > 0 {
		b.WriteString("Other tables (columns on request): ")
		b.WriteString(strings.Join(rest, ", "))
		b.WriteString("\n\n")
	}

	writeJoinPatterns(&b, cat)
	return b.String()
}

func writeTable(b *strings.Builder, cat *schema.Catalog, t *schema.Table) {
	fmt.Fprintf(b, "### %s", t.Name)
	if t.Comment != "" {
		fmt.Fprintf(b, " - %s", t.Comment)
	}
	b.WriteString("\n")
	for _, col := range cat.GetColumns(t.Name) {
		var marks []string
		if col.IsPK {
			marks = append(marks, "PK")
		}
		if col.IsFK {
			marks = append(marks, "FK")
		}
		if col.IsPHI {
			marks = append(marks, "PHI - never select")
		}
		if col.JoinWarning != "" {
			marks = append(marks, "warning: "+col.JoinWarning)
		}
		fmt.Fprintf(b, "- %s %s", col.Name, col.BaseType)
		if col.Comment != "" {
			fmt.Fprintf(b, " - %s", col.Comment)
		}
		if len(marks) > 0 {
			fmt.Fprintf(b, " [%s]", strings.Join(marks, "; "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeJoinPatterns(b *strings.Builder, cat *schema.Catalog) {
	var lines []string
	for _, e := range cat.JoinEdges {
		if e.Confidence != schema.ConfidenceHigh || e.HasWarning() {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s.%s = %s.%s (%s)",
			e.FromTable, e.FromColumn, e.ToTable, e.ToColumn, e.RelType))
		if len(lines) == maxJoinPatterns {
			break
		}
	}
	if len(lines) == 0 {
		return
	}
	b.WriteString("Reliable join patterns:\n")
	for _, l := range lines {
		b.WriteString("- " + l + "\n")
	}
}

// ConceptsContext renders the concept library for the LLM.
func ConceptsContext(lib *concepts.Library) string {
	if lib == nil || lib.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for _, c := range lib.All() {
		fmt.Fprintf(&b, "### %s\n%s\n", c.Name, c.Description)
		if c.Condition != "" {
			fmt.Fprintf(&b, "Condition fragment: %s\n", c.Condition)
		}
		if len(c.ICD10) > 0 {
			fmt.Fprintf(&b, "ICD-10: %s\n", strings.Join(c.ICD10, ", "))
		}
		if len(c.Tests) > 0 {
			fmt.Fprintf(&b, "Lab tests: %s\n", strings.Join(c.Tests, ", "))
		}
		if c.BundleLogic != "" {
			fmt.Fprintf(&b, "Bundle: %s\n", c.BundleLogic)
		}
		if len(c.Tables) > 0 {
			fmt.Fprintf(&b, "Tables: %s\n", strings.Join(c.Tables, ", "))
		}
		if c.Notes != "" {
			fmt.Fprintf(&b, "Notes: %s\n", c.Notes)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RetryContext explains a validation failure to the LLM: the rejected SQL,
// the reason, the full table list, and the columns of every table the failed
// SQL mentioned.
func RetryContext(failedSQL, reason string, cat *schema.Catalog, tablesInFailedSQL []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The previous SQL was rejected and must not be repeated as-is.\n\n")
	fmt.Fprintf(&b, "Rejected SQL:\n%s\n\n", failedSQL)
	fmt.Fprintf(&b, "Rejection reason: %s\n\n", reason)
	fmt.Fprintf(&b, "Valid tables: %s\n", strings.Join(cat.TableNames(), ", "))

	for _, table := range tablesInFailedSQL {
		cols := cat.GetColumns(table)
		if cols == nil {
			continue
		}
		names := make([]string, 0, len(cols))
		for _, c := range cols {
			if c.IsPHI {
				names = append(names, c.Name+" (PHI)")
			} else {
				names = append(names, c.Name)
			}
		}
		fmt.Fprintf(&b, "Columns of %s: %s\n", strings.ToUpper(table), strings.Join(names, ", "))
	}
	return b.String()
}
