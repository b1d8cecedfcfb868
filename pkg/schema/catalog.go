package schema

import (
	"sort"
	"strings"
)

// TableExists reports whether the table is in the catalog. Matching is
// case-insensitive; uppercase is canonical.
func (c *Catalog) TableExists(name string) bool {
	_, ok := c.Tables[strings.ToUpper(name)]
	return ok
}

// ColumnExists reports whether table.column is in the catalog.
func (c *Catalog) ColumnExists(table, column string) bool {
	t, ok := c.Tables[strings.ToUpper(table)]
	if !ok {
		return false
	}
	_, ok = t.Columns[strings.ToLower(column)]
	return ok
}

// GetTable returns the table, or nil when unknown.
func (c *Catalog) GetTable(name string) *Table {
	return c.Tables[strings.ToUpper(name)]
}

// GetColumn returns table.column, or nil when either is unknown.
func (c *Catalog) GetColumn(table, column string) *Column {
	t := c.GetTable(table)
	if t == nil {
		return nil
	}
	return t.Columns[strings.ToLower(column)]
}

// GetColumns returns the columns of a table sorted by name, or nil when the
// table is unknown.
func (c *Catalog) GetColumns(table string) []*Column {
	t := c.GetTable(table)
	if t == nil {
		return nil
	}
	out := make([]*Column, 0, len(t.Columns))
	for _, col := range t.Columns {
		out = append(out, col)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsPHIColumn reports whether the lowercase column name is in the PHI set.
// This is name-based only; table-specific markings live on Column.IsPHI.
func (c *Catalog) IsPHIColumn(column string) bool {
	return IsPHIName(column)
}

// PHIColumnsInTable returns the sorted names of the table's PHI columns.
func (c *Catalog) PHIColumnsInTable(table string) []string {
	t := c.GetTable(table)
	if t == nil {
		return nil
	}
	var out []string
	for name, col := range t.Columns {
		if col.IsPHI {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// FamilyTables returns the tables grouped under a family prefix.
func (c *Catalog) FamilyTables(family string) []string {
	return c.Families[strings.ToLower(family)]
}

// TablesWithColumn returns the sorted names of every table carrying the
// column, useful for universal keys.
func (c *Catalog) TablesWithColumn(column string) []string {
	column = strings.ToLower(column)
	var out []string
	for name, t := range c.Tables {
		if _, ok := t.Columns[column]; ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// TableNames returns every table name, sorted.
func (c *Catalog) TableNames() []string {
	out := make([]string, 0, len(c.Tables))
	for name := range c.Tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ValidateSQLReferences checks a set of referenced tables and qualified
// columns against the catalog. Columns are reported only for tables that
// exist; a column inside an unknown table is covered by the table report.
func (c *Catalog) ValidateSQLReferences(tables []string, columns map[string][]string) (invalidTables, invalidColumns []string) {
	for _, t := range tables {
		if !c.TableExists(t) {
			invalidTables = append(invalidTables, strings.ToUpper(t))
		}
	}
	for table, cols := range columns {
		if !c.TableExists(table) {
			continue
		}
		for _, col := range cols {
			if !c.ColumnExists(table, col) {
				invalidColumns = append(invalidColumns, strings.ToUpper(table)+"."+strings.ToLower(col))
			}
		}
	}
	sort.Strings(invalidTables)
	sort.Strings(invalidColumns)
	return invalidTables, invalidColumns
}
