package schema

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"
)

// CSV inputs produced by the offline schema analysis.
const (
	tablesFile  = "frequent_table.csv"
	columnsFile = "frequent_column_enriched.csv"
	edgesFile   = "join_edges.csv"
)

// Table-name prefixes with a known grouping, checked before the generic
// leading-alpha fallback. Longest prefix wins.
var knownFamilyPrefixes = []string{
	"opitemrece", "appoint", "doctor", "income", "clinic", "death",
	"refer", "ovst", "rcpt", "drug", "ward", "xray", "opd", "ipt",
	"lab", "er", "pt", "an",
}

// phiNamePattern is the secondary net over column names the fixed set misses.
// It may add a PHI marking; it never clears one.
var phiNamePattern = regexp.MustCompile(`(?i)(^|_)(name|fname|lname|phone|mobile|email|addr|address|birth)($|_|[0-9])`)

var fkTargetPattern = regexp.MustCompile(`^([A-Za-z0-9_]+)\.([A-Za-z0-9_]+)(?:\(([^:()]*?)(?::([^()]*))?\))?$`)

// LoadCatalogCSV builds a Catalog from the three CSV files in dir:
// frequent_table.csv, frequent_column_enriched.csv and join_edges.csv.
func LoadCatalogCSV(dir string, logger *zap.Logger) (*Catalog, error) {
	cat := &Catalog{
		Tables:   make(map[string]*Table),
		Families: make(map[string][]string),
	}

	header, rows, err := readCSV(filepath.Join(dir, tablesFile))
	if err != nil {
		return nil, fmt.Errorf("loading tables: %w", err)
	}
	for _, row := range rows {
		name := strings.ToUpper(field(row, header, "table_name"))
		if name == "" {
			continue
		}
		count, _ := strconv.Atoi(field(row, header, "column_count"))
		cat.Tables[name] = &Table{
			Name:        name,
			Comment:     field(row, header, "comment"),
			ColumnCount: count,
			Columns:     make(map[string]*Column),
			Family:      inferFamily(name),
		}
	}

	header, rows, err = readCSV(filepath.Join(dir, columnsFile))
	if err != nil {
		return nil, fmt.Errorf("loading columns: %w", err)
	}
	for _, row := range rows {
		tableName := strings.ToUpper(field(row, header, "table_name"))
		colName := strings.ToLower(field(row, header, "column_name"))
		if tableName == "" || colName == "" {
			continue
		}
		table, ok := cat.Tables[tableName]
		if !ok {
			// Column rows for tables absent from the tables file still
			// produce a usable table entry.
			table = &Table{
				Name:    tableName,
				Columns: make(map[string]*Column),
				Family:  inferFamily(tableName),
			}
			cat.Tables[tableName] = table
		}
		col := &Column{
			Name:         colName,
			DatabaseType: field(row, header, "database_type"),
			BaseType:     field(row, header, "base_type"),
			Comment:      field(row, header, "comment"),
			IsPK:         field(row, header, "is_pk") == "1",
			PKConfidence: field(row, header, "pk_confidence"),
			PKReason:     field(row, header, "pk_reason"),
			IsFK:         field(row, header, "is_fk") == "1",
			FKTargets:    parseFKTargets(field(row, header, "fk_targets"), tableName, cat),
			JoinPeers:    parseJoinPeers(field(row, header, "join_peers")),
			JoinWarning:  field(row, header, "join_warning"),
		}
		col.IsPHI = IsPHIName(colName) || phiNamePattern.MatchString(colName)
		table.Columns[colName] = col
	}

	header, rows, err = readCSV(filepath.Join(dir, edgesFile))
	if err != nil {
		return nil, fmt.Errorf("loading join edges: %w", err)
	}
	for _, row := range rows {
		edge := JoinEdge{
			FromTable:   strings.ToUpper(field(row, header, "from_table")),
			FromColumn:  strings.ToLower(field(row, header, "from_column")),
			ToTable:     strings.ToUpper(field(row, header, "to_table")),
			ToColumn:    strings.ToLower(field(row, header, "to_column")),
			Confidence:  strings.ToLower(field(row, header, "confidence")),
			RelType:     strings.ToLower(field(row, header, "rel_type")),
			Source:      field(row, header, "source"),
			WarningFrom: field(row, header, "warnings_from"),
			WarningTo:   field(row, header, "warnings_to"),
		}
		if edge.FromTable == "" || edge.ToTable == "" {
			continue
		}
		if edge.Confidence == "" {
			edge.Confidence = ConfidenceHeuristic
		}
		cat.JoinEdges = append(cat.JoinEdges, edge)
	}

	rebuildFamilies(cat)

	if logger != nil {
		logger.Info("schema catalog loaded",
			zap.Int("tables", len(cat.Tables)),
			zap.Int("join_edges", len(cat.JoinEdges)),
			zap.Int("families", len(cat.Families)))
	}
	return cat, nil
}

// LoadKnowledge reads a catalog previously serialized by SaveKnowledge.
func LoadKnowledge(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema knowledge: %w", err)
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing schema knowledge: %w", err)
	}
	if cat.Tables == nil {
		cat.Tables = make(map[string]*Table)
	}
	if cat.Families == nil {
		rebuildFamilies(&cat)
	}
	return &cat, nil
}

// SaveKnowledge serializes the catalog to JSON. Loading the output yields a
// catalog equal to the original up to map iteration order.
func SaveKnowledge(cat *Catalog, path string) error {
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding schema knowledge: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing schema knowledge: %w", err)
	}
	return nil
}

func readCSV(path string) (map[string]int, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: empty file", filepath.Base(path))
	}
	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return header, records[1:], nil
}

func field(row []string, header map[string]int, name string) string {
	i, ok := header[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseFKTargets parses a semicolon list of TABLE.column(confidence:rel_type)
// entries. Entries without a rel_type are classified from the column and
// table names.
func parseFKTargets(s, fromTable string, cat *Catalog) []FKTarget {
	if s == "" {
		return nil
	}
	var out []FKTarget
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		m := fkTargetPattern.FindStringSubmatch(item)
		if m == nil {
			continue
		}
		t := FKTarget{
			Table:      strings.ToUpper(m[1]),
			Column:     strings.ToLower(m[2]),
			Confidence: strings.ToLower(strings.TrimSpace(m[3])),
			RelType:    strings.ToLower(strings.TrimSpace(m[4])),
		}
		if t.Confidence == "" {
			t.Confidence = ConfidenceHeuristic
		}
		if t.RelType == "" {
			t.RelType = classifyRelType(fromTable, t.Table, t.Column)
		}
		out = append(out, t)
	}
	return out
}

func parseJoinPeers(s string) []JoinPeer {
	if s == "" {
		return nil
	}
	var out []JoinPeer
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ".", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, JoinPeer{
			Table:  strings.ToUpper(parts[0]),
			Column: strings.ToLower(parts[1]),
		})
	}
	return out
}

// classifyRelType derives a relationship kind when the source omits one.
func classifyRelType(fromTable, toTable, column string) string {
	if IsUniversalKey(column) {
		return RelUniversal
	}
	lowTo := strings.ToLower(toTable)
	lowCol := strings.ToLower(column)
	if lowCol == lowTo || inflection.Singular(lowCol) == inflection.Singular(lowTo) {
		return RelTableMatch
	}
	if inferFamily(fromTable) == inferFamily(toTable) {
		return RelWithinFamily
	}
	return ""
}

// inferFamily groups a table under a prefix. Known prefixes win; otherwise
// the leading alpha run capped at four characters.
func inferFamily(table string) string {
	low := strings.ToLower(table)
	for _, p := range knownFamilyPrefixes {
		if strings.HasPrefix(low, p) {
			return p
		}
	}
	run := 0
	for _, r := range low {
		if r < 'a' || r > 'z' {
			break
		}
		run++
		if run == 4 {
			break
		}
	}
	if run < 2 {
		return low
	}
	return low[:run]
}

func rebuildFamilies(cat *Catalog) {
	cat.Families = make(map[string][]string)
	for name, t := range cat.Tables {
		fam := t.Family
		if fam == "" {
			fam = inferFamily(name)
			t.Family = fam
		}
		cat.Families[fam] = append(cat.Families[fam], name)
	}
	for _, tables := range cat.Families {
		sort.Strings(tables)
	}
}
