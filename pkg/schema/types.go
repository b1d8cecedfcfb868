// Package schema holds the in-memory catalog of the hospital database:
// tables, columns, PHI markings, and the logical join graph. The catalog is
// built once at startup, immutable afterwards, and consulted by the SQL guard
// and the prompt builder.
package schema

import "strings"

// Join confidence levels, ordered high > medium > heuristic.
const (
	ConfidenceHigh      = "high"
	ConfidenceMedium    = "medium"
	ConfidenceHeuristic = "heuristic"
)

// Relationship kinds carried on join edges.
const (
	RelUniversal     = "universal"
	RelTableMatch    = "table match"
	RelWithinFamily  = "within_family"
	RelHeuristicHome = "heuristic_home"
)

// phiColumnNames is the closed set of column names that always count as PHI,
// matched by exact lowercase name. A catalog source may mark additional
// columns PHI, but nothing removes a name from this set.
var phiColumnNames = map[string]struct{}{
	// patient identifiers
	"hn": {}, "cid": {}, "passport": {}, "mrn": {}, "national_id": {}, "idcard": {}, "pid": {},
	// person names
	"fname": {}, "lname": {}, "mname": {}, "pname": {}, "name": {}, "fullname": {},
	"firstname": {}, "lastname": {}, "middlename": {}, "prename": {},
	// contact details
	"phone": {}, "mobile": {}, "tel": {}, "telephone": {}, "email": {}, "fax": {},
	// address components
	"address": {}, "addrpart": {}, "moo": {}, "road": {}, "tambon": {}, "amphur": {},
	"province": {}, "zipcode": {}, "postcode": {}, "homeaddr": {}, "workaddr": {},
	// dates of birth
	"dob": {}, "birthdate": {}, "birthday": {}, "bdate": {},
	// secondary quasi-identifiers
	"ssn": {}, "social_security": {}, "insurance_id": {}, "member_id": {},
}

// universalKeys are the cross-family identifiers (patient, admission, visit)
// that appear in many tables and bridge table families.
var universalKeys = map[string]struct{}{
	"hn": {}, "an": {}, "vn": {},
}

// IsPHIName reports whether the lowercase form of name is in the fixed PHI set.
func IsPHIName(name string) bool {
	_, ok := phiColumnNames[strings.ToLower(name)]
	return ok
}

// IsUniversalKey reports whether the lowercase form of name is a cross-family
// join key.
func IsUniversalKey(name string) bool {
	_, ok := universalKeys[strings.ToLower(name)]
	return ok
}

// PHINames returns the fixed PHI name set as a sorted-independent slice copy.
func PHINames() []string {
	out := make([]string, 0, len(phiColumnNames))
	for n := range phiColumnNames {
		out = append(out, n)
	}
	return out
}

// FKTarget is one foreign-key destination of a column.
type FKTarget struct {
	Table      string `json:"table"`
	Column     string `json:"column"`
	Confidence string `json:"confidence"`
	RelType    string `json:"rel_type"`
}

// JoinPeer is a table.column a column is known to join against, without the
// confidence metadata of a full FK target.
type JoinPeer struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Column is one column of a catalog table. Name is lowercase canonical.
// IsPHI is frozen at load time and never recomputed during validation.
type Column struct {
	Name         string     `json:"name"`
	DatabaseType string     `json:"database_type"`
	BaseType     string     `json:"base_type"`
	Comment      string     `json:"comment,omitempty"`
	IsPK         bool       `json:"is_pk"`
	PKConfidence string     `json:"pk_confidence,omitempty"`
	PKReason     string     `json:"pk_reason,omitempty"`
	IsFK         bool       `json:"is_fk"`
	FKTargets    []FKTarget `json:"fk_targets,omitempty"`
	JoinPeers    []JoinPeer `json:"join_peers,omitempty"`
	JoinWarning  string     `json:"join_warning,omitempty"`
	IsPHI        bool       `json:"is_phi"`
}

// Table is one catalog table. Name is uppercase canonical; Columns is keyed
// by lowercase column name.
type Table struct {
	Name        string             `json:"name"`
	Comment     string             `json:"comment,omitempty"`
	ColumnCount int                `json:"column_count"`
	Columns     map[string]*Column `json:"columns"`
	Family      string             `json:"family,omitempty"`
}

// JoinEdge is a directed logical relationship between two columns. Path
// search treats edges as bidirectional by synthesizing the reverse.
type JoinEdge struct {
	FromTable   string `json:"from_table"`
	FromColumn  string `json:"from_column"`
	ToTable     string `json:"to_table"`
	ToColumn    string `json:"to_column"`
	Confidence  string `json:"confidence"`
	RelType     string `json:"rel_type"`
	Source      string `json:"source,omitempty"`
	WarningFrom string `json:"warning_from,omitempty"`
	WarningTo   string `json:"warning_to,omitempty"`
}

// Reversed returns the edge with endpoints swapped. Warnings follow their
// endpoints.
func (e JoinEdge) Reversed() JoinEdge {
	return JoinEdge{
		FromTable:   e.ToTable,
		FromColumn:  e.ToColumn,
		ToTable:     e.FromTable,
		ToColumn:    e.FromColumn,
		Confidence:  e.Confidence,
		RelType:     e.RelType,
		Source:      e.Source,
		WarningFrom: e.WarningTo,
		WarningTo:   e.WarningFrom,
	}
}

// HasWarning reports whether either endpoint carries a warning.
func (e JoinEdge) HasWarning() bool {
	return e.WarningFrom != "" || e.WarningTo != ""
}

// Catalog is the single source of truth for schema existence, PHI status and
// relationship structure. Immutable after construction; published through an
// atomic Handle.
type Catalog struct {
	Tables    map[string]*Table   `json:"tables"`
	JoinEdges []JoinEdge          `json:"join_edges"`
	Families  map[string][]string `json:"families"`
}
