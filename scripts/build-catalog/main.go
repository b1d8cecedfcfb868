// Command build-catalog turns the schema analysis CSV files into the
// schema_knowledge.json snapshot the server loads at startup, and prints a
// summary of what it built.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/kcmh-data/sqlbot-engine/pkg/schema"
)

func main() {
	schemaDir := flag.String("schema-dir", "schema", "directory holding the CSV inputs")
	out := flag.String("out", "schema/schema_knowledge.json", "output path for the knowledge JSON")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cat, err := schema.LoadCatalogCSV(*schemaDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading catalog: %v\n", err)
		os.Exit(1)
	}
	if err := schema.SaveKnowledge(cat, *out); err != nil {
		fmt.Fprintf(os.Stderr, "writing knowledge: %v\n", err)
		os.Exit(1)
	}

	printStats(cat)
	fmt.Printf("\nwrote %s\n", *out)
}

func printStats(cat *schema.Catalog) {
	families := make([]string, 0, len(cat.Families))
	for f := range cat.Families {
		families = append(families, f)
	}
	sort.Strings(families)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Family", "Tables", "Columns", "PHI Columns"})
	totalCols, totalPHI := 0, 0
	for _, fam := range families {
		cols, phi := 0, 0
		for _, name := range cat.Families[fam] {
			t := cat.GetTable(name)
			cols += len(t.Columns)
			phi += len(cat.PHIColumnsInTable(name))
		}
		totalCols += cols
		totalPHI += phi
		table.Append([]string{
			fam,
			strconv.Itoa(len(cat.Families[fam])),
			strconv.Itoa(cols),
			strconv.Itoa(phi),
		})
	}
	table.SetFooter([]string{
		"total",
		strconv.Itoa(len(cat.Tables)),
		strconv.Itoa(totalCols),
		strconv.Itoa(totalPHI),
	})
	table.Render()

	fmt.Printf("join edges: %d\n", len(cat.JoinEdges))
}
