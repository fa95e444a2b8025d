package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/intellect4all/reldb/catalog"
	"github.com/intellect4all/reldb/schema"
	"github.com/intellect4all/reldb/table"
)

func main() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("Relational Storage Engine Demo")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
	fmt.Println("This demo walks the catalog, database, table and index layers:")
	fmt.Println("  • B+Tree primary-key index for point lookups")
	fmt.Println("  • B+Tree range index over a numeric column (price)")
	fmt.Println("  • Inverted index for full-text search")
	fmt.Println("  • R-Tree for nearest-neighbour search over an embedding column")
	fmt.Println()

	dataDir := "./data-demo"
	defer os.RemoveAll(dataDir)

	cat := catalog.NewCatalog(dataDir, nil)
	db, err := cat.OpenDatabase("demo-user", "shop")
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	tb := demoCreateTable(db)
	demoInsert(tb)
	demoPointAndRangeSearch(tb)
	demoFullTextSearch(tb)
	demoNearestNeighbour(tb)
	demoStats(tb)

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SUMMARY: Index Kind per Column")
	fmt.Println(strings.Repeat("=", 80))
	for _, col := range tb.Schema().Columns {
		if col.Index != schema.None {
			fmt.Printf("  %-12s -> %s\n", col.Name, col.Index)
		}
	}
}

func demoCreateTable(db *catalog.Database) *table.Table {
	fmt.Println("\n### Creating Table ###")
	fmt.Println(strings.Repeat("-", 40))

	s := schema.New("products")
	must(s.AddColumn(schema.Column{Name: "id", Type: schema.Int, PrimaryKey: true}))
	must(s.AddColumn(schema.Column{Name: "name", Type: schema.Varchar, MaxLen: 64}))
	must(s.AddColumn(schema.Column{Name: "price", Type: schema.Float}))
	must(s.AddColumn(schema.Column{Name: "description", Type: schema.Varchar, MaxLen: 500, Index: schema.FullText}))
	must(s.AddColumn(schema.Column{Name: "embedding", Type: schema.ArrayFloat, Index: schema.RTree}))
	s.SuggestIndexes()

	tb, err := db.CreateTable(s)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("✓ Created table \"products\": btree PK index, fulltext index on description, rtree index on embedding")
	return tb
}

func demoInsert(tb *table.Table) {
	fmt.Println("\n### Inserting Rows ###")
	fmt.Println(strings.Repeat("-", 40))

	rows := []map[string]any{
		{"id": int64(1), "name": "wireless mouse", "price": 19.99, "description": "a quiet wireless mouse for everyday office use", "embedding": []float64{0.1, 0.2}},
		{"id": int64(2), "name": "mechanical keyboard", "price": 89.99, "description": "a loud mechanical keyboard with brown switches", "embedding": []float64{0.9, 0.8}},
		{"id": int64(3), "name": "usb hub", "price": 14.50, "description": "a compact usb hub with four ports", "embedding": []float64{0.15, 0.25}},
		{"id": int64(4), "name": "noise cancelling headset", "price": 129.00, "description": "a wireless noise cancelling headset for office calls", "embedding": []float64{0.12, 0.22}},
	}
	for _, row := range rows {
		if _, err := tb.Insert(row); err != nil {
			log.Printf("insert %v failed: %v", row["id"], err)
			continue
		}
		fmt.Printf("  INSERT id=%v name=%q\n", row["id"], row["name"])
	}
}

func demoPointAndRangeSearch(tb *table.Table) {
	fmt.Println("\n### Point and Range Search ###")
	fmt.Println(strings.Repeat("-", 40))

	found, err := tb.Search("id", int64(2))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  Search(id=2) -> %d row(s)\n", len(found))
	for _, r := range found {
		fmt.Printf("    %s: %s\n", r["name"].Text, r["description"].Text)
	}

	inRange, err := tb.RangeSearch("price", 10.0, 50.0)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  RangeSearch(price 10..50) -> %d row(s)\n", len(inRange))
	for _, r := range inRange {
		fmt.Printf("    %s: $%.2f\n", r["name"].Text, r["price"].Float)
	}
}

func demoFullTextSearch(tb *table.Table) {
	fmt.Println("\n### Full-Text Search ###")
	fmt.Println(strings.Repeat("-", 40))

	hits, err := tb.FullTextSearch("description", "wireless office", 3)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  FullTextSearch(\"wireless office\") -> %d hit(s)\n", len(hits))
	for _, h := range hits {
		fmt.Printf("    score=%.4f %s\n", h.Score, h.Row["name"].Text)
	}
}

func demoNearestNeighbour(tb *table.Table) {
	fmt.Println("\n### Nearest Neighbour Search ###")
	fmt.Println(strings.Repeat("-", 40))

	neighbours, err := tb.KNN("embedding", []float64{0.1, 0.2}, 2)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  KNN(embedding near [0.1 0.2], k=2) -> %d row(s)\n", len(neighbours))
	for _, r := range neighbours {
		fmt.Printf("    %s\n", r["name"].Text)
	}
}

func demoStats(tb *table.Table) {
	fmt.Println("\n### Query Stats ###")
	fmt.Println(strings.Repeat("-", 40))

	snap := tb.QueryStats()
	for name, count := range snap.Counters {
		fmt.Printf("  %-28s %d\n", name, count)
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
