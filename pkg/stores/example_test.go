package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/openfroyo/actiontracker/pkg/stores"
)

// ExampleSQLiteStore_SaveRun stores a run with its records and reads back
// the top-level failures.
func ExampleSQLiteStore_SaveRun() {
	store, err := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	run := &stores.Run{
		ID:        "run-001",
		Node:      "web-01",
		Status:    "failure",
		StartedAt: time.Now(),
	}
	records := []stores.ActionRecord{
		{ResourceType: "file", ResourceName: "/etc/motd", Identity: "file[/etc/motd]", Action: "create", Status: "failed", NestingLevel: 1},
		{ResourceType: "composite", ResourceName: "base", Identity: "composite[base]", Action: "converge", Status: "failed", NestingLevel: 0},
	}
	if err := store.SaveRun(ctx, run, records); err != nil {
		log.Fatal(err)
	}

	top, err := store.FilterActionRecords(ctx, "run-001", stores.RecordFilter{
		MaxNesting: 0,
		Statuses:   []string{"failed"},
	})
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range top {
		fmt.Println(r.Identity, r.Status)
	}
	// Output: composite[base] failed
}
