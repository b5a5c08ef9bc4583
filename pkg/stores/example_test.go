package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/smkit/smkit/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path: stores.MemoryPath,
	})
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

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_CreateSecret shows that writing a secret moves the
// organization revision forward.
func ExampleSQLiteStore_CreateSecret() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: stores.MemoryPath})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	org := &stores.Organization{ID: uuid.New(), Name: "acme", RevisionDate: start, CreatedAt: start}
	_ = store.CreateOrganization(ctx, org)

	written := start.Add(time.Hour)
	err := store.CreateSecret(ctx, &stores.Secret{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Key:            "API_KEY",
		Value:          []byte("sealed"),
		Note:           []byte("sealed"),
		CreatedAt:      written,
		RevisionDate:   written,
	})
	if err != nil {
		log.Fatal(err)
	}

	rev, _ := store.GetOrganizationRevision(ctx, org.ID)
	fmt.Println(rev.Format(time.RFC3339))
	// Output: 2024-01-01T01:00:00Z
}
