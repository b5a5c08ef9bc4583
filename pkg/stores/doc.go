// Package stores provides the persistence layer of the reference engine.
// It keeps organizations, access tokens, projects, encrypted secrets, the
// audit trail and a small key/value meta table in SQLite, with schema
// migrations embedded in the binary.
//
// Secret values and notes are stored as opaque ciphertext; encryption is the
// engine's concern.
//
// # Example
//
//	store, err := stores.NewSQLiteStore(stores.Config{Path: "/var/lib/smkit/engine.db"})
//	if err != nil {
//		return err
//	}
//	if err := store.Init(ctx); err != nil {
//		return err
//	}
//	if err := store.Migrate(ctx); err != nil {
//		return err
//	}
//	defer store.Close()
package stores
