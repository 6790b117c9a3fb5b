// Package database provides SQLite connectivity for HearthView.
//
// The single consumer is the state-history recorder; schema setup lives
// with the recorder, this package only manages the connection:
//   - WAL mode for concurrent reads during writes
//   - Busy timeout to avoid lock contention errors
//   - 0600 file permissions on the database file
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "data/history.db", WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
package database
