// Package storage provides the pluggable durability layer behind the
// coordinator's task store.
//
// The coordinator keeps all live state in memory; durability is a
// write-through journal of task snapshots into a Store. Any backend that
// satisfies the small key-value contract below can serve:
//
//	┌──────────────────────────────┐
//	│   coordinator.TaskStore      │
//	│   (in-memory, authoritative) │
//	└──────────────┬───────────────┘
//	               │ Put("task:<id>", json)
//	               ▼
//	┌──────────────────────────────┐
//	│        storage.Store         │
//	└──────────────┬───────────────┘
//	    ┌──────────┼──────────┐
//	    ▼          ▼          ▼
//	 Memory      SQLite     Redis
//
// MemoryStore is the default and is what tests use. SQLiteStore
// (modernc.org/sqlite, no cgo) keeps snapshots in one kv table on local
// disk. RedisStore keeps them under a namespace prefix so several
// coordinators can share a database.
//
// Every implementation is safe for concurrent use, returns ErrKeyNotFound
// for missing keys, treats Delete of a missing key as success, and returns
// List results sorted.
package storage
