// Package stores persists the run history in SQLite.
//
// Each applied plan becomes a run record with its summary and progress,
// one operation record per attempted remote call, and an append-only event
// log. The schema is managed with embedded golang-migrate migrations and
// the database is opened through the pure-Go modernc.org/sqlite driver.
//
// A Recorder is registered as an executor sink and fills the store while a
// reconciler applies plans.
package stores
