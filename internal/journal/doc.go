// Package journal is the hub's append-only event log.
//
// Every action execution, script run, schedule firing, device reconnect and
// line of system-command output is appended as an Entry. The log is for
// operators reading history; nothing in the hub reads it back to make
// decisions.
//
//	repo := journal.NewSQLiteRepository(db.Sqlx())
//	j := journal.New(repo)
//	j.SetLogger(log)
//	j.Record(ctx, journal.OriginAction, "porch on", "set_switch porch/1 ok")
//
// Record never fails the caller: a failed write is logged and dropped.
package journal
