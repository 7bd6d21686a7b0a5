// Package simplereview provides the lifecycle and coherence engine behind a
// moderated script gallery.
//
// Users submit scripts (a JSON document plus up to three images). A script
// starts out pending and only becomes publicly visible once an administrator
// approves it. The Service interface owns the state machine, the engagement
// counters (likes, favorites, downloads) and upload acceptance.
//
// Consistency Model
//
// Every transition runs inside one Store transaction. Derived views are
// served through a Cache and invalidated by bucket prefix strictly after
// the transaction commits. A failed invalidation is logged and never fails
// the request: the Store is the system of record, the Cache and the
// ContentStore paths are reconstructible.
//
// Implementations of the Store (memory, Postgres), the ContentStore (memory,
// filesystem, S3), the Cache and the background TaskQueue live in
// subpackages.
package simplereview
