package transaction

// The transaction package implements the transactional layer of mistkv: a
// percolator-style MVCC store where a client-coordinated transaction prewrites
// locks, commits or rolls back, and where any reader blocked by a leftover
// lock can resolve the owning transaction's status through its primary key.
//
// Note that there are two kinds of transactions in play: client transactions
// span multiple commands and multiple keys, and are coordinated by the client
// using locks kept in the store. mvcc transactions (MvccTxn in
// transaction/mvcc) are an implementation detail of this layer; they ensure
// that the reads and writes of a *single* command are applied atomically.
//
// *Locks* implement client transactions. Setting or checking a lock is
// lowered to writing or reading a key and value in the store.
//
// *Latches* implement mvcc transactions and are not visible to the client.
// They are stored outside the underlying storage (or equivalently, you can
// think of every key having its own latch). See the latches package for
// details.
//
// Within this package, `commands` lowers requests to mvcc transactions and
// runs them through the Scheduler. `mvcc` contains the core: timestamps, lock
// and write records, the transaction-status resolver and the insert
// constraint checker.
//
// ## Encoding user key/values
//
// The mvcc strategy is essentially to store all data (committed and
// uncommitted) at every point in time. If we store a value for a key, then
// store another value (a logical overwrite) at a later time, both values are
// preserved in the underlying storage.
//
// This is implemented by encoding user keys with their timestamps to make an
// encoded key (see EncodeKey in mvcc). The `default` CF maps keys encoded
// with their transaction's start timestamp to values.
//
// Locking a key means writing into the `lock` CF. In this CF we use the user
// key, not the encoded key, so that a key is locked for all timestamps. The
// value holds the transaction's primary key, kind, start timestamp, ttl and
// the metadata the status resolver needs (min_commit_ts, for_update_ts,
// async-commit flag). See mvcc/lock.go.
//
// The status of values is stored in the `write` CF. Here keys encoded with
// their commit timestamps map to a record of the transaction's start
// timestamp and the kind of write ('put', 'delete', 'lock', or 'rollback').
// For transactions which are rolled back, the start timestamp is used as the
// commit timestamp in the encoded key; a rollback landing on another
// transaction's commit timestamp is folded into that record instead.
