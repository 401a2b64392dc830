/*
Package engine_util provides a set of helpers for working with the badger
key/value store.

The storage layer keeps three logical column families (see the Cf* constants),
which badger does not support natively. We simulate them by prefixing every
key with `${cf}_`. The helpers here hide that prefixing:
  * engine_util.Get/Put/DeleteCF operate on a single CF entry.
  * engine_util.WriteBatch batches updates across CFs for one atomic write.
  * engine_util.NewCFIterator iterates one CF, yielding un-prefixed keys.
*/
package engine_util
