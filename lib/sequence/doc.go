/*
Package sequence implements a persistent FIFO queue on top of a
linkedmap.LinkedMap[int64, T].

Every appended item is stored under the next sequence number, starting at 1
(or after the greatest key of a map that already holds items). Items are read
in one of two modes:

  - ModeDirect: every Peek and Pop is a point lookup of the next sequence number.
  - ModeCursor: an iterator over the map is advanced. The queue enters this mode
    when the backlog grows beyond Options.IteratorModeDistance and returns to
    ModeDirect when the backlog is empty.

Map iterators do not see writes made after they were opened. When items are
added while the cursor is open the cursor is marked dirty, and a dirty cursor
that ran dry is reopened at the next unread sequence number.

Consumed items are deleted lazily with RemoveRange once more than
Options.DiscardThreshold of them have accumulated. Close deletes the rest.

Thread-safety: a Sequence is not safe for concurrent use, wrap it with
Synchronized to share it.
*/
package sequence
