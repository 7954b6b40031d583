package row

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/ValentinKolb/kvcollections/lib/cassandra"
	"github.com/cockroachdb/errors"
)

// parseCell parses "column:timestamp:payload". The payload may contain colons.
func parseCell(s string) (cassandra.Cell[string], error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return nil, errors.Newf("invalid cell %q, expected column:timestamp:payload", s)
	}
	column, err := parseColumn(parts[0])
	if err != nil {
		return nil, err
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timestamp in cell %q", s)
	}
	return cassandra.RegularCell[string]{Index: column, Timestamp: ts, Payload: parts[2]}, nil
}

// parseExpiringCell parses "column:timestamp:ttl:payload"
func parseExpiringCell(s string) (cassandra.Cell[string], error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 {
		return nil, errors.Newf("invalid expiring cell %q, expected column:timestamp:ttl:payload", s)
	}
	column, err := parseColumn(parts[0])
	if err != nil {
		return nil, err
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timestamp in cell %q", s)
	}
	ttl, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid ttl in cell %q", s)
	}
	return cassandra.ExpiringCell[string]{Index: column, Timestamp: ts, TTL: int32(ttl), Payload: parts[3]}, nil
}

// parseTombstoneCell parses "column:localDeletionTime:markedForDeleteAt"
func parseTombstoneCell(s string) (cassandra.Cell[string], error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, errors.Newf("invalid tombstone %q, expected column:ldt:mfda", s)
	}
	column, err := parseColumn(parts[0])
	if err != nil {
		return nil, err
	}
	ldt, mfda, err := parseDeletion(parts[1], parts[2])
	if err != nil {
		return nil, errors.Wrapf(err, "invalid tombstone %q", s)
	}
	return cassandra.TombstoneCell[string]{Index: column, LocalDeletionTime: ldt, MarkedForDeleteAt: mfda}, nil
}

// parseRowTombstone parses "localDeletionTime:markedForDeleteAt"
func parseRowTombstone(s string) (int32, int64, error) {
	ldt, mfda, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, errors.Newf("invalid row tombstone %q, expected ldt:mfda", s)
	}
	return parseDeletion(ldt, mfda)
}

func parseColumn(s string) (int8, error) {
	n, err := strconv.ParseInt(s, 10, 8)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid column %q (-128..127)", s)
	}
	return int8(n), nil
}

func parseDeletion(ldt, mfda string) (int32, int64, error) {
	l, err := strconv.ParseInt(ldt, 10, 32)
	if err != nil {
		return 0, 0, err
	}
	m, err := strconv.ParseInt(mfda, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return int32(l), m, nil
}

// sortCells orders cells by column. Encoded rows keep their cells sorted.
func sortCells(cells []cassandra.Cell[string]) []cassandra.Cell[string] {
	slices.SortStableFunc(cells, func(a, b cassandra.Cell[string]) int {
		return cmp.Compare(a.Column(), b.Column())
	})
	return cells
}
