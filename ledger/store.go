package ledger

// Store is the append-only persistence contract for ledger entries.
// Append is the only mutation; there is no update or delete. ReadAll
// makes no ordering promise: multiple entries may share a date and
// the medium may return them in any order. All sorting for queries
// happens in the resolver.
type Store interface {
	Append(portfolioID string, e Entry) error
	ReadAll(portfolioID string) ([]Entry, error)
}
