package domain

// Bulk admin actions
const (
	BulkActionBlock   = "block"
	BulkActionUnblock = "unblock"
)

// List Exports for API
var BulkActions = []string{
	BulkActionBlock,
	BulkActionUnblock,
}
