package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is the embedded core of the domain repositories. It holds the bound
// gorm handle; a repository's WithTx swaps it for the transaction handle so
// the same queries run inside or outside a transaction unchanged.
type Base struct {
	db *gorm.DB
}

// NewBase binds a Base to the given connection or transaction.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the bound handle carrying the supplied context.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
