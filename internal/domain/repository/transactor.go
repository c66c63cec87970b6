package repository

import "context"

// Transactor runs fn inside one database transaction. Repository calls made with
// the context passed to fn join that transaction; nested calls reuse it.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
