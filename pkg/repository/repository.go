package repository

import (
	"context"

	"github.com/eresearchbill/reckon/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a thin generic store over gorm used by domain services.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Save(ctx context.Context, resource *T) error
	Count(ctx context.Context, query *T) (int64, error)

	// GetOrCreate resolves resource by its unique key fields. The key
	// struct must set only non-zero unique-key columns. When the insert
	// races a concurrent creator, the uniqueness constraint of the store
	// decides the winner and the loser re-fetches; the bool result
	// reports whether this call created the row.
	GetOrCreate(ctx context.Context, key *T, resource *T) (*T, bool, error)
}
