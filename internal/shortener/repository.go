package shortener

import "context"

// Repository is the durable store contract for short links.
type Repository interface {
	GetByCode(ctx context.Context, code Code) (*ShortLink, error)
	GetByID(ctx context.Context, id int64) (*ShortLink, error)

	// FindByOwnerURL returns the link the owner already created for longURL, or ErrNotFound.
	FindByOwnerURL(ctx context.Context, ownerID int64, longURL string) (*ShortLink, error)
	CodeExists(ctx context.Context, code Code) (bool, error)

	// Create inserts the link together with its categories in one transaction and fills
	// in ID and CreatedAt. It returns ErrCodeTaken or ErrDuplicateLink on unique violations.
	Create(ctx context.Context, link *ShortLink) error
	SetActive(ctx context.Context, code Code, active bool) (*ShortLink, error)

	// TopLinks lists active links ordered by click count, most clicked first.
	TopLinks(ctx context.Context, limit int) ([]*ShortLink, error)
}
