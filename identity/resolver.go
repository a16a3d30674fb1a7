//go:generate go run go.uber.org/mock/mockgen -source=resolver.go -destination=../mocks/mock_resolver.go -package=mocks
package identity

import (
	"chatline/domain"
	"context"
)

// IIdentityResolver is the narrow view of the external identity
// directory: phone number in, account out. Errors other than
// errors.ErrUnknownIdentity are upstream faults.
type IIdentityResolver interface {
	Resolve(ctx context.Context, phone string) (domain.Identity, error)
	UpdateDisplayName(ctx context.Context, phone, name string) error
}
