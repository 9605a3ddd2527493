package users

import "context"

// Repository persists user accounts. Returned users carry their role with its
// permission set. Lookups that miss return shared.ErrNotFound and email
// collisions return shared.ErrAlreadyExists.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, in NewUser) (User, error)
	Update(ctx context.Context, user User) (User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]User, error)
	CountByRole(ctx context.Context, roleID int64) (int, error)
}
