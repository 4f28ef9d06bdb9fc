package user

import (
	"context"
	"sync"
	"time"

	"github.com/wichananm65/urbancart-backend/internal/apperror"
)

var (
	ErrNotFound           = apperror.NotFound("user not found")
	ErrInvalidCredentials = apperror.Unauthorized("invalid email or password")
	ErrEmailExists        = apperror.Conflict("email already exists")
	ErrInactive           = apperror.Forbidden("account is deactivated")
)

type Repository interface {
	GetByID(ctx context.Context, id int) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) (User, error)
	SetActive(ctx context.Context, id int, active bool) error
}

type InMemoryRepository struct {
	mu     sync.RWMutex
	users  []User
	nextID int
}

func NewInMemoryRepository(seed []User) *InMemoryRepository {
	repo := &InMemoryRepository{
		users:  make([]User, 0, len(seed)),
		nextID: 1,
	}

	maxID := 0
	for _, u := range seed {
		repo.users = append(repo.users, u)
		if u.ID > maxID {
			maxID = u.ID
		}
	}

	repo.nextID = maxID + 1
	return repo
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *InMemoryRepository) GetByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *InMemoryRepository) Create(_ context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == u.Email {
			return User{}, ErrEmailExists
		}
	}
	u.ID = r.nextID
	r.nextID++
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.users = append(r.users, u)
	return u, nil
}

func (r *InMemoryRepository) SetActive(_ context.Context, id int, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		if r.users[i].ID == id {
			r.users[i].IsActive = active
			return nil
		}
	}
	return ErrNotFound
}
