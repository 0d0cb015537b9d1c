package user

import (
	"context"
	"fmt"
	"sync"

	"github.com/zhouzirui/user-api/backend/internal/logger"
	"github.com/zhouzirui/user-api/backend/internal/model/user"
	"github.com/zhouzirui/user-api/backend/internal/service/events"
)

// Service implements the user operations as load, change, save over the
// whole collection. Mutations are serialized so that concurrent requests
// cannot lose updates or hand out the same id twice.
type Service struct {
	mu     sync.Mutex
	store  user.Store
	events events.Publisher
	log    *logger.Logger
}

// NewService wires a Service to its store. publisher may be nil.
func NewService(store user.Store, publisher events.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:  store,
		events: publisher,
		log:    log.With("component", "user-service"),
	}
}

// List returns every user in insertion order.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	users, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	if users == nil {
		users = []user.User{}
	}
	return users, nil
}

// Get returns the user with id or user.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (user.User, error) {
	users, err := s.store.Load(ctx)
	if err != nil {
		return user.User{}, fmt.Errorf("load users: %w", err)
	}

	idx := user.IndexOf(users, id)
	if idx < 0 {
		return user.User{}, user.ErrNotFound
	}
	return users[idx], nil
}

// Create appends a new user and assigns it the next free id.
func (s *Service) Create(ctx context.Context, in user.Input) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.store.Load(ctx)
	if err != nil {
		return user.User{}, fmt.Errorf("load users: %w", err)
	}

	created := user.User{
		ID:    user.NextID(users),
		Name:  in.Name,
		Email: in.Email,
	}
	users = append(users, created)

	if err := s.store.Save(ctx, users); err != nil {
		return user.User{}, fmt.Errorf("save users: %w", err)
	}

	s.log.Debug("user created", "id", created.ID)
	s.publish(events.UserCreated, created)
	return created, nil
}

// Update applies patch to the user with id. Fields that are absent or empty
// in the patch keep their current value.
func (s *Service) Update(ctx context.Context, id int64, patch user.Patch) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.store.Load(ctx)
	if err != nil {
		return user.User{}, fmt.Errorf("load users: %w", err)
	}

	idx := user.IndexOf(users, id)
	if idx < 0 {
		return user.User{}, user.ErrNotFound
	}
	users[idx] = patch.Apply(users[idx])

	if err := s.store.Save(ctx, users); err != nil {
		return user.User{}, fmt.Errorf("save users: %w", err)
	}

	updated := users[idx]
	s.log.Debug("user updated", "id", updated.ID)
	s.publish(events.UserUpdated, updated)
	return updated, nil
}

// Delete removes the user with id and returns the removed record.
func (s *Service) Delete(ctx context.Context, id int64) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.store.Load(ctx)
	if err != nil {
		return user.User{}, fmt.Errorf("load users: %w", err)
	}

	idx := user.IndexOf(users, id)
	if idx < 0 {
		return user.User{}, user.ErrNotFound
	}
	deleted := users[idx]
	users = append(users[:idx], users[idx+1:]...)

	if err := s.store.Save(ctx, users); err != nil {
		return user.User{}, fmt.Errorf("save users: %w", err)
	}

	s.log.Debug("user deleted", "id", deleted.ID)
	s.publish(events.UserDeleted, deleted)
	return deleted, nil
}

func (s *Service) publish(t events.Type, u user.User) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.NewEvent(t, &u))
}
