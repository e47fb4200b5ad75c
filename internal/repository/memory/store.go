package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ai-marketchat-be/internal/entity"
	"ai-marketchat-be/internal/repository/contract"
	"ai-marketchat-be/internal/repository/specification"
	"ai-marketchat-be/internal/repository/unitofwork"
)

// Store keeps conversations in process memory. It is used for local runs without Postgres and
// as the store behind service tests.
type Store struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	conversations map[string]entity.Conversation
	messages      []entity.Message
}

func (s *state) clone() *state {
	out := &state{
		conversations: make(map[string]entity.Conversation, len(s.conversations)),
		messages:      make([]entity.Message, len(s.messages)),
	}
	for k, v := range s.conversations {
		out.conversations[k] = v
	}
	copy(out.messages, s.messages)
	return out
}

func NewStore() *Store {
	return &Store{state: &state{conversations: map[string]entity.Conversation{}}}
}

// RepositoryFactory hands out units of work over one Store.
type RepositoryFactory struct {
	store *Store
	// FailCommit makes every Commit fail; tests use it to exercise rollback paths.
	FailCommit bool
}

func NewRepositoryFactory(store *Store) *RepositoryFactory {
	return &RepositoryFactory{store: store}
}

func (f *RepositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &UnitOfWork{store: f.store, failCommit: f.FailCommit}
}

// write is one staged mutation. It is applied to the private copy when issued and replayed
// onto the shared state at Commit.
type write func(s *state) error

// UnitOfWork stages writes on a private copy of the state between Begin and Commit.
type UnitOfWork struct {
	store      *Store
	tx         *state
	log        []write
	failCommit bool
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	u.store.mu.Lock()
	u.tx = u.store.state.clone()
	u.store.mu.Unlock()
	u.log = nil
	return nil
}

// Commit replays the staged writes onto the current shared state, so transactions that
// overlapped this one keep their own commits. A write that no longer applies aborts the
// whole commit.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	log := u.log
	u.tx, u.log = nil, nil
	if u.failCommit {
		return fmt.Errorf("commit failed")
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	next := u.store.state.clone()
	for _, w := range log {
		if err := w(next); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	u.store.state = next
	return nil
}

func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	u.tx, u.log = nil, nil
	return nil
}

// with runs a read against the transaction copy, or the shared state under lock.
func (u *UnitOfWork) with(fn func(s *state)) {
	if u.tx != nil {
		fn(u.tx)
		return
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	fn(u.store.state)
}

// apply runs a write against the transaction copy and logs it, or against the shared state
// under lock.
func (u *UnitOfWork) apply(w write) error {
	if u.tx != nil {
		if err := w(u.tx); err != nil {
			return err
		}
		u.log = append(u.log, w)
		return nil
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	return w(u.store.state)
}

func (u *UnitOfWork) ConversationRepository() contract.ConversationRepository {
	return &conversationRepository{uow: u}
}

func (u *UnitOfWork) MessageRepository() contract.MessageRepository {
	return &messageRepository{uow: u}
}

// query is the subset of specifications the in-memory repositories understand.
type query struct {
	conversationKey *string
	conversationID  *string
	role            *string
	orderField      string
	desc            bool
	limit           int
	offset          int
}

func parse(specs []specification.Specification) (query, error) {
	q := query{limit: -1}
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByConversationKey:
			id := s.ID
			q.conversationKey = &id
		case specification.ByConversationID:
			id := s.ConversationID
			q.conversationID = &id
		case specification.ByRole:
			role := s.Role
			q.role = &role
		case specification.OrderBy:
			q.orderField, q.desc = s.Field, s.Desc
		case specification.Pagination:
			q.limit, q.offset = s.Limit, s.Offset
		default:
			return q, fmt.Errorf("memory store: unsupported specification %T", spec)
		}
	}
	return q, nil
}

func page[T any](items []T, q query) []T {
	if q.offset > 0 {
		if q.offset >= len(items) {
			return nil
		}
		items = items[q.offset:]
	}
	if q.limit >= 0 && len(items) > q.limit {
		items = items[:q.limit]
	}
	return items
}

type conversationRepository struct {
	uow *UnitOfWork
}

func (r *conversationRepository) Create(ctx context.Context, c *entity.Conversation) error {
	row := *c
	return r.uow.apply(func(s *state) error {
		if _, exists := s.conversations[row.Id]; exists {
			return fmt.Errorf("conversation %s already exists", row.Id)
		}
		s.conversations[row.Id] = row
		return nil
	})
}

func (r *conversationRepository) Update(ctx context.Context, c *entity.Conversation) error {
	row := *c
	return r.uow.apply(func(s *state) error {
		if _, exists := s.conversations[row.Id]; !exists {
			return fmt.Errorf("conversation %s does not exist", row.Id)
		}
		s.conversations[row.Id] = row
		return nil
	})
}

func (r *conversationRepository) Delete(ctx context.Context, id string) (int64, error) {
	var n int64
	r.uow.with(func(s *state) {
		if _, ok := s.conversations[id]; ok {
			n = 1
		}
	})
	err := r.uow.apply(func(s *state) error {
		delete(s.conversations, id)
		return nil
	})
	return n, err
}

func (r *conversationRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	all, err := r.FindAll(ctx, append(specs, specification.Pagination{Limit: 1})...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *conversationRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error) {
	q, err := parse(specs)
	if err != nil {
		return nil, err
	}

	var out []*entity.Conversation
	r.uow.with(func(s *state) {
		for _, c := range s.conversations {
			if q.conversationKey != nil && c.Id != *q.conversationKey {
				continue
			}
			c := c
			out = append(out, &c)
		}
	})

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CreatedAt, out[j].CreatedAt
		if q.orderField == "updated_at" {
			a, b = out[i].UpdatedAt, out[j].UpdatedAt
		}
		if a.Equal(b) {
			return out[i].Id < out[j].Id
		}
		if q.desc {
			return a.After(b)
		}
		return a.Before(b)
	})

	return page(out, q), nil
}

func (r *conversationRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

type messageRepository struct {
	uow *UnitOfWork
}

func (r *messageRepository) Create(ctx context.Context, m *entity.Message) error {
	return r.CreateBatch(ctx, []*entity.Message{m})
}

func (r *messageRepository) CreateBatch(ctx context.Context, messages []*entity.Message) error {
	rows := make([]entity.Message, len(messages))
	for i, m := range messages {
		rows[i] = *m
	}
	return r.uow.apply(func(s *state) error {
		for _, m := range rows {
			if _, ok := s.conversations[m.ConversationId]; !ok {
				return fmt.Errorf("conversation %s does not exist", m.ConversationId)
			}
		}
		s.messages = append(s.messages, rows...)
		return nil
	})
}

func (r *messageRepository) DeleteByConversationId(ctx context.Context, conversationId string) (int64, error) {
	var n int64
	r.uow.with(func(s *state) {
		for _, m := range s.messages {
			if m.ConversationId == conversationId {
				n++
			}
		}
	})
	err := r.uow.apply(func(s *state) error {
		kept := s.messages[:0:0]
		for _, m := range s.messages {
			if m.ConversationId != conversationId {
				kept = append(kept, m)
			}
		}
		s.messages = kept
		return nil
	})
	return n, err
}

func (r *messageRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error) {
	all, err := r.FindAll(ctx, append(specs, specification.Pagination{Limit: 1})...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *messageRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	q, err := parse(specs)
	if err != nil {
		return nil, err
	}

	var out []*entity.Message
	r.uow.with(func(s *state) {
		for _, m := range s.messages {
			if q.conversationID != nil && m.ConversationId != *q.conversationID {
				continue
			}
			if q.role != nil && m.Role != *q.role {
				continue
			}
			m := m
			out = append(out, &m)
		}
	})

	// insertion order breaks timestamp ties, as the serial key would in Postgres
	sort.SliceStable(out, func(i, j int) bool {
		if q.desc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if q.desc {
		// stable sort keeps ties in insertion order; reverse them so newest-inserted comes first
		for i := 0; i < len(out); {
			j := i + 1
			for j < len(out) && out[j].CreatedAt.Equal(out[i].CreatedAt) {
				j++
			}
			for a, b := i, j-1; a < b; a, b = a+1, b-1 {
				out[a], out[b] = out[b], out[a]
			}
			i = j
		}
	}

	return page(out, q), nil
}

func (r *messageRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}
