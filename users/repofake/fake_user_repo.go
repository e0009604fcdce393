package fakeuserrepo

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jrsteele09/go-saml-sp/internal/errors"
	"github.com/jrsteele09/go-saml-sp/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users       map[string]*users.User
	emailIds    map[string]string // email to user id
	externalIds map[string]string // idp subject id to user id
	slugIds     map[string]string // slug to user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		emailIds:    make(map[string]string),
		externalIds: make(map[string]string),
		slugIds:     make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	if existing, ok := ur.users[user.ID]; ok {
		delete(ur.emailIds, existing.Email)
		delete(ur.externalIds, existing.ExternalID)
		delete(ur.slugIds, existing.Slug)
	}

	copied := *user
	ur.users[user.ID] = &copied
	if user.Email != "" {
		ur.emailIds[user.Email] = user.ID
	}
	if user.ExternalID != "" {
		ur.externalIds[user.ExternalID] = user.ID
	}
	if user.Slug != "" {
		ur.slugIds[user.Slug] = user.ID
	}
	return nil
}

func (ur *FakeUserRepo) Delete(id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return errors.ErrUserNotFound
	}
	delete(ur.emailIds, user.Email)
	delete(ur.externalIds, user.ExternalID)
	delete(ur.slugIds, user.Slug)
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	return ur.byIndex(ur.emailIds, email)
}

func (ur *FakeUserRepo) GetByExternalID(externalID string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	return ur.byIndex(ur.externalIds, externalID)
}

func (ur *FakeUserRepo) GetBySlug(slug string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	return ur.byIndex(ur.slugIds, slug)
}

func (ur *FakeUserRepo) byIndex(index map[string]string, key string) (*users.User, error) {
	if key == "" {
		return nil, errors.ErrUserNotFound
	}
	id, ok := index[key]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	user, ok := ur.users[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (ur *FakeUserRepo) List(offset, limit int) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	ids := make([]string, 0, len(ur.users))
	for id := range ur.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(ids) {
		end = len(ids)
	}

	list := make([]*users.User, 0, end-offset)
	for _, id := range ids[offset:end] {
		copied := *ur.users[id]
		list = append(list, &copied)
	}
	return list, nil
}
