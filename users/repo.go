package users

type Repo interface {
	Upsert(user *User) error
	Delete(id string) error
	GetByID(id string) (*User, error)
	GetByEmail(email string) (*User, error)
	GetByExternalID(externalID string) (*User, error)
	GetBySlug(slug string) (*User, error)
	List(offset, limit int) ([]*User, error)
}
