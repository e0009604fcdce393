package federation

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
	samltypes "github.com/russellhaering/gosaml2/types"

	"github.com/jrsteele09/go-saml-sp/internal/errors"
	"github.com/jrsteele09/go-saml-sp/users"
)

// Friendly attribute names the IdP is expected to release.
const (
	AttrEmail      = "email"
	AttrFirstName  = "givenName"
	AttrLastName   = "surname"
	AttrExternalID = "id"

	// AdminRoleSentinel grants the admin role when any released
	// attribute carries exactly this value.
	AdminRoleSentinel = "ROLE_ADMIN"
)

// Mapper bootstraps local principals from federated assertion attributes.
type Mapper struct {
	users users.Repo
}

func NewMapper(userRepo users.Repo) *Mapper {
	return &Mapper{users: userRepo}
}

// Provision builds or updates the principal described by the assertion's
// attribute statement and persists it. Missing friendly attributes map to
// empty fields rather than failing the login; the IdP is the authority on
// what it releases.
func (m *Mapper) Provision(attributes []samltypes.Attribute) (*users.User, error) {
	byFriendlyName := make(map[string]string, len(attributes))
	admin := false
	for _, attr := range attributes {
		value := firstValue(attr)
		if attr.FriendlyName != "" {
			byFriendlyName[attr.FriendlyName] = value
		}
		if value == AdminRoleSentinel {
			admin = true
		}
	}

	email := byFriendlyName[AttrEmail]
	firstName := byFriendlyName[AttrFirstName]
	lastName := byFriendlyName[AttrLastName]
	externalID := byFriendlyName[AttrExternalID]

	if email == "" || firstName == "" || lastName == "" {
		log.Warn().
			Str("external_id", externalID).
			Bool("email", email != "").
			Bool("given_name", firstName != "").
			Bool("surname", lastName != "").
			Msg("idp released incomplete profile attributes")
	}

	user := m.existing(externalID, email)
	now := time.Now()
	if user == nil {
		user = &users.User{DateJoined: now}
	}
	user.Email = email
	user.FirstName = firstName
	user.LastName = lastName
	user.ExternalID = externalID
	user.LastLogin = now

	user.Roles = nil
	if admin {
		user.AddRole(users.RoleAdmin)
	}

	uniqueSlug, err := m.uniqueSlug(firstName, lastName, user.ID)
	if err != nil {
		return nil, err
	}
	user.Slug = uniqueSlug

	if err := m.users.Upsert(user); err != nil {
		return nil, fmt.Errorf("[Mapper Provision] upsert user: %w", err)
	}
	return user, nil
}

func (m *Mapper) existing(externalID, email string) *users.User {
	if externalID != "" {
		if user, err := m.users.GetByExternalID(externalID); err == nil {
			return user
		}
	}
	if email != "" {
		if user, err := m.users.GetByEmail(email); err == nil {
			return user
		}
	}
	return nil
}

// Slugify derives the base slug from the principal's name. The trailing
// literal "1" is kept from the legacy scheme so existing slugs stay
// stable; uniqueness is handled separately by uniqueSlug.
func Slugify(firstName, lastName string) string {
	return slug.Make(fmt.Sprintf("%s %s1", strings.ToLower(firstName), strings.ToLower(lastName)))
}

func (m *Mapper) uniqueSlug(firstName, lastName, selfID string) (string, error) {
	base := Slugify(firstName, lastName)
	candidate := base
	for i := 2; ; i++ {
		owner, err := m.users.GetBySlug(candidate)
		if err != nil {
			if errors.Is(err, errors.ErrUserNotFound) {
				return candidate, nil
			}
			return "", fmt.Errorf("[Mapper uniqueSlug] lookup slug %q: %w", candidate, err)
		}
		if selfID != "" && owner.ID == selfID {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func firstValue(attr samltypes.Attribute) string {
	if len(attr.Values) == 0 {
		return ""
	}
	return attr.Values[0].Value
}
