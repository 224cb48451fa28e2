package demoapp

import (
	"context"
	"fmt"

	"github.com/roach88/webtest/internal/container"
	"github.com/roach88/webtest/internal/fixture"
	"github.com/roach88/webtest/internal/orm"
)

// Fixture ids.
const (
	FixtureUsers = "UserFixture"
	FixturePosts = "PostFixture"
)

// UserFixture creates an administrator and an author.
type UserFixture struct{}

// Load implements fixture.Fixture.
func (UserFixture) Load(ctx context.Context, m orm.Manager, refs *fixture.References) error {
	users := []struct {
		ref string
		row orm.Row
	}{
		{"user-admin", orm.Row{"id": int64(1), "username": "admin", "roles": "ROLE_ADMIN,ROLE_USER"}},
		{"user-author", orm.Row{"id": int64(2), "username": "author", "roles": "ROLE_USER"}},
	}
	for _, u := range users {
		if err := m.Persist(ctx, EntityUser, u.row); err != nil {
			return err
		}
		refs.Set(u.ref, u.row)
	}
	return nil
}

// PostFixture publishes posts written by the users of UserFixture.
type PostFixture struct {
	c *container.Container
}

// Dependencies implements fixture.DependentFixture.
func (*PostFixture) Dependencies() []string { return []string{FixtureUsers} }

// SetContainer implements fixture.ContainerAware.
func (f *PostFixture) SetContainer(c *container.Container) { f.c = c }

// Load implements fixture.Fixture.
func (f *PostFixture) Load(ctx context.Context, m orm.Manager, refs *fixture.References) error {
	author, err := refs.Get("user-author")
	if err != nil {
		return err
	}
	count := 3
	if f.c != nil {
		if n, err := f.c.Parameter(ParamPostCount); err == nil {
			if v, ok := n.(int); ok {
				count = v
			}
		}
	}
	for i := 1; i <= count; i++ {
		row := orm.Row{
			"id":        int64(i),
			"author_id": author["id"],
			"title":     fmt.Sprintf("Post %d", i),
			"body":      fmt.Sprintf("Body of post %d.", i),
			"published": i%2 == 1,
		}
		if err := m.Persist(ctx, EntityPost, row); err != nil {
			return err
		}
	}
	return nil
}

// Fixtures returns the registry of the application's fixtures.
func Fixtures() *fixture.Registry {
	r := fixture.NewRegistry()
	r.MustRegister(FixtureUsers, func() fixture.Fixture { return UserFixture{} })
	r.MustRegister(FixturePosts, func() fixture.Fixture { return &PostFixture{} })
	return r
}
