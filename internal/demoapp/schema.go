package demoapp

import "github.com/roach88/webtest/internal/orm"

// Entity names.
const (
	EntityUser = "User"
	EntityPost = "Post"
)

// Metadata returns the blog schema in declaration order. Posts reference
// users, so users come first.
func Metadata() []orm.EntityMetadata {
	return []orm.EntityMetadata{
		{
			Name:  EntityUser,
			Table: "users",
			Columns: []orm.Column{
				{Name: "id", Type: orm.TypeInteger, PrimaryKey: true},
				{Name: "username", Type: orm.TypeText, Unique: true},
				{Name: "roles", Type: orm.TypeText},
			},
		},
		{
			Name:  EntityPost,
			Table: "posts",
			Columns: []orm.Column{
				{Name: "id", Type: orm.TypeInteger, PrimaryKey: true},
				{Name: "author_id", Type: orm.TypeInteger},
				{Name: "title", Type: orm.TypeText},
				{Name: "body", Type: orm.TypeText, Nullable: true},
				{Name: "published", Type: orm.TypeBoolean},
			},
		},
	}
}
