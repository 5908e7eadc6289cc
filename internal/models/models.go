package models

import "time"

// Role is the access level carried in the token claims. The server is the
// authority on what a role may do; the client only derives UI affordances.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole normalizes a raw role claim. Unknown or empty values fall back
// to the least privileged role.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleModerator:
		return RoleModerator
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Privileged reports whether the role may delete content it does not own.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleModerator
}

// Identity is the normalized representation of the authenticated user,
// derived from the token payload. The schema is closed: claims outside the
// named fields are dropped during normalization.
type Identity struct {
	ID        int64     `json:"id"`
	Sub       int64     `json:"sub"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Category is read-only to the client.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Author is the nested display object the API attaches to posts and comments.
type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Post struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	AuthorID int64     `json:"author_id"`
	Author   *Author   `json:"author,omitempty"`
	Category *Category `json:"category,omitempty"`
	// The API is inconsistent about how a post references its category:
	// some responses nest the category object, some carry a flat
	// category_id, older ones a camelCase categoryId.
	CategoryID    int64     `json:"category_id,omitempty"`
	AltCategoryID int64     `json:"categoryId,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Comments      []Comment `json:"comments,omitempty"`
}

// CategoryRef resolves the post's category reference, checking the nested
// category object first, then category_id, then categoryId.
func (p *Post) CategoryRef() int64 {
	if p.Category != nil && p.Category.ID != 0 {
		return p.Category.ID
	}
	if p.CategoryID != 0 {
		return p.CategoryID
	}
	return p.AltCategoryID
}

type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id,omitempty"`
	Content   string    `json:"content"`
	AuthorID  int64     `json:"author_id"`
	Author    *Author   `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
