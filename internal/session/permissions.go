package session

import "forumcli/internal/models"

// The predicates below gate UI affordances only. The server re-checks every
// mutation; an authorization rejection from the API is the real answer.

// CanEditPost reports whether identity owns the post.
func CanEditPost(identity *models.Identity, post *models.Post) bool {
	return identity != nil && identity.ID == post.AuthorID
}

// CanDeletePost reports whether identity owns the post or holds a
// moderator/admin role.
func CanDeletePost(identity *models.Identity, post *models.Post) bool {
	return identity != nil && (identity.Role.Privileged() || identity.ID == post.AuthorID)
}

// CanDeleteComment mirrors CanDeletePost; comments have no edit capability.
func CanDeleteComment(identity *models.Identity, comment *models.Comment) bool {
	return identity != nil && (identity.Role.Privileged() || identity.ID == comment.AuthorID)
}
