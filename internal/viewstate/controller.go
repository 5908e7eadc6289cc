// Package viewstate keeps the client-side projection of posts and comments
// for the currently selected category. The projection is the single source of
// truth for display data: every successful mutation updates it before any
// rendering happens, and switching categories rebuilds it wholesale from a
// fresh fetch.
package viewstate

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"forumcli/internal/apiclient"
	"forumcli/internal/models"
	"forumcli/internal/session"
)

var (
	// ErrLoginRequired blocks a mutation before any network call when no
	// session is active.
	ErrLoginRequired = errors.New("login required")
	// ErrUnknownPost means the post id is not part of the current
	// projection; the projection's keys never grow beyond the loaded set.
	ErrUnknownPost = errors.New("post is not in the current view")
)

type Controller struct {
	api     *apiclient.Client
	session *session.Manager
	logger  *zap.Logger

	mu         sync.RWMutex
	loaded     bool
	categoryID int64
	posts      []models.Post
	comments   map[int64][]models.Comment
	deleted    map[int64]struct{}
}

func NewController(api *apiclient.Client, sess *session.Manager, logger *zap.Logger) *Controller {
	return &Controller{
		api:      api,
		session:  sess,
		logger:   logger,
		comments: map[int64][]models.Comment{},
		deleted:  map[int64]struct{}{},
	}
}

// LoadPosts fetches all posts and rebuilds the projection for categoryID.
// The API has no per-category listing, so filtering happens here. The
// previous projection, tombstones included, is discarded entirely; on
// failure it is left untouched.
func (c *Controller) LoadPosts(ctx context.Context, categoryID int64) error {
	all, err := c.api.Posts(ctx)
	if err != nil {
		return err
	}

	var posts []models.Post
	comments := map[int64][]models.Comment{}
	for _, post := range all {
		if post.CategoryRef() != categoryID {
			continue
		}
		embedded := post.Comments
		if embedded == nil {
			embedded = []models.Comment{}
		}
		post.Comments = nil // comments live in the projection map only
		posts = append(posts, post)
		comments[post.ID] = embedded
	}

	c.mu.Lock()
	c.loaded = true
	c.categoryID = categoryID
	c.posts = posts
	c.comments = comments
	c.deleted = map[int64]struct{}{}
	c.mu.Unlock()

	c.logger.Debug("Projection rebuilt",
		zap.Int64("category_id", categoryID),
		zap.Int("posts", len(posts)))
	return nil
}

// AddComment posts a comment. Rejected locally, with no network call, when
// no session is active or the trimmed content is empty. On success the
// server's comment is appended to the post's list in arrival order.
func (c *Controller) AddComment(ctx context.Context, postID int64, content string) (*models.Comment, error) {
	if !c.session.LoggedIn() {
		return nil, ErrLoginRequired
	}
	if strings.TrimSpace(content) == "" {
		return nil, &models.ValidationError{Field: "comment", Reason: "cannot be empty"}
	}
	if !c.knownPost(postID) {
		return nil, ErrUnknownPost
	}

	comment, err := c.api.CreateComment(ctx, postID, content)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.comments[postID] = append(c.comments[postID], *comment)
	c.mu.Unlock()
	return comment, nil
}

// DeleteComment removes a comment. The caller layer is responsible for
// confirming with the user first. On failure the projection is unchanged;
// the server is the authority on whether the deletion is allowed.
func (c *Controller) DeleteComment(ctx context.Context, postID, commentID int64) error {
	if !c.knownPost(postID) {
		return ErrUnknownPost
	}
	if err := c.api.DeleteComment(ctx, commentID); err != nil {
		return err
	}

	c.mu.Lock()
	kept := c.comments[postID][:0]
	for _, comment := range c.comments[postID] {
		if comment.ID != commentID {
			kept = append(kept, comment)
		}
	}
	c.comments[postID] = kept
	c.mu.Unlock()
	return nil
}

// DeletePost deletes a post remotely and marks it with a tombstone locally.
// The post stays in the list so the order and identity of the remaining
// entries is stable; readers render a placeholder instead.
func (c *Controller) DeletePost(ctx context.Context, postID int64) error {
	if !c.session.LoggedIn() {
		return ErrLoginRequired
	}
	if !c.knownPost(postID) {
		return ErrUnknownPost
	}
	if err := c.api.DeletePost(ctx, postID); err != nil {
		return err
	}

	c.mu.Lock()
	c.deleted[postID] = struct{}{}
	c.mu.Unlock()
	return nil
}

// EditPost updates a post's title and content. Validation runs locally
// before anything touches the network. On success the server's canonical
// record becomes the displayed title/content for that post.
func (c *Controller) EditPost(ctx context.Context, postID int64, title, content string) (*models.Post, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if len(title) < 3 {
		return nil, &models.ValidationError{Field: "title", Reason: "must be at least 3 characters"}
	}
	if len(content) < 10 {
		return nil, &models.ValidationError{Field: "content", Reason: "must be at least 10 characters"}
	}
	if !c.session.LoggedIn() {
		return nil, ErrLoginRequired
	}
	if !c.knownPost(postID) {
		return nil, ErrUnknownPost
	}

	updated, err := c.api.UpdatePost(ctx, postID, title, content)
	if err != nil {
		return nil, err
	}

	// The PUT response often drops the nested author/category objects, so
	// only the fields the server actually owns here are merged back.
	c.mu.Lock()
	for i := range c.posts {
		if c.posts[i].ID == postID {
			c.posts[i].Title = updated.Title
			c.posts[i].Content = updated.Content
			break
		}
	}
	c.mu.Unlock()
	return updated, nil
}

// CreatePost creates a post in the given category, with the same field
// validation as EditPost. When the post lands in the currently selected
// category it is appended to the projection.
func (c *Controller) CreatePost(ctx context.Context, title, content string, categoryID int64) (*models.Post, error) {
	if !c.session.LoggedIn() {
		return nil, ErrLoginRequired
	}
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if len(title) < 3 {
		return nil, &models.ValidationError{Field: "title", Reason: "must be at least 3 characters"}
	}
	if len(content) < 10 {
		return nil, &models.ValidationError{Field: "content", Reason: "must be at least 10 characters"}
	}

	post, err := c.api.CreatePost(ctx, title, content, categoryID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.loaded && c.categoryID == categoryID {
		c.posts = append(c.posts, *post)
		c.comments[post.ID] = []models.Comment{}
	}
	c.mu.Unlock()
	return post, nil
}

// CreateCategory creates a category. Categories are otherwise read-only to
// the client, so this does not touch the projection.
func (c *Controller) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	if !c.session.LoggedIn() {
		return nil, ErrLoginRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &models.ValidationError{Field: "name", Reason: "cannot be empty"}
	}
	return c.api.CreateCategory(ctx, name)
}

// Posts returns the loaded posts in server order, tombstoned entries
// included.
func (c *Controller) Posts() []models.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Post, len(c.posts))
	copy(out, c.posts)
	return out
}

// Comments returns the comment list for a post in arrival order.
func (c *Controller) Comments(postID int64) []models.Comment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list := c.comments[postID]
	out := make([]models.Comment, len(list))
	copy(out, list)
	return out
}

// Deleted reports whether the post has been tombstoned locally.
func (c *Controller) Deleted(postID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.deleted[postID]
	return ok
}

// Category returns the id of the currently loaded category.
func (c *Controller) Category() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.categoryID
}

func (c *Controller) knownPost(postID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.comments[postID]
	return ok
}
