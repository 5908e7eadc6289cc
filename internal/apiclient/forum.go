package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"forumcli/internal/models"
)

// Categories fetches all categories.
func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	data, err := c.do(ctx, http.MethodGet, "/categories", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.Category](data)
}

// CategoryByID fetches a single category.
func (c *Client) CategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/categories/%d", id), nil)
	if err != nil {
		return nil, err
	}
	var category models.Category
	if err := json.Unmarshal(data, &category); err != nil {
		return nil, fmt.Errorf("failed to decode category: %w", err)
	}
	return &category, nil
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

// CreateCategory creates a category and returns the server's record.
func (c *Client) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	data, err := c.do(ctx, http.MethodPost, "/categories", createCategoryRequest{Name: name})
	if err != nil {
		return nil, err
	}
	var category models.Category
	if err := json.Unmarshal(data, &category); err != nil {
		return nil, fmt.Errorf("failed to decode category: %w", err)
	}
	return &category, nil
}

// Posts fetches all posts. Filtering by category happens client-side; the
// API has no per-category listing endpoint.
func (c *Client) Posts(ctx context.Context) ([]models.Post, error) {
	data, err := c.do(ctx, http.MethodGet, "/posts", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.Post](data)
}

type createPostRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	CategoryID int64  `json:"category_id"`
}

// CreatePost creates a post and returns the server's record.
func (c *Client) CreatePost(ctx context.Context, title, content string, categoryID int64) (*models.Post, error) {
	data, err := c.do(ctx, http.MethodPost, "/posts", createPostRequest{
		Title:      title,
		Content:    content,
		CategoryID: categoryID,
	})
	if err != nil {
		return nil, err
	}
	var post models.Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("failed to decode post: %w", err)
	}
	return &post, nil
}

type updatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdatePost updates a post and returns the server's canonical copy, which
// becomes the source of truth for that post's displayed fields.
func (c *Client) UpdatePost(ctx context.Context, id int64, title, content string) (*models.Post, error) {
	data, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/posts/%d", id), updatePostRequest{
		Title:   title,
		Content: content,
	})
	if err != nil {
		return nil, err
	}
	var post models.Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("failed to decode post: %w", err)
	}
	return &post, nil
}

// DeletePost deletes a post.
func (c *Client) DeletePost(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/posts/%d", id), nil)
	return err
}

type createCommentRequest struct {
	Content string `json:"content"`
}

// CreateComment adds a comment to a post and returns the server's record.
func (c *Client) CreateComment(ctx context.Context, postID int64, content string) (*models.Comment, error) {
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/posts/%d/comments", postID), createCommentRequest{Content: content})
	if err != nil {
		return nil, err
	}
	var comment models.Comment
	if err := json.Unmarshal(data, &comment); err != nil {
		return nil, fmt.Errorf("failed to decode comment: %w", err)
	}
	return &comment, nil
}

// DeleteComment deletes a comment.
func (c *Client) DeleteComment(ctx context.Context, commentID int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/comments/%d", commentID), nil)
	return err
}
