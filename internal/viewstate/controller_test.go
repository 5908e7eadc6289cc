package viewstate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"forumcli/internal/apiclient"
	"forumcli/internal/models"
	"forumcli/internal/session"
	"forumcli/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// harness runs the controller against a mock forum API that speaks the same
// JSON shapes as the real one.
type harness struct {
	ctrl    *Controller
	manager *session.Manager

	mu       sync.Mutex
	posts    []models.Post
	envelope bool // wrap GET /posts in {"data": [...]}
	failWith int  // non-zero: mutation routes answer with this status
	nextID   int64
	requests atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{nextID: 100}

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		h.requests.Add(1)
		c.Next()
	})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   7,
		"email": "a@b.com",
		"role":  "user",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	engine.POST("/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"access_token": token})
	})

	engine.GET("/posts", func(c *gin.Context) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.envelope {
			c.JSON(http.StatusOK, gin.H{"data": h.posts})
			return
		}
		c.JSON(http.StatusOK, h.posts)
	})

	engine.POST("/posts", func(c *gin.Context) {
		if h.reject(c) {
			return
		}
		var req struct {
			Title      string `json:"title"`
			Content    string `json:"content"`
			CategoryID int64  `json:"category_id"`
		}
		assert.NoError(t, c.ShouldBindJSON(&req))
		h.mu.Lock()
		defer h.mu.Unlock()
		h.nextID++
		c.JSON(http.StatusCreated, models.Post{
			ID:         h.nextID,
			Title:      req.Title,
			Content:    req.Content,
			AuthorID:   7,
			CategoryID: req.CategoryID,
		})
	})

	engine.PUT("/posts/:id", func(c *gin.Context) {
		if h.reject(c) {
			return
		}
		id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
		var req struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		assert.NoError(t, c.ShouldBindJSON(&req))
		c.JSON(http.StatusOK, models.Post{ID: id, Title: req.Title, Content: req.Content, AuthorID: 7})
	})

	engine.DELETE("/posts/:id", func(c *gin.Context) {
		if h.reject(c) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	})

	engine.POST("/posts/:id/comments", func(c *gin.Context) {
		if h.reject(c) {
			return
		}
		postID, _ := strconv.ParseInt(c.Param("id"), 10, 64)
		var req struct {
			Content string `json:"content"`
		}
		assert.NoError(t, c.ShouldBindJSON(&req))
		h.mu.Lock()
		defer h.mu.Unlock()
		h.nextID++
		c.JSON(http.StatusCreated, models.Comment{ID: h.nextID, PostID: postID, Content: req.Content, AuthorID: 7})
	})

	engine.DELETE("/comments/:id", func(c *gin.Context) {
		if h.reject(c) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	})

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "forumcli.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	api := apiclient.NewClient(server.URL, 5*time.Second, zap.NewNop())
	h.manager = session.NewManager(api, st, zap.NewNop())
	h.ctrl = NewController(api, h.manager, zap.NewNop())
	return h
}

func (h *harness) reject(c *gin.Context) bool {
	h.mu.Lock()
	status := h.failWith
	h.mu.Unlock()
	if status == 0 {
		return false
	}
	c.JSON(status, gin.H{"error": "rejected by server"})
	return true
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	_, err := h.manager.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
}

func (h *harness) setPosts(posts ...models.Post) {
	h.mu.Lock()
	h.posts = posts
	h.mu.Unlock()
}

func TestLoadPosts_FiltersByCategory(t *testing.T) {
	h := newHarness(t)
	h.setPosts(
		models.Post{ID: 1, Title: "in", CategoryID: 3},
		models.Post{ID: 2, Title: "out", CategoryID: 5},
	)

	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))

	posts := h.ctrl.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, int64(1), posts[0].ID)
	assert.Equal(t, int64(3), h.ctrl.Category())
}

func TestLoadPosts_CategoryReferencePriority(t *testing.T) {
	h := newHarness(t)
	h.setPosts(
		// Nested category object wins over the flat fields.
		models.Post{ID: 1, Category: &models.Category{ID: 3}, CategoryID: 9},
		models.Post{ID: 2, CategoryID: 3},
		models.Post{ID: 3, AltCategoryID: 3},
		models.Post{ID: 4, Category: &models.Category{ID: 9}, AltCategoryID: 3},
	)

	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))

	var ids []int64
	for _, post := range h.ctrl.Posts() {
		ids = append(ids, post.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestLoadPosts_EnvelopeResponse(t *testing.T) {
	h := newHarness(t)
	h.envelope = true
	h.setPosts(models.Post{ID: 1, CategoryID: 3})

	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))
	assert.Len(t, h.ctrl.Posts(), 1)
}

func TestLoadPosts_BuildsCommentProjectionFromEmbedded(t *testing.T) {
	h := newHarness(t)
	h.setPosts(
		models.Post{ID: 1, CategoryID: 3, Comments: []models.Comment{
			{ID: 10, Content: "first"},
			{ID: 11, Content: "second"},
		}},
		models.Post{ID: 2, CategoryID: 3}, // no embedded comments
	)

	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))

	comments := h.ctrl.Comments(1)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)
	assert.Empty(t, h.ctrl.Comments(2))
}

func TestAddComment_RequiresLogin(t *testing.T) {
	h := newHarness(t)
	h.setPosts(models.Post{ID: 1, CategoryID: 3})
	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))
	before := h.requests.Load()

	_, err := h.ctrl.AddComment(context.Background(), 1, "hello")
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Equal(t, before, h.requests.Load(), "no network call expected")
	assert.Empty(t, h.ctrl.Comments(1))
}

func TestAddComment_EmptyContentNeverHitsNetwork(t *testing.T) {
	h := newHarness(t)
	h.setPosts(models.Post{ID: 1, CategoryID: 3})
	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))
	h.login(t)
	before := h.requests.Load()

	_, err := h.ctrl.AddComment(context.Background(), 1, "   \t ")
	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, before, h.requests.Load(), "no network call expected")
	assert.Empty(t, h.ctrl.Comments(1))
}

func TestAddComment_AppendsInArrivalOrder(t *testing.T) {
	h := newHarness(t)
	h.setPosts(models.Post{ID: 1, CategoryID: 3, Comments: []models.Comment{{ID: 10, Content: "embedded"}}})
	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))
	h.login(t)

	first, err := h.ctrl.AddComment(context.Background(), 1, "one")
	require.NoError(t, err)
	second, err := h.ctrl.AddComment(context.Background(), 1, "two")
	require.NoError(t, err)

	comments := h.ctrl.Comments(1)
	require.Len(t, comments, 3)
	assert.Equal(t, int64(10), comments[0].ID)
	assert.Equal(t, first.ID, comments[1].ID)
	assert.Equal(t, second.ID, comments[2].ID)
}

func TestAddComment_UnknownPost(t *testing.T) {
	h := newHarness(t)
	h.setPosts(models.Post{ID: 1, CategoryID: 3})
	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))
	h.login(t)

	_, err := h.ctrl.AddComment(context.Background(), 99, "hello")
	assert.ErrorIs(t, err, ErrUnknownPost)
}

func TestAddComment_RemoteFailureLeavesProjection(t *testing.T) {
	h := newHarness(t)
	h.setPosts(models.Post{ID: 1, CategoryID: 3})
	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))
	h.login(t)
	h.failWith = http.StatusInternalServerError

	_, err := h.ctrl.AddComment(context.Background(), 1, "hello")
	var remote *apiclient.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "rejected by server", remote.Message)
	assert.Empty(t, h.ctrl.Comments(1))
}

func TestDeleteComment_RemovesByID(t *testing.T) {
	h := newHarness(t)
	h.setPosts(models.Post{ID: 1, CategoryID: 3, Comments: []models.Comment{
		{ID: 10, Content: "keep"},
		{ID: 11, Content: "drop"},
		{ID: 12, Content: "keep too"},
	}})
	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))

	require.NoError(t, h.ctrl.DeleteComment(context.Background(), 1, 11))

	comments := h.ctrl.Comments(1)
	require.Len(t, comments, 2)
	assert.Equal(t, int64(10), comments[0].ID)
	assert.Equal(t, int64(12), comments[1].ID)
}

func TestDeleteComment_RemoteFailureLeavesProjection(t *testing.T) {
	h := newHarness(t)
	h.setPosts(models.Post{ID: 1, CategoryID: 3, Comments: []models.Comment{{ID: 10}}})
	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))
	h.failWith = http.StatusForbidden

	err := h.ctrl.DeleteComment(context.Background(), 1, 10)
	require.Error(t, err)
	assert.Len(t, h.ctrl.Comments(1), 1)
}

func TestDeletePost_TombstonesWithoutEvicting(t *testing.T) {
	h := newHarness(t)
	h.setPosts(
		models.Post{ID: 1, CategoryID: 3},
		models.Post{ID: 2, CategoryID: 3},
	)
	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))
	h.login(t)

	require.NoError(t, h.ctrl.DeletePost(context.Background(), 1))

	assert.True(t, h.ctrl.Deleted(1))
	assert.False(t, h.ctrl.Deleted(2))
	// The post stays in the list so the order of the rest is stable.
	require.Len(t, h.ctrl.Posts(), 2)
}

func TestDeletePost_RequiresLogin(t *testing.T) {
	h := newHarness(t)
	h.setPosts(models.Post{ID: 1, CategoryID: 3})
	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))
	before := h.requests.Load()

	err := h.ctrl.DeletePost(context.Background(), 1)
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Equal(t, before, h.requests.Load())
	assert.False(t, h.ctrl.Deleted(1))
}

func TestLoadPosts_SwitchingCategoryClearsTombstones(t *testing.T) {
	h := newHarness(t)
	h.setPosts(
		models.Post{ID: 1, CategoryID: 3},
		models.Post{ID: 2, CategoryID: 5},
	)
	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))
	h.login(t)
	require.NoError(t, h.ctrl.DeletePost(context.Background(), 1))
	require.True(t, h.ctrl.Deleted(1))

	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 5))

	assert.False(t, h.ctrl.Deleted(1), "tombstones do not survive a category switch")
	posts := h.ctrl.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, int64(2), posts[0].ID)
}

func TestEditPost_ValidationBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	h.setPosts(models.Post{ID: 1, CategoryID: 3, Title: "old", Content: "old content here"})
	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))
	h.login(t)
	before := h.requests.Load()

	_, err := h.ctrl.EditPost(context.Background(), 1, "ab", "short")
	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "title", validation.Field)
	assert.Equal(t, before, h.requests.Load(), "no network call expected")

	_, err = h.ctrl.EditPost(context.Background(), 1, "long enough", "short")
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "content", validation.Field)
	assert.Equal(t, before, h.requests.Load())
}

func TestEditPost_ServerCopyBecomesSourceOfTruth(t *testing.T) {
	h := newHarness(t)
	h.setPosts(models.Post{ID: 1, CategoryID: 3, Title: "old title", Content: "old content here"})
	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))
	h.login(t)

	updated, err := h.ctrl.EditPost(context.Background(), 1, "  new title  ", "fresh content body")
	require.NoError(t, err)
	assert.Equal(t, "new title", updated.Title)

	posts := h.ctrl.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, "new title", posts[0].Title)
	assert.Equal(t, "fresh content body", posts[0].Content)
}

func TestCreatePost_AppendsWhenCategoryMatches(t *testing.T) {
	h := newHarness(t)
	h.setPosts(models.Post{ID: 1, CategoryID: 3})
	require.NoError(t, h.ctrl.LoadPosts(context.Background(), 3))
	h.login(t)

	post, err := h.ctrl.CreatePost(context.Background(), "hello there", "a perfectly fine post body", 3)
	require.NoError(t, err)

	posts := h.ctrl.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, post.ID, posts[1].ID)
	assert.Empty(t, h.ctrl.Comments(post.ID))

	// A post for another category does not leak into this projection.
	_, err = h.ctrl.CreatePost(context.Background(), "elsewhere", "a perfectly fine post body", 5)
	require.NoError(t, err)
	assert.Len(t, h.ctrl.Posts(), 2)
}

func TestCreatePost_RequiresLogin(t *testing.T) {
	h := newHarness(t)
	before := h.requests.Load()

	_, err := h.ctrl.CreatePost(context.Background(), "hello there", "a perfectly fine post body", 3)
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Equal(t, before, h.requests.Load())
}

func TestCreateCategory_Validation(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	before := h.requests.Load()

	_, err := h.ctrl.CreateCategory(context.Background(), "   ")
	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, before, h.requests.Load())
}
