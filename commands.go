package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"forumcli/internal/models"
	"forumcli/internal/session"
)

func rootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	root := &cobra.Command{
		Use:           "forumcli",
		Short:         "Terminal client for the community forum API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// run wraps a command body with app setup and teardown.
	run := func(body func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, verbose)
			if err != nil {
				return err
			}
			defer a.close()
			return body(cmd.Context(), a, cmd, args)
		}
	}

	root.AddCommand(
		registerCmd(run),
		loginCmd(run),
		logoutCmd(run),
		whoamiCmd(run),
		categoriesCmd(run),
		postsCmd(run),
		postCmd(run),
		commentCmd(run),
	)
	return root
}

type runFunc = func(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error

func registerCmd(run runFunc) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			if err := a.session.Register(ctx, name, email, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created. You can now log in.")
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func loginCmd(run runFunc) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			identity, err := a.session.Login(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", identity.Email, identity.Role)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the persisted session",
		RunE: run(func(_ context.Context, a *app, cmd *cobra.Command, _ []string) error {
			if err := a.session.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		}),
	}
}

func whoamiCmd(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity",
		RunE: run(func(_ context.Context, a *app, cmd *cobra.Command, _ []string) error {
			identity := a.session.Identity()
			if identity == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id:    %d\nemail: %s\nrole:  %s\nexpires: %s\n",
				identity.ID, identity.Email, identity.Role, identity.ExpiresAt.Format("2006-01-02 15:04"))
			return nil
		}),
	}
}

func categoriesCmd(run runFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			categories, err := a.api.Categories(ctx)
			if err != nil {
				return err
			}
			if len(categories) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No categories available.")
				return nil
			}
			for _, category := range categories {
				fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s\n", category.ID, category.Name)
			}
			return nil
		}),
	}

	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			category, err := a.view.CreateCategory(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created category %d %q\n", category.ID, category.Name)
			return nil
		}),
	}
	cmd.AddCommand(create)
	return cmd
}

func postsCmd(run runFunc) *cobra.Command {
	var categoryID int64
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List the posts of a category, with comments",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			if err := a.view.LoadPosts(ctx, categoryID); err != nil {
				return err
			}
			printView(cmd, a)
			return nil
		}),
	}
	cmd.Flags().Int64Var(&categoryID, "category", 0, "category id")
	cmd.MarkFlagRequired("category")
	return cmd
}

func postCmd(run runFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create, edit or delete a post",
	}

	var createCategory int64
	var title, content string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a post in a category",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			post, err := a.view.CreatePost(ctx, title, content, createCategory)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created post %d %q\n", post.ID, post.Title)
			return nil
		}),
	}
	create.Flags().Int64Var(&createCategory, "category", 0, "category id")
	create.Flags().StringVar(&title, "title", "", "post title (min 3 characters)")
	create.Flags().StringVar(&content, "content", "", "post content (min 10 characters)")
	create.MarkFlagRequired("category")
	create.MarkFlagRequired("title")
	create.MarkFlagRequired("content")

	var editTitle, editContent string
	edit := &cobra.Command{
		Use:   "edit POST_ID",
		Short: "Edit a post you own",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := loadCategoryOfPost(ctx, a, postID); err != nil {
				return err
			}
			post, err := a.view.EditPost(ctx, postID, editTitle, editContent)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated post %d %q\n", post.ID, post.Title)
			return nil
		}),
	}
	edit.Flags().StringVar(&editTitle, "title", "", "new title (min 3 characters)")
	edit.Flags().StringVar(&editContent, "content", "", "new content (min 10 characters)")
	edit.MarkFlagRequired("title")
	edit.MarkFlagRequired("content")

	var deleteYes bool
	del := &cobra.Command{
		Use:   "delete POST_ID",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !deleteYes && !confirm(cmd, fmt.Sprintf("Delete post %d?", postID)) {
				return nil
			}
			if err := loadCategoryOfPost(ctx, a, postID); err != nil {
				return err
			}
			if err := a.view.DeletePost(ctx, postID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted post %d\n", postID)
			return nil
		}),
	}
	del.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip confirmation")

	cmd.AddCommand(create, edit, del)
	return cmd
}

func commentCmd(run runFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Add or delete comments",
	}

	add := &cobra.Command{
		Use:   "add POST_ID CONTENT",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := loadCategoryOfPost(ctx, a, postID); err != nil {
				return err
			}
			comment, err := a.view.AddComment(ctx, postID, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added comment %d\n", comment.ID)
			return nil
		}),
	}

	var deleteYes bool
	del := &cobra.Command{
		Use:   "delete POST_ID COMMENT_ID",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}
			commentID, err := parseID(args[1])
			if err != nil {
				return err
			}
			if !deleteYes && !confirm(cmd, fmt.Sprintf("Delete comment %d?", commentID)) {
				return nil
			}
			if err := loadCategoryOfPost(ctx, a, postID); err != nil {
				return err
			}
			if err := a.view.DeleteComment(ctx, postID, commentID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted comment %d\n", commentID)
			return nil
		}),
	}
	del.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip confirmation")

	cmd.AddCommand(add, del)
	return cmd
}

// loadCategoryOfPost builds the projection for the category the post belongs
// to, since every mutation operates within a loaded category view.
func loadCategoryOfPost(ctx context.Context, a *app, postID int64) error {
	posts, err := a.api.Posts(ctx)
	if err != nil {
		return err
	}
	for _, post := range posts {
		if post.ID == postID {
			return a.view.LoadPosts(ctx, post.CategoryRef())
		}
	}
	return fmt.Errorf("post %d not found", postID)
}

func printView(cmd *cobra.Command, a *app) {
	out := cmd.OutOrStdout()
	posts := a.view.Posts()
	if len(posts) == 0 {
		fmt.Fprintln(out, "No posts in this category.")
		return
	}
	identity := a.session.Identity()
	for _, post := range posts {
		if a.view.Deleted(post.ID) {
			fmt.Fprintf(out, "#%d  [deleted]\n\n", post.ID)
			continue
		}
		fmt.Fprintf(out, "#%d  %s\n", post.ID, post.Title)
		fmt.Fprintf(out, "     by %s on %s%s\n", authorName(post.Author), post.CreatedAt.Format("2006-01-02 15:04"), ownershipMarks(identity, &post))
		fmt.Fprintf(out, "     %s\n", post.Content)
		for _, comment := range a.view.Comments(post.ID) {
			fmt.Fprintf(out, "       %d> %s  (%s)\n", comment.ID, comment.Content, authorName(comment.Author))
		}
		fmt.Fprintln(out)
	}
}

func authorName(author *models.Author) string {
	if author == nil || author.Name == "" {
		return "anonymous"
	}
	return author.Name
}

// ownershipMarks annotates a post with the actions the current identity may
// take on it. Display only; the server enforces the real rules.
func ownershipMarks(identity *models.Identity, post *models.Post) string {
	var marks []string
	if session.CanEditPost(identity, post) {
		marks = append(marks, "editable")
	}
	if session.CanDeletePost(identity, post) {
		marks = append(marks, "deletable")
	}
	if len(marks) == 0 {
		return ""
	}
	return "  (" + strings.Join(marks, ", ") + ")"
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
