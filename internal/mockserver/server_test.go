package mockserver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/taskdeck/taskdeck/pkg/errors"
	"github.com/taskdeck/taskdeck/pkg/auth"
	"github.com/taskdeck/taskdeck/pkg/client"
	"github.com/taskdeck/taskdeck/pkg/models"
)

// signIn registers a fresh user and returns a client authenticated as them.
func signIn(t *testing.T, url string) *client.Client {
	t.Helper()

	anon := client.NewClient(url)
	resp, err := anon.Register(context.Background(), models.RegisterRequest{
		Username: "sam",
		Email:    "sam@example.com",
		Password: "hunter2",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	return client.NewClient(url, client.WithTokenSource(auth.StaticToken(resp.Token)))
}

func TestFullTaskLifecycle(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	c := signIn(t, srv.URL)
	ctx := context.Background()

	// Create three tasks; the newest sits at order 0.
	for _, text := range []string{"first", "second", "third"} {
		_, err := c.CreateTask(ctx, models.CreateTaskRequest{Text: text, Category: models.CategoryWork})
		require.NoError(t, err)
	}

	tasks, err := c.ListTasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "third", tasks[0].Text)
	assert.Equal(t, "first", tasks[2].Text)

	// Toggle the middle task.
	done := true
	updated, err := c.UpdateTask(ctx, tasks[1].ID, models.UpdateTaskRequest{Completed: &done})
	require.NoError(t, err)
	assert.True(t, updated.Completed)

	// Filter by completion.
	pending := false
	remaining, err := c.ListTasks(ctx, models.TaskFilter{Completed: &pending})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)

	// Reorder: reverse the list.
	orders := []models.TaskOrder{
		{ID: tasks[2].ID, Order: 0},
		{ID: tasks[1].ID, Order: 1},
		{ID: tasks[0].ID, Order: 2},
	}
	reordered, err := c.ReorderTasks(ctx, orders)
	require.NoError(t, err)
	require.Len(t, reordered, 3)
	assert.Equal(t, "first", reordered[0].Text)

	// Delete one.
	_, err = c.DeleteTask(ctx, tasks[0].ID)
	require.NoError(t, err)
	tasks, err = c.ListTasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	c := signIn(t, srv.URL)
	ctx := context.Background()

	_, err := c.CreateTask(ctx, models.CreateTaskRequest{Text: "Buy milk", Tags: []string{"errand"}})
	require.NoError(t, err)
	_, err = c.CreateTask(ctx, models.CreateTaskRequest{Text: "Write report"})
	require.NoError(t, err)

	results, err := c.SearchTasks(ctx, "milk", models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Buy milk", results[0].Text)

	// Tags match too.
	results, err = c.SearchTasks(ctx, "errand", models.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// Empty query is a validation error.
	_, err = c.SearchTasks(ctx, "  ", models.TaskFilter{})
	assert.Equal(t, apperrors.CategoryValidation, apperrors.CategoryOf(err))
}

func TestAuthRequired(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	anon := client.NewClient(srv.URL)
	_, err := anon.ListTasks(context.Background(), models.TaskFilter{})
	assert.Equal(t, apperrors.CategoryAuthentication, apperrors.CategoryOf(err))

	stale := client.NewClient(srv.URL, client.WithTokenSource(auth.StaticToken("not-a-jwt")))
	_, err = stale.ListTasks(context.Background(), models.TaskFilter{})
	assert.Equal(t, apperrors.CategoryAuthentication, apperrors.CategoryOf(err))
}

func TestLoginFlow(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	ctx := context.Background()
	anon := client.NewClient(srv.URL)
	_, err := anon.Register(ctx, models.RegisterRequest{
		Username: "pat", Email: "pat@example.com", Password: "secret",
	})
	require.NoError(t, err)

	// Duplicate username rejected.
	_, err = anon.Register(ctx, models.RegisterRequest{
		Username: "pat", Email: "other@example.com", Password: "secret",
	})
	assert.Equal(t, apperrors.CategoryValidation, apperrors.CategoryOf(err))

	// Wrong password rejected.
	_, err = anon.Login(ctx, models.LoginRequest{Username: "pat", Password: "wrong"})
	assert.Equal(t, apperrors.CategoryAuthentication, apperrors.CategoryOf(err))

	resp, err := anon.Login(ctx, models.LoginRequest{Username: "pat", Password: "secret"})
	require.NoError(t, err)

	authed := client.NewClient(srv.URL, client.WithTokenSource(auth.StaticToken(resp.Token)))
	user, err := authed.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pat", user.Username)
}

func TestUserIsolation(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	ctx := context.Background()
	anon := client.NewClient(srv.URL)

	a, err := anon.Register(ctx, models.RegisterRequest{Username: "a", Email: "a@x.io", Password: "pw"})
	require.NoError(t, err)
	b, err := anon.Register(ctx, models.RegisterRequest{Username: "b", Email: "b@x.io", Password: "pw"})
	require.NoError(t, err)

	clientA := client.NewClient(srv.URL, client.WithTokenSource(auth.StaticToken(a.Token)))
	clientB := client.NewClient(srv.URL, client.WithTokenSource(auth.StaticToken(b.Token)))

	task, err := clientA.CreateTask(ctx, models.CreateTaskRequest{Text: "mine"})
	require.NoError(t, err)

	tasks, err := clientB.ListTasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	// B cannot touch A's task.
	_, err = clientB.DeleteTask(ctx, task.ID)
	assert.Equal(t, apperrors.CategoryValidation, apperrors.CategoryOf(err))
}

func TestReorderValidation(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	c := signIn(t, srv.URL)
	ctx := context.Background()

	t1, err := c.CreateTask(ctx, models.CreateTaskRequest{Text: "one"})
	require.NoError(t, err)
	_, err = c.CreateTask(ctx, models.CreateTaskRequest{Text: "two"})
	require.NoError(t, err)

	// Partial coverage is rejected.
	_, err = c.ReorderTasks(ctx, []models.TaskOrder{{ID: t1.ID, Order: 0}})
	assert.Equal(t, apperrors.CategoryValidation, apperrors.CategoryOf(err))

	// Duplicate ids are rejected.
	_, err = c.ReorderTasks(ctx, []models.TaskOrder{
		{ID: t1.ID, Order: 0},
		{ID: t1.ID, Order: 1},
	})
	assert.Equal(t, apperrors.CategoryValidation, apperrors.CategoryOf(err))
}

func TestFaultInjection(t *testing.T) {
	srv := httptest.NewServer(New(Config{FailRate: 1}).Handler())
	defer srv.Close()

	anon := client.NewClient(srv.URL)
	_, err := anon.Register(context.Background(), models.RegisterRequest{
		Username: "x", Email: "x@x.io", Password: "pw",
	})
	assert.Equal(t, apperrors.CategoryServer, apperrors.CategoryOf(err))

	// Health stays up so readiness probes keep working.
	require.NoError(t, anon.HealthCheck(context.Background()))
}

func TestTokenExpiry(t *testing.T) {
	srv := httptest.NewServer(New(Config{TokenTTL: -time.Minute}).Handler())
	defer srv.Close()

	ctx := context.Background()
	anon := client.NewClient(srv.URL)
	resp, err := anon.Register(ctx, models.RegisterRequest{Username: "x", Email: "x@x.io", Password: "pw"})
	require.NoError(t, err)

	expired := client.NewClient(srv.URL, client.WithTokenSource(auth.StaticToken(resp.Token)))
	_, err = expired.ListTasks(ctx, models.TaskFilter{})
	assert.Equal(t, apperrors.CategoryAuthentication, apperrors.CategoryOf(err))
}
