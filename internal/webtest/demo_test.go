package webtest_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/webtest/internal/client"
	"github.com/roach88/webtest/internal/demoapp"
	"github.com/roach88/webtest/internal/session"
	"github.com/roach88/webtest/internal/webtest"
)

const blogConfig = `kernel:
  cache_dir: var/cache
  secret: blog-secret
session:
  storage:
    options:
      name: BLOGSESSID
webtest:
  cache_sqlite_db: %CACHE%
  authentication:
    username: admin
    password: adminpass
database:
  driver: sqlite
  path: var/blog.db
`

func blogDir(t *testing.T, cache bool) string {
	t.Helper()
	dir := t.TempDir()
	value := "false"
	if cache {
		value = "true"
	}
	cfg := []byte(strings.ReplaceAll(blogConfig, "%CACHE%", value))
	require.NoError(t, os.WriteFile(filepath.Join(dir, demoapp.ConfigFile), cfg, 0o644))
	return dir
}

func TestDemo_PostsWithFixtures(t *testing.T) {
	tc := webtest.New(t, demoapp.NewKernel, webtest.WithDir(blogDir(t, false)))

	exec, err := tc.LoadFixtures([]string{demoapp.FixtureUsers, demoapp.FixturePosts})
	require.NoError(t, err)
	assert.Equal(t, 2, exec.Executed())
	assert.False(t, exec.Restored())

	content := tc.FetchContent("/posts")
	assert.Contains(t, content, "Post 1")

	doc := tc.FetchCrawler("/posts")
	title, ok := doc.Title()
	require.True(t, ok)
	assert.NotEmpty(t, title)

	tc.AssertGolden("posts", []byte(content))
}

func TestDemo_NotFound(t *testing.T) {
	tc := webtest.New(t, demoapp.NewKernel, webtest.WithDir(blogDir(t, false)))

	cl, err := tc.MakeClient(client.NoAuth)
	require.NoError(t, err)
	resp, err := cl.Get(context.Background(), "/missing")
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	tc.IsSuccessful(resp, false)
	assert.Equal(t, "Not Found", webtest.Label(resp, resp.ContentType()))
}

func TestDemo_CachedFixturesRestored(t *testing.T) {
	dir := blogDir(t, true)
	tc := webtest.New(t, demoapp.NewKernel, webtest.WithDir(dir))
	ids := []string{demoapp.FixturePosts}

	exec, err := tc.LoadFixtures(ids)
	require.NoError(t, err)
	assert.False(t, exec.Restored())

	artifacts, err := filepath.Glob(filepath.Join(dir, "var", "cache", "test_*.db"))
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)

	exec, err = tc.LoadFixtures(ids)
	require.NoError(t, err)
	assert.True(t, exec.Restored())
	assert.Zero(t, exec.Executed())

	assert.Contains(t, tc.FetchContent("/posts"), "Post 3")
}

func TestDemo_LoginAs(t *testing.T) {
	ctx := context.Background()
	tc := webtest.New(t, demoapp.NewKernel, webtest.WithDir(blogDir(t, false)))
	admin := session.BasicUser{Name: "admin", RoleNames: []string{demoapp.RoleAdmin}}

	cl, err := tc.MakeClient(client.NoAuth)
	require.NoError(t, err)
	resp, err := cl.Get(ctx, "/admin")
	require.NoError(t, err)
	tc.IsSuccessful(resp, false)

	cl, err = tc.LoginAs(admin, demoapp.FirewallAdmin).MakeClient(client.NoAuth)
	require.NoError(t, err)
	resp, err = cl.Get(ctx, "/admin")
	require.NoError(t, err)
	tc.IsSuccessful(resp, true)
	assert.Contains(t, resp.Content(), "Signed in as admin")

	// The admin token does not open the main firewall.
	resp, err = cl.Get(ctx, "/account")
	require.NoError(t, err)
	tc.IsSuccessful(resp, false)
}

func TestDemo_DefaultAuthentication(t *testing.T) {
	tc := webtest.New(t, demoapp.NewKernel, webtest.WithDir(blogDir(t, false)))

	content := tc.FetchContent("/private", webtest.WithAuthentication(client.DefaultAuth))
	assert.Contains(t, content, "Hello admin")

	tc.FetchContent("/private", webtest.WithExpectSuccess(false))
}

func TestDemo_FeedCrawler(t *testing.T) {
	tc := webtest.New(t, demoapp.NewKernel, webtest.WithDir(blogDir(t, false)))
	_, err := tc.LoadFixtures([]string{demoapp.FixturePosts})
	require.NoError(t, err)

	doc := tc.FetchCrawler("/feed.xml")
	assert.Len(t, doc.Filter("item"), 2)
}

func TestDemo_URL(t *testing.T) {
	tc := webtest.New(t, demoapp.NewKernel, webtest.WithDir(blogDir(t, false)))
	_, err := tc.LoadFixtures([]string{demoapp.FixturePosts})
	require.NoError(t, err)

	u, err := tc.URL(demoapp.RoutePostShow, "id", "3")
	require.NoError(t, err)
	assert.Equal(t, "/posts/3", u)
	assert.Contains(t, tc.FetchContent(u), "Body of post 3.")
}
