// Package webtest is the functional-test facade. A TestCase boots an
// application kernel, loads fixtures through the seed package, builds
// in-process clients (optionally pre-authenticated through seeded session
// tokens) and asserts on responses.
//
// # Usage
//
//	func TestPosts(t *testing.T) {
//	    tc := webtest.New(t, demoapp.NewKernel, webtest.WithDir("testdata/app"))
//	    _, err := tc.LoadFixtures([]string{"UserFixture", "PostFixture"})
//	    require.NoError(t, err)
//
//	    content := tc.FetchContent("/posts")
//	    assert.Contains(t, content, "Post 1")
//	}
//
// Simulated logins are registered with LoginAs before MakeClient:
//
//	tc.LoginAs(session.BasicUser{Name: "admin", RoleNames: []string{"ROLE_ADMIN"}}, "admin")
//	cl, err := tc.MakeClient(client.NoAuth)
//
// Every registered identity is written to a fresh session as a signed
// token under _security_<firewall>; the session id is sent in the cookie
// named by session.storage.options.name. Identities are consumed by the
// next MakeClient call.
//
// # Golden files
//
// AssertGolden compares bodies against testdata/golden/<name>.golden.
// Regenerate them with:
//
//	go test ./... -update
package webtest
