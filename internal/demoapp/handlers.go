package demoapp

import (
	"encoding/xml"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/webtest/internal/config"
	"github.com/roach88/webtest/internal/orm"
	"github.com/roach88/webtest/internal/session"
)

const tokenKey = "webtest.token"

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{with .Message}}<p>{{.}}</p>{{end}}
{{with .Links}}<ul>
{{range .}}<li><a href="{{.Href}}">{{.Text}}</a></li>
{{end}}</ul>{{end}}
</body>
</html>
`))

type page struct {
	Title   string
	Message string
	Links   []link
}

type link struct {
	Href string
	Text string
}

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

var errNoSession = errors.New("no session")

func (k *Kernel) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), k.requestLogger())
	r.SetHTMLTemplate(pageTemplate)

	r.GET(routes[RouteHome], func(c *gin.Context) {
		c.HTML(http.StatusOK, "page", page{
			Title: "Blog",
			Links: []link{{Href: routes[RoutePostList], Text: "Posts"}},
		})
	})
	r.GET(routes[RoutePostList], k.listPosts)
	r.GET(routes[RoutePostShow], k.showPost)
	r.GET(routes[RouteFeed], k.feed)
	r.GET(routes[RouteAPIStatus], func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "environment": k.opts.Environment})
	})

	r.GET(routes[RouteAccount], k.firewall(FirewallMain, ""), func(c *gin.Context) {
		tok := c.MustGet(tokenKey).(session.Token)
		c.HTML(http.StatusOK, "page", page{Title: "Account", Message: "Hello " + tok.Username})
	})
	r.GET(routes[RouteAdmin], k.firewall(FirewallAdmin, RoleAdmin), func(c *gin.Context) {
		tok := c.MustGet(tokenKey).(session.Token)
		c.HTML(http.StatusOK, "page", page{Title: "Admin dashboard", Message: "Signed in as " + tok.Username})
	})

	if accounts, err := k.c.StringMap(config.ParamAuthentication); err == nil && accounts["username"] != "" {
		private := r.Group(routes[RoutePrivate], gin.BasicAuth(gin.Accounts{accounts["username"]: accounts["password"]}))
		private.GET("", func(c *gin.Context) {
			c.HTML(http.StatusOK, "page", page{Title: "Private area", Message: "Hello " + c.GetString(gin.AuthUserKey)})
		})
	}

	r.NoRoute(func(c *gin.Context) {
		c.HTML(http.StatusNotFound, "page", page{Title: "Not Found"})
	})
	return r
}

func (k *Kernel) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		k.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func (k *Kernel) manager() (orm.Manager, error) {
	return k.registry.Manager("")
}

func (k *Kernel) publishedPosts(c *gin.Context) ([]orm.Row, error) {
	m, err := k.manager()
	if err != nil {
		return nil, err
	}
	rows, err := m.Find(c.Request.Context(), EntityPost)
	if err != nil {
		return nil, err
	}
	published := rows[:0]
	for _, row := range rows {
		if p, _ := row["published"].(bool); p {
			published = append(published, row)
		}
	}
	return published, nil
}

func (k *Kernel) listPosts(c *gin.Context) {
	posts, err := k.publishedPosts(c)
	if err != nil {
		k.serverError(c, err)
		return
	}
	links := make([]link, 0, len(posts))
	for _, p := range posts {
		href, _ := Router{}.Generate(RoutePostShow, map[string]string{"id": strconv.FormatInt(p["id"].(int64), 10)})
		links = append(links, link{Href: href, Text: p["title"].(string)})
	}
	msg := ""
	if len(links) == 0 {
		msg = "No posts yet."
	}
	c.HTML(http.StatusOK, "page", page{Title: "Posts", Message: msg, Links: links})
}

func (k *Kernel) showPost(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.HTML(http.StatusNotFound, "page", page{Title: "Not Found"})
		return
	}
	posts, err := k.publishedPosts(c)
	if err != nil {
		k.serverError(c, err)
		return
	}
	for _, p := range posts {
		if p["id"].(int64) == id {
			body, _ := p["body"].(string)
			c.HTML(http.StatusOK, "page", page{Title: p["title"].(string), Message: body})
			return
		}
	}
	c.HTML(http.StatusNotFound, "page", page{Title: "Not Found"})
}

func (k *Kernel) feed(c *gin.Context) {
	posts, err := k.publishedPosts(c)
	if err != nil {
		k.serverError(c, err)
		return
	}
	doc := rss{Version: "2.0", Channel: rssChannel{Title: "Blog"}}
	for _, p := range posts {
		href, _ := Router{}.Generate(RoutePostShow, map[string]string{"id": strconv.FormatInt(p["id"].(int64), 10)})
		doc.Channel.Items = append(doc.Channel.Items, rssItem{Title: p["title"].(string), Link: href})
	}
	c.XML(http.StatusOK, doc)
}

func (k *Kernel) serverError(c *gin.Context, err error) {
	k.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	c.HTML(http.StatusInternalServerError, "page", page{Title: "Internal Server Error"})
}

// firewall admits requests whose session holds a token for name. A
// non-empty role must also be granted by the token.
func (k *Kernel) firewall(name, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := k.authenticate(c.Request, name)
		if err == nil && role != "" && !tok.HasRole(role) {
			err = errors.New("missing role " + role)
		}
		if err != nil {
			k.logger.Debug("access denied", "firewall", name, "error", err)
			c.HTML(http.StatusForbidden, "page", page{Title: "Access Denied"})
			c.Abort()
			return
		}
		c.Set(tokenKey, tok)
		c.Next()
	}
}

func (k *Kernel) authenticate(r *http.Request, firewall string) (session.Token, error) {
	name, ok := k.c.String(config.ParamSessionName)
	if !ok || k.codec == nil {
		return session.Token{}, errNoSession
	}
	cookie, err := r.Cookie(name)
	if err != nil {
		return session.Token{}, errNoSession
	}
	sess, ok := k.sessions.Lookup(strings.TrimSpace(cookie.Value))
	if !ok {
		return session.Token{}, errNoSession
	}
	return k.codec.Authenticate(sess, firewall)
}
