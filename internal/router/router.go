package router

import (
	"encoding/gob"
	"html/template"
	"net/http"
	"path/filepath"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/user/movielist/internal/handler"
	"github.com/user/movielist/internal/middleware"
	"github.com/user/movielist/internal/service"
)

func init() {
	// 注册 Session 模型
	gob.Register(service.Session{})
}

// NewEngine 组装 gin 引擎：压缩、会话、日志、安全头、身份解析与路由
// templatesDir 为空时不加载页面模板
func NewEngine(h *handler.Handler, templatesDir string) *gin.Engine {
	if h.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// 推送流不能压缩
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`^/api/.*events$`, `^/api/ws$`})))

	store := cookie.NewStore([]byte(h.Config.AppSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   h.Config.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("movielist", store))

	r.Use(middleware.Logger(h.Logger.WithPrefix("http")))
	r.Use(middleware.Security())
	r.Use(middleware.CORS(h.Config.SiteUrl))

	if templatesDir != "" {
		r.HTMLRender = LoadTemplates(templatesDir)
		r.Static("/static", filepath.Join(filepath.Dir(templatesDir), "static"))
	}
	r.NoRoute(h.NotFound)

	RegisterRoutes(r, h)
	return r
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	r.GET("/health", h.Health)

	app := r.Group("/")
	app.Use(h.Authn.Authenticate())

	// ==================== 页面 ====================
	app.GET("/", h.Home)
	app.GET("/lists/:id", h.ListPage)

	// ==================== 认证 ====================
	auth := app.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
	}

	// ==================== API ====================
	api := app.Group("/api")
	{
		api.GET("/session", h.GetSession)
		api.POST("/back", h.Back)
		api.POST("/pick", h.Pick)

		api.GET("/lists", h.ListLists)
		api.POST("/lists", h.CreateList)
		api.POST("/lists/import", h.ImportList)
		api.GET("/lists/events", h.CollectionEvents)
		api.GET("/lists/:id", h.GetList)
		api.DELETE("/lists/:id", h.DeleteList)
		api.POST("/lists/:id/select", h.SelectList)
		api.POST("/lists/:id/open", h.OpenList)
		api.POST("/lists/:id/movies", h.AddMovie)
		api.DELETE("/lists/:id/movies", h.DeleteMovie)
		api.PUT("/lists/:id/notes", h.EditNote)
		api.GET("/lists/:id/events", h.ListEvents)

		api.GET("/ws", h.CollectionSocket)
	}
}

// LoadTemplates 使用 multitemplate 加载模板，解决模板继承问题
func LoadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(templatesDir + "/layouts/*.html")
	if err != nil {
		panic(err)
	}
	partials, err := filepath.Glob(templatesDir + "/partials/*.html")
	if err != nil {
		panic(err)
	}

	assemble := func(view string) []string {
		files := make([]string, 0, len(layouts)+len(partials)+1)
		files = append(files, layouts...)
		files = append(files, partials...)
		return append(files, view)
	}

	funcMap := template.FuncMap{
		"default": func(defaultValue, value any) any {
			switch v := value.(type) {
			case string:
				if v == "" {
					return defaultValue
				}
			case nil:
				return defaultValue
			}
			return value
		},
	}

	for _, page := range []string{"account", "main", "list", "404"} {
		viewPath := templatesDir + "/pages/" + page + ".html"
		r.AddFromFilesFuncs(page+".html", funcMap, assemble(viewPath)...)
	}

	return r
}
