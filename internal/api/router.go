package api

import (
	"embed"
	"html/template"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/nitesh/readme_service/internal/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

type RouterConfig struct {
	Handler     *Handler
	Logger      *logger.Logger
	CORSOrigins []string
	ServiceName string
}

// Templates parses the embedded intake, confirmation and not-found pages.
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(AttachTraceContext())
	r.Use(RequestLogger(cfg.Logger))
	r.Use(CORS(cfg.CORSOrigins))
	r.SetHTMLTemplate(Templates())

	RegisterRoutes(r, cfg.Handler)
	return r
}
