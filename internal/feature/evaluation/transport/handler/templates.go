package handler

import (
	"embed"
	"html/template"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

// LoadTemplates は埋め込みテンプレートをginエンジンに登録します。
func LoadTemplates(r *gin.Engine) {
	tmpl := template.Must(template.New("").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
		"mib": func(n int64) int64 { return n / (1 << 20) },
	}).ParseFS(templatesFS, "templates/*.html"))
	r.SetHTMLTemplate(tmpl)
}
