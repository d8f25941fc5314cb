package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		// Fallback to built-in template if file not found
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for report template rendering
type TemplateData struct {
	SubjectID   string
	RoundNumber int
	Status      string
	CreatedAt   time.Time
	ClosedAt    time.Time
	IsClosed    bool
	Comments    []TemplateComment
}

// TemplateComment holds comment data for the template
type TemplateComment struct {
	AuthorName string
	AuthorType string
	Content    string
	Status     string
	Hidden     bool
	SentToTeam bool
	PinLabel   string
	CreatedAt  time.Time
}

// RenderReportHTML renders the report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.SubjectID}} round {{.RoundNumber}}</title>
</head>
<body>
  <h1>{{.SubjectID}} — Review round {{.RoundNumber}}</h1>
  <p>Status: {{.Status}}</p>
  {{range .Comments}}<div>{{.AuthorName}}: {{.Content}}</div>{{end}}
</body>
</html>`
