package reply

import (
	"bytes"
	_ "embed"
	"sync"
	"text/template"
)

//go:embed assets/reply.tmpl
var replyTmpl string

type Params struct {
	Name     string
	Markdown string
}

// Templator renders the message handed back to the calling agent.
type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func (g *Templator) Template(params Params) (string, error) {
	g.once.Do(func() {
		g.tmpl = template.Must(template.New("reply").Parse(replyTmpl))
	})

	var data bytes.Buffer
	if err := g.tmpl.Execute(&data, params); err != nil {
		return "", err
	}
	return data.String(), nil
}
