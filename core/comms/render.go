package comms

import (
	"bytes"
	htmltmpl "html/template"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

type (
	Rendered struct {
		Subject string
		Text    string
		HTML    string
	}

	// Renderer executes template sources against an entry Context.
	// Parsed templates are cached by source.
	Renderer struct {
		strict     bool
		missingKey string
		mu         sync.Mutex
		text       map[string]*texttmpl.Template
		html       map[string]*htmltmpl.Template
	}
)

// NewRenderer returns a Renderer; strict makes a missing context key an error instead of an empty value.
func NewRenderer(strict bool) *Renderer {
	missingKey := "missingkey=zero"
	if strict {
		missingKey = "missingkey=error"
	}
	return &Renderer{
		strict:     strict,
		missingKey: missingKey,
		text:       make(map[string]*texttmpl.Template),
		html:       make(map[string]*htmltmpl.Template),
	}
}

func (r *Renderer) textTemplate(src string) (*texttmpl.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.text[src]; ok {
		return tmpl, nil
	}
	tmpl, err := texttmpl.New("text").Option(r.missingKey).Parse(src)
	if err != nil {
		return nil, err
	}
	r.text[src] = tmpl
	return tmpl, nil
}

func (r *Renderer) htmlTemplate(src string) (*htmltmpl.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.html[src]; ok {
		return tmpl, nil
	}
	tmpl, err := htmltmpl.New("html").Option(r.missingKey).Parse(src)
	if err != nil {
		return nil, err
	}
	r.html[src] = tmpl
	return tmpl, nil
}

func (r *Renderer) renderText(src string, data Context) (string, error) {
	if src == "" {
		return "", nil
	}
	tmpl, err := r.textTemplate(src)
	if err != nil {
		return "", err
	}
	var buff bytes.Buffer
	if err = tmpl.Execute(&buff, map[string]interface{}(data)); err != nil {
		return "", err
	}
	return r.clean(buff.String()), nil
}

func (r *Renderer) renderHTML(src string, data Context) (string, error) {
	if src == "" {
		return "", nil
	}
	tmpl, err := r.htmlTemplate(src)
	if err != nil {
		return "", err
	}
	var buff bytes.Buffer
	if err = tmpl.Execute(&buff, map[string]interface{}(data)); err != nil {
		return "", err
	}
	return r.clean(buff.String()), nil
}

// missing map keys print as "<no value>" even with missingkey=zero
var noValue = strings.NewReplacer("<no value>", "", "&lt;no value&gt;", "")

func (r *Renderer) clean(out string) string {
	if !r.strict {
		out = noValue.Replace(out)
	}
	return strings.TrimSpace(out)
}

func (r *Renderer) Render(tpl Template, data Context) (Rendered, error) {
	if data == nil {
		data = Context{}
	}
	var (
		out Rendered
		err error
	)
	if out.Subject, err = r.renderText(tpl.Subject, data); err != nil {
		return Rendered{}, errors.Wrapf(err, "rendering %s subject", tpl.Slug)
	}
	if out.Text, err = r.renderText(tpl.BodyText, data); err != nil {
		return Rendered{}, errors.Wrapf(err, "rendering %s text body", tpl.Slug)
	}
	if out.HTML, err = r.renderHTML(tpl.BodyHTML, data); err != nil {
		return Rendered{}, errors.Wrapf(err, "rendering %s html body", tpl.Slug)
	}
	return out, nil
}
