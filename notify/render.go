package notify

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/elnormous/contenttype"
)

var (
	htmlMediaType  = contenttype.NewMediaType("text/html")
	jsonMediaType  = contenttype.NewMediaType("application/json")
	plainMediaType = contenttype.NewMediaType("text/plain")
	renderTypes    = []contenttype.MediaType{htmlMediaType, jsonMediaType, plainMediaType}
)

var (
	operatorTmpl = template.Must(template.New("operator").Parse(
		`<div class="notice notice-error" data-kind="{{.Kind}}"><p>{{.Message}}</p></div>`))
	userTmpl = template.Must(template.New("user").Parse(
		`<div class="headerauth-notification-bar" role="alert" data-kind="{{.Kind}}">{{.Message}}</div>`))
)

func execute(t *template.Template, n Notice) template.HTML {
	var buf bytes.Buffer
	if err := t.Execute(&buf, n); err != nil {
		return ""
	}
	return template.HTML(buf.String())
}

// OperatorBanner renders n as an admin error notice.
func OperatorBanner(n Notice) template.HTML { return execute(operatorTmpl, n) }

// UserBanner renders n as a notification bar for end users.
func UserBanner(n Notice) template.HTML { return execute(userTmpl, n) }

// Render writes n in the representation the client prefers: an HTML user
// banner, a JSON object, or plain text. Unacceptable Accept headers get
// plain text.
func Render(w http.ResponseWriter, r *http.Request, status int, n Notice) error {
	mt, _, err := contenttype.GetAcceptableMediaType(r, renderTypes)
	if err != nil {
		mt = plainMediaType
	}

	var body []byte
	switch {
	case mt.Type == "application" && mt.Subtype == "json":
		body, err = json.Marshal(n)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/json")
	case mt.Type == "text" && mt.Subtype == "html":
		body = []byte(UserBanner(n))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	default:
		body = []byte(n.Message)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}
