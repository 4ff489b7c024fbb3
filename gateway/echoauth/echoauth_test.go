package echoauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ggoodman/headerauth-go/auth"
	"github.com/ggoodman/headerauth-go/auth/authtest"
	"github.com/ggoodman/headerauth-go/gateway"
	"github.com/ggoodman/headerauth-go/identity/memory"
	"github.com/ggoodman/headerauth-go/provision"
	"github.com/ggoodman/headerauth-go/sessions"
	"github.com/ggoodman/headerauth-go/sessions/memorystore"
	"github.com/labstack/echo/v4"
)

func newEcho(t *testing.T) *echo.Echo {
	t.Helper()
	authn := authtest.NewStatic("X-User-Jwt").
		Accept("good", "a@x.com", "author").
		Reject("forged", auth.ErrSignatureInvalid)
	prov, err := provision.New(memory.New())
	if err != nil {
		t.Fatal(err)
	}
	store := memorystore.New(time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	mgr, err := sessions.NewManager(store)
	if err != nil {
		t.Fatal(err)
	}
	g, err := gateway.New(authn, prov, mgr)
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	e.Use(Middleware(g))
	e.GET("/", func(c echo.Context) error {
		if id := Identity(c); id != nil {
			return c.String(http.StatusOK, "hello "+id.Email)
		}
		if n, ok := Notice(c); ok {
			return c.String(http.StatusOK, "notice "+n.Kind.String())
		}
		return c.String(http.StatusOK, "anonymous")
	})
	return e
}

func serve(e *echo.Echo, tok string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if tok != "" {
		r.Header.Set("X-User-Jwt", tok)
	}
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func TestEchoMiddleware(t *testing.T) {
	e := newEcho(t)

	w := serve(e, "good")
	if w.Code != http.StatusFound {
		t.Fatalf("want login redirect, got %d", w.Code)
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == sessions.DefaultCookieName {
			cookie = &http.Cookie{Name: c.Name, Value: c.Value}
		}
	}
	if cookie == nil {
		t.Fatalf("no session cookie")
	}

	if w := serve(e, "good", cookie); w.Body.String() != "hello a@x.com" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
	if w := serve(e, "forged"); w.Body.String() != "notice signature_invalid" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
	if w := serve(e, "unknown"); w.Body.String() != "anonymous" {
		t.Fatalf("token invalid must be silent, got %q", w.Body.String())
	}
}
