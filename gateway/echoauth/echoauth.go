// Package echoauth mounts a gateway.Gateway in an Echo router.
package echoauth

import (
	"github.com/ggoodman/headerauth-go/gateway"
	"github.com/ggoodman/headerauth-go/identity"
	"github.com/ggoodman/headerauth-go/notify"
	"github.com/labstack/echo/v4"
)

// Context keys set on echo.Context for handlers that prefer c.Get.
const (
	ContextKeyIdentity = "headerauth.identity"
	ContextKeyNotice   = "headerauth.notice"
)

// Middleware runs g for every request routed through the Echo instance.
func Middleware(g *gateway.Gateway) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r, done := g.Handle(c.Response(), c.Request())
			if done {
				return nil
			}
			c.SetRequest(r)
			if id := gateway.IdentityFromContext(r.Context()); id != nil {
				c.Set(ContextKeyIdentity, id)
			}
			if n, ok := notify.Pending(r.Context()); ok {
				c.Set(ContextKeyNotice, n)
			}
			return next(c)
		}
	}
}

// Identity returns the session identity, or nil.
func Identity(c echo.Context) *identity.Identity {
	id, _ := c.Get(ContextKeyIdentity).(*identity.Identity)
	return id
}

// Notice returns the pending authentication notice, if any.
func Notice(c echo.Context) (notify.Notice, bool) {
	n, ok := c.Get(ContextKeyNotice).(notify.Notice)
	return n, ok
}
