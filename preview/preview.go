// Package preview carries the CMS preview ref from the session cookie to
// the request context.
package preview

import (
	"context"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/eringen/cmsblog/cms"
)

// SessionName is the name of the preview session cookie.
const SessionName = "preview_session"

type ctxKey struct{}

// WithRef returns a copy of ctx carrying ref.
func WithRef(ctx context.Context, ref cms.Ref) context.Context {
	return context.WithValue(ctx, ctxKey{}, ref)
}

// FromContext returns the preview ref stored in ctx, or "" outside preview.
func FromContext(ctx context.Context) cms.Ref {
	ref, _ := ctx.Value(ctxKey{}).(cms.Ref)
	return ref
}

// State copies the preview ref from the session onto the request context.
// It must run after the session middleware.
func State() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ref := sessionRef(c); ref != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(WithRef(req.Context(), ref)))
			}
			return next(c)
		}
	}
}

func sessionRef(c echo.Context) cms.Ref {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return ""
	}
	ref, _ := sess.Values["ref"].(string)
	return cms.Ref(ref)
}

// Enter stores ref in the preview session.
func Enter(c echo.Context, ref cms.Ref) error {
	sess, err := open(c)
	if err != nil {
		return err
	}
	sess.Values["ref"] = string(ref)
	return sess.Save(c.Request(), c.Response())
}

// Exit deletes the preview session.
func Exit(c echo.Context) error {
	sess, err := open(c)
	if err != nil {
		return err
	}
	delete(sess.Values, "ref")
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// open returns the preview session for writing. A cookie that no longer
// decodes (rotated secret, tampered value) yields a fresh session, which
// replaces it on Save.
func open(c echo.Context) (*sessions.Session, error) {
	sess, err := session.Get(SessionName, c)
	if sess == nil {
		return nil, err
	}
	if err != nil {
		c.Logger().Debugf("discarding undecodable preview cookie: %v", err)
	}
	return sess, nil
}
