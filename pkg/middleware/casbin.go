package middleware

import (
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zhou-shi/pentama-app/internal/auth"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`

const (
	readOnly   = "^GET$"
	readWrite  = "^(GET|POST)$"
	readUpdate = "^(GET|PUT)$"
	anyMethod  = "^(GET|POST|PUT|DELETE)$"
)

// rbacPolicy maps roles to the route patterns they may call.
var rbacPolicy = [][]string{
	{auth.RoleStudent, "/api/student/*", readWrite},
	{auth.RoleLecturer, "/api/lecturer/*", readWrite},
	{auth.RoleAdmin, "/api/admin/*", anyMethod},

	{auth.RoleStudent, "/api/profile*", readUpdate},
	{auth.RoleLecturer, "/api/profile*", readUpdate},
	{auth.RoleAdmin, "/api/profile*", readUpdate},

	{auth.RoleStudent, "/api/documents/*", readOnly},
	{auth.RoleLecturer, "/api/documents/*", readOnly},
	{auth.RoleAdmin, "/api/documents/*", readOnly},
}

// NewEnforcer builds the RBAC enforcer from the in-code model and policy.
func NewEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, errors.Wrap(err, "parse rbac model")
	}
	enf, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, errors.Wrap(err, "create enforcer")
	}
	if _, err := enf.AddPolicies(rbacPolicy); err != nil {
		return nil, errors.Wrap(err, "load rbac policy")
	}
	return enf, nil
}

// CasbinMiddleware allows the request when any of the caller's roles may
// access the matched route. It must run after JWTMiddleware.
func CasbinMiddleware(enf *casbin.Enforcer, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := auth.ClaimsFrom(c)
			if err != nil {
				return err
			}
			obj := c.Path()
			act := c.Request().Method
			for _, role := range claims.Roles() {
				allowed, err := enf.Enforce(role, obj, act)
				if err != nil {
					logger.Error("casbin enforce failed", zap.String("role", role), zap.String("obj", obj), zap.Error(err))
					return echo.NewHTTPError(http.StatusInternalServerError, "RBAC system error")
				}
				if allowed {
					return next(c)
				}
			}
			logger.Debug("casbin denied", zap.Strings("roles", claims.Roles()), zap.String("obj", obj), zap.String("act", act))
			return echo.NewHTTPError(http.StatusForbidden, "Forbidden: insufficient permissions")
		}
	}
}
