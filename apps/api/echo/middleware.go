package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wwu-chemlab/chemlab/core"
	"github.com/wwu-chemlab/chemlab/core/course"
	"github.com/wwu-chemlab/chemlab/core/user"
)

const contextObjectKey = "object"

// roleMiddleware only lets through active users having any of roles; admins always go through.
// Roles are read from the database so that revoked roles apply before the token expires.
func roleMiddleware(svc user.Service, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			if usr.IsAdmin() {
				return next(ctx)
			}
			for _, role := range roles {
				if usr.HasRole(role) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return roleMiddleware(svc)
}

func instructorMiddleware(svc user.Service) echo.MiddlewareFunc {
	return roleMiddleware(svc, user.RoleInstructor)
}

// activeUserMiddleware rejects deactivated users holding a still valid token.
func activeUserMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			return next(ctx)
		}
	}
}

func ctxUserOrAdminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			if ctx.Param("id") == ctxUsr.ID || ctxUsr.IsAdmin() {
				if usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set(contextObjectKey, usr)
					return next(ctx)
				} else if !errors.Is(err, core.ErrNotFound) {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

// isStaff reports whether usr manages courses rather than taking them.
func isStaff(usr user.User) bool {
	return usr.IsAdmin() || usr.IsInstructor()
}

// getContextStudent returns the student profile of the context user.
func getContextStudent(ctx echo.Context, users user.Service, courses course.Service) (course.Student, error) {
	usr, err := getContextUser(ctx, users)
	if err != nil {
		return course.Student{}, errors.Wrap(err, "getting context user")
	}
	st, err := courses.GetStudentByUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return course.Student{}, errNoStudentProfile
		}
		return course.Student{}, errors.Wrap(err, "finding student by user")
	}
	return st, nil
}
