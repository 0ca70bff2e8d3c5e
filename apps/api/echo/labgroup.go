package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wwu-chemlab/chemlab/core/course"
	"github.com/wwu-chemlab/chemlab/core/user"
)

type labGroupApi struct {
	users    user.Service
	svc      course.Service
	validate *validator.Validate
}

func registerLabGroupAPI(
	e *echo.Echo,
	jwt echo.MiddlewareFunc,
	users user.Service,
	svc course.Service,
	validate *validator.Validate,
) {
	api := labGroupApi{
		users:    users,
		svc:      svc,
		validate: validate,
	}

	g := e.Group("/labgroup", jwt, activeUserMiddleware(users))
	g.GET("", api.query)
	g.GET("/:id", api.retrieve)
	g.POST("", api.create, instructorMiddleware(users))
	g.PUT("/:id", api.update, instructorMiddleware(users))
	g.DELETE("/:id", api.destroy, instructorMiddleware(users))
}

type (
	LabGroupList struct {
		LabGroups []course.LabGroup `json:"labgroups"`
	}

	LabGroupPartialList struct {
		LabGroups []course.LabGroupPartial `json:"labgroups"`
	}
)

func (api *labGroupApi) query(ctx echo.Context) error {
	filter := new(course.LabGroupFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, LabGroupList{LabGroups: []course.LabGroup{}})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	groups, err := api.svc.QueryLabGroups(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying lab groups")
	}

	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if isStaff(usr) {
		if groups == nil {
			groups = []course.LabGroup{}
		}
		return ctx.JSON(http.StatusOK, LabGroupList{LabGroups: groups})
	}

	partials := make([]course.LabGroupPartial, len(groups))
	for i, lg := range groups {
		partials[i] = lg.Partial()
	}
	return ctx.JSON(http.StatusOK, LabGroupPartialList{LabGroups: partials})
}

func (api *labGroupApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	lg, err := api.svc.GetLabGroup(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting lab group")
	}

	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if isStaff(usr) {
		return ctx.JSON(http.StatusOK, lg)
	}
	return ctx.JSON(http.StatusOK, lg.Partial())
}

func (api *labGroupApi) create(ctx echo.Context) error {
	var data course.LabGroupData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LabGroupData")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	lg, err := api.svc.CreateLabGroup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating lab group")
	}
	return ctx.JSON(http.StatusCreated, lg)
}

func (api *labGroupApi) update(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data course.LabGroupData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LabGroupData")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	lg, err := api.svc.UpdateLabGroup(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating lab group")
	}
	return ctx.JSON(http.StatusOK, lg)
}

func (api *labGroupApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteLabGroup(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting lab group")
	}
	return ctx.NoContent(http.StatusNoContent)
}
