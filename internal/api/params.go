package api

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"

	"github.com/lukas-pastva/argo-workflows-ui/internal/services"
)

// optionalQuery binds an optional form-style query parameter into dst,
// leaving dst untouched when the parameter is absent.
func optionalQuery[T any](q url.Values, name string, dst *T) error {
	var value *T
	if err := runtime.BindQueryParameter("form", true, false, name, q, &value); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
	}
	if value != nil {
		*dst = *value
	}
	return nil
}

func bindListOptions(c echo.Context) (services.ListOptions, error) {
	var opts services.ListOptions
	q := c.QueryParams()
	if err := optionalQuery(q, "limit", &opts.Limit); err != nil {
		return opts, err
	}
	if err := optionalQuery(q, "cursor", &opts.Cursor); err != nil {
		return opts, err
	}
	return opts, nil
}

func bindLogOptions(c echo.Context) (services.LogOptions, error) {
	opts := services.DefaultLogOptions()
	q := c.QueryParams()

	if err := optionalQuery(q, "follow", &opts.Follow); err != nil {
		return opts, err
	}
	strs := []struct {
		name string
		dst  *string
	}{
		{"container", &opts.Container},
		{"nodeId", &opts.NodeID},
		{"podName", &opts.PodName},
		{"sinceTime", &opts.SinceTime},
		{"sinceSeconds", &opts.SinceSeconds},
		{"tailLines", &opts.TailLines},
		{"timestamps", &opts.Timestamps},
		{"previous", &opts.Previous},
	}
	for _, p := range strs {
		if err := optionalQuery(q, p.name, p.dst); err != nil {
			return opts, err
		}
	}
	return opts, nil
}
