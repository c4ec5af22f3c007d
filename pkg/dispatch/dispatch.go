// Package dispatch exposes release runs over HTTP. A dispatch request
// carries only the release tag; the rest of the invocation is the source
// context the service was started with, so the gate applies to HTTP runs
// exactly as it does to CLI runs.
package dispatch

import (
	"context"
	"errors"

	pz "github.com/weberc2/httpeasy"

	"github.com/weberc2/releaser/pkg/catalog"
	"github.com/weberc2/releaser/pkg/pipeline"
	"github.com/weberc2/releaser/pkg/release"
)

type DispatchService struct {
	Pipeline *pipeline.Pipeline
	Catalog  *catalog.Catalog

	// Invocation is the source context discovered at startup. Its tag is
	// empty; each dispatch request copies it and fills in the tag.
	Invocation release.Invocation
}

func (ds *DispatchService) DispatchRoute() pz.Route {
	return pz.Route{
		Path:   "/api/dispatch",
		Method: "POST",
		Handler: func(r pz.Request) pz.Response {
			var payload struct {
				Tag string `json:"tag"`
			}
			if err := r.JSON(&payload); err != nil {
				return pz.BadRequest(nil, struct {
					Message, Error string
				}{
					Message: "failed to parse dispatch JSON",
					Error:   err.Error(),
				})
			}

			invocation := ds.Invocation
			invocation.Tag = payload.Tag

			outcomes, err := ds.Pipeline.Run(
				context.Background(),
				ds.Catalog,
				&invocation,
			)
			if err != nil {
				if errors.Is(err, release.ErrMissingTag) {
					return pz.BadRequest(
						pz.String("Missing release tag"),
						struct {
							Message, Error string
						}{
							Message: "dispatching release",
							Error:   err.Error(),
						},
					)
				}

				var denied *release.DeniedErr
				if errors.As(err, &denied) {
					return pz.Unauthorized(
						pz.String("Invocation denied by release gate"),
						struct {
							Message, Error string
							Tag            string
						}{
							Message: "dispatching release",
							Error:   err.Error(),
							Tag:     payload.Tag,
						},
					)
				}

				return pz.InternalServerError(struct {
					Message, Error string
					Tag            string
				}{
					Message: "dispatching release",
					Error:   err.Error(),
					Tag:     payload.Tag,
				})
			}

			return pz.Ok(
				pz.JSON(release.Reports(outcomes)),
				struct {
					Message string
					Tag     string
				}{
					Message: "release run finished",
					Tag:     payload.Tag,
				},
			)
		},
	}
}

func (ds *DispatchService) VariantsRoute() pz.Route {
	return pz.Route{
		Path:   "/api/variants",
		Method: "GET",
		Handler: func(r pz.Request) pz.Response {
			return pz.Ok(pz.JSON(ds.Catalog), struct {
				Message string
			}{
				Message: "listed release catalog",
			})
		},
	}
}

func (ds *DispatchService) Routes() []pz.Route {
	return []pz.Route{
		ds.DispatchRoute(),
		ds.VariantsRoute(),
	}
}
