// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"strings"

	"github.com/swaggest/openapi-go/openapi3"
)

// OpenApi renders the route table as an OpenAPI 3 document.
func (rt *Router) OpenApi(title, version string) (*openapi3.Spec, error) {
	spec := &openapi3.Spec{
		Openapi: "3.0.3",
	}
	spec.Info.Title = title
	spec.Info.Version = version

	for _, r := range rt.routes {
		op := openapi3.Operation{}

		for _, seg := range r.segments {
			if seg.param == "" {
				continue
			}

			// Path parameters are always required per the OpenAPI 3 schema.
			required := true
			op.Parameters = append(op.Parameters, openapi3.ParameterOrRef{
				Parameter: &openapi3.Parameter{
					Name:     seg.param,
					In:       openapi3.ParameterInPath,
					Required: &required,
				},
			})
		}

		if len(r.consumes) > 0 {
			content := make(map[string]openapi3.MediaType, len(r.consumes))
			for _, mt := range r.consumes {
				content[string(mt)] = openapi3.MediaType{}
			}
			op.RequestBody = &openapi3.RequestBodyOrRef{
				RequestBody: &openapi3.RequestBody{Content: content},
			}
		}

		op.Responses.MapOfResponseOrRefValues = map[string]openapi3.ResponseOrRef{
			"200": {Response: &openapi3.Response{Description: "OK"}},
		}

		// The '...' wildcard has no equivalent in OpenAPI so it must
		// be removed before registering the operation with the spec.
		pattern := strings.ReplaceAll(r.pattern, "...", "")

		err := spec.AddOperation(r.method, pattern, op)
		if err != nil {
			return nil, err
		}
	}
	return spec, nil
}
