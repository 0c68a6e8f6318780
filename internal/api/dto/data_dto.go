package dto

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/api/dispatch"
	"github.com/spec-kit/field-service/pkg/util"
)

// reserved query keys; every other key is passed through as a filter.
var dataQueryKeys = map[string]struct{}{
	"type": {}, "id": {}, "search": {}, "include": {}, "limit": {}, "offset": {},
}

// ReadRequestFromQuery builds a read request from GET /api/data query parameters.
func ReadRequestFromQuery(query map[string]string) (dispatch.ReadRequest, error) {
	req := dispatch.ReadRequest{
		Type:    dispatch.ReadType(query["type"]),
		Search:  strings.TrimSpace(query["search"]),
		Filters: map[string]string{},
	}
	if req.Type == "" {
		return req, util.NewValidationError("type query parameter is required", nil)
	}
	if raw := query["id"]; raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return req, util.NewValidationError("invalid id", map[string]any{"id": raw})
		}
		req.ID = &id
	}
	if raw := query["include"]; raw != "" {
		for _, inc := range strings.Split(raw, ",") {
			if inc = strings.TrimSpace(inc); inc != "" {
				req.Includes = append(req.Includes, inc)
			}
		}
	}
	var err error
	if req.Limit, err = intParam(query, "limit"); err != nil {
		return req, err
	}
	if req.Offset, err = intParam(query, "offset"); err != nil {
		return req, err
	}
	for key, val := range query {
		if _, reserved := dataQueryKeys[key]; !reserved {
			req.Filters[key] = val
		}
	}
	return req, nil
}

func intParam(query map[string]string, key string) (int, error) {
	raw := query[key]
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, util.NewValidationError("invalid "+key, map[string]any{key: raw})
	}
	return n, nil
}
