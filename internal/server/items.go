package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"hermes/internal/engine"
)

var mutationErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusNotFound,
	http.StatusInternalServerError,
}

func registerItems(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-item",
		Method:      http.MethodGet,
		Path:        "/items/{id}",
		Summary:     "Stored item with its domain and origin label",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ItemResponse `json:"body"`
	}, error) {
		detail, err := e.Item(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ItemResponse `json:"body"`
		}{Body: itemResponse(detail)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "save-item",
		Method:        http.MethodPost,
		Path:          "/items",
		Summary:       "Create or replace an item",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateItemRequest `json:"body"`
	}) (*struct {
		Body ItemResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := e.SaveItem(ctx, input.Body.toDomain(), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		detail, err := e.Item(ctx, item.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ItemResponse `json:"body"`
		}{Body: itemResponse(detail)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-link",
		Method:        http.MethodPost,
		Path:          "/links",
		Summary:       "Store a link item",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateLinkRequest `json:"body"`
	}) (*struct {
		Body ItemResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := e.AddLink(ctx, input.Body.Title, input.Body.URL, input.Body.ParentID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		detail, err := e.Item(ctx, item.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ItemResponse `json:"body"`
		}{Body: itemResponse(detail)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-item",
		Method:      http.MethodPatch,
		Path:        "/items/{id}",
		Summary:     "Rename an item, keeping the file extension",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body RenameRequest `json:"body"`
	}) (*struct {
		Body ItemResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := e.RenameItem(ctx, input.ID, input.Body.Title, actorID); err != nil {
			return nil, handleError(err)
		}
		detail, err := e.Item(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ItemResponse `json:"body"`
		}{Body: itemResponse(detail)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-item",
		Method:        http.MethodDelete,
		Path:          "/items/{id}",
		Summary:       "Delete an item; folders must be empty",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteItem(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-orphan-title",
		Method:      http.MethodPut,
		Path:        "/orphans/{task_id}/title",
		Summary:     "Name the folder of a deleted task",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string        `path:"task_id"`
		Body   RenameRequest `json:"body"`
	}) (*struct {
		Body OrphanTitleResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.SetOrphanTitle(ctx, input.TaskID, input.Body.Title, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrphanTitleResponse `json:"body"`
		}{Body: OrphanTitleResponse{TaskID: input.TaskID, Title: input.Body.Title, Items: n}}, nil
	})
}
