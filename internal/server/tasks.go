package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"hermes/internal/domain"
	"hermes/internal/engine"
	"hermes/internal/richnote"
)

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "save-task",
		Method:      http.MethodPost,
		Path:        "/tasks",
		Summary:     "Create a task, or rename an existing one",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body SaveTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.SaveTask(ctx, input.Body.toDomain(), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete a task; its documents move to an orphan folder",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "append-note",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/notes",
		Summary:       "Append a plain or rich note to the task diary",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body AppendNoteRequest `json:"body"`
	}) (*struct {
		Body DiaryEntryResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var (
			entry domain.DiaryEntry
			err   error
		)
		switch {
		case input.Body.Kind != "" && input.Body.Note != "":
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "send either nota or kind/value, not both", nil)
		case input.Body.Kind != "":
			entry, err = e.AppendRichNote(ctx, input.ID, richnote.Kind(strings.ToUpper(input.Body.Kind)), input.Body.Name, input.Body.Value, actorID)
		default:
			entry, err = e.AppendNote(ctx, input.ID, input.Body.Note, actorID)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DiaryEntryResponse `json:"body"`
		}{Body: DiaryEntryResponse{Date: entry.Date, Note: entry.Note}}, nil
	})
}

func registerImport(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "import-snapshot",
		Method:      http.MethodPost,
		Path:        "/import",
		Summary:     "Load items and tasks in one transaction",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		Replace bool          `query:"replace" doc:"Clear the store first"`
		Body    ImportRequest `json:"body"`
	}) (*struct {
		Body engine.ImportResult `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		var snap domain.Snapshot
		for _, it := range input.Body.Items {
			snap.Items = append(snap.Items, it.toDomain())
		}
		for _, t := range input.Body.Tasks {
			snap.Tasks = append(snap.Tasks, t.toDomain())
		}
		res, err := e.Import(ctx, snap, engine.ImportOptions{Replace: input.Replace}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ImportResult `json:"body"`
		}{Body: res}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent changes",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		EntityKind string `query:"entity_kind" doc:"item, task or snapshot"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		items, err := e.ListEvents(ctx, normalizeLimit(input.Limit), input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(fmt.Errorf("list events: %w", err))
		}
		out := make([]EventResponse, 0, len(items))
		for _, evt := range items {
			out = append(out, eventResponse(evt))
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: out}, nil
	})
}
