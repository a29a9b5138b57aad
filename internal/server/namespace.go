package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"hermes/internal/engine"
	"hermes/internal/knowledge"
)

func registerNamespace(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-folders",
		Method:      http.MethodGet,
		Path:        "/folders",
		Summary:     "All folders: roots, action folders, orphan folders and stored folders",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []NodeResponse `json:"body"`
	}, error) {
		folders, err := e.Folders(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []NodeResponse `json:"body"`
		}{Body: mapNodes(folders)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-nodes",
		Method:      http.MethodGet,
		Path:        "/nodes",
		Summary:     "Browse a folder, or search everything when q is set",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Parent string `query:"parent" doc:"Folder id to list; empty lists the top level"`
		Q      string `query:"q" doc:"Search term; when set, parent is ignored"`
		Mode   string `query:"mode" enum:"all,folders,files" default:"all"`
	}) (*struct {
		Body NodesResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Q) != "" {
			mode, err := knowledge.ParseSearchMode(input.Mode)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"mode": input.Mode})
			}
			res, err := e.Search(ctx, input.Q, mode)
			if err != nil {
				return nil, handleError(err)
			}
			expand := make([]string, 0, len(res.Expand))
			for _, k := range res.Expand {
				expand = append(expand, k.String())
			}
			return &struct {
				Body NodesResponse `json:"body"`
			}{Body: NodesResponse{Items: mapNodes(res.Nodes), Expand: expand}}, nil
		}
		var current *knowledge.Key
		if input.Parent != "" {
			k := knowledge.ParseKey(input.Parent)
			current = &k
		}
		nodes, err := e.Browse(ctx, current)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NodesResponse `json:"body"`
		}{Body: NodesResponse{Items: mapNodes(nodes)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-node",
		Method:      http.MethodGet,
		Path:        "/nodes/{id}",
		Summary:     "Get a node by id",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body NodeResponse `json:"body"`
	}, error) {
		n, err := e.Node(ctx, knowledge.ParseKey(input.ID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NodeResponse `json:"body"`
		}{Body: nodeResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-breadcrumb",
		Method:      http.MethodGet,
		Path:        "/nodes/{id}/breadcrumb",
		Summary:     "Path from the top-level root down to the node",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []NodeResponse `json:"body"`
	}, error) {
		path, err := e.Breadcrumb(ctx, knowledge.ParseKey(input.ID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []NodeResponse `json:"body"`
		}{Body: mapNodes(path)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-diary",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/diary",
		Summary:     "Diary document of a task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body NodeResponse `json:"body"`
	}, error) {
		doc, err := e.Diary(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NodeResponse `json:"body"`
		}{Body: nodeResponse(doc)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-categories",
		Method:      http.MethodGet,
		Path:        "/categories",
		Summary:     "Distinct item categories",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []string `json:"body"`
	}, error) {
		cats, err := e.Categories(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []string `json:"body"`
		}{Body: nonNilSlice(cats)}, nil
	})
}
