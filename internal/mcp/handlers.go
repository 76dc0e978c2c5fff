package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/quill/internal/content"
	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/ops"
)

// Deps are the collections the tools operate on.
type Deps struct {
	Products   *ops.Products
	BrainDumps *ops.BrainDumps
	Projects   *ops.Projects
	Handoffs   *ops.Handoffs
	User       ops.UserFunc
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// Request types for each tool

// ListRequest represents the arguments for the *_list tools.
type ListRequest struct {
	Type    string `json:"type,omitempty"`
	Bucket  string `json:"bucket,omitempty"`
	Query   string `json:"query,omitempty"`
	Refresh bool   `json:"refresh,omitempty"`
}

// RefRequest identifies one record.
type RefRequest struct {
	ID     string `json:"id"`
	Source string `json:"source,omitempty"`
}

// ProductCreateRequest represents the arguments for product_create.
type ProductCreateRequest struct {
	Title     string           `json:"title"`
	Type      string           `json:"type,omitempty"`
	Status    string           `json:"status,omitempty"`
	ProjectID *string          `json:"project_id,omitempty"`
	Metadata  content.Metadata `json:"metadata,omitempty"`
}

// ProductUpdateRequest represents the arguments for product_update.
type ProductUpdateRequest struct {
	ID        string           `json:"id"`
	Source    string           `json:"source,omitempty"`
	Title     *string          `json:"title,omitempty"`
	Type      *string          `json:"type,omitempty"`
	Status    *string          `json:"status,omitempty"`
	ProjectID *string          `json:"project_id,omitempty"`
	Metadata  content.Metadata `json:"metadata,omitempty"`
}

// BrainDumpCreateRequest represents the arguments for braindump_create.
type BrainDumpCreateRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Content     string           `json:"content,omitempty"`
	Status      string           `json:"status,omitempty"`
	ProjectID   *string          `json:"project_id,omitempty"`
	Metadata    content.Metadata `json:"metadata,omitempty"`
}

// BrainDumpUpdateRequest represents the arguments for braindump_update.
type BrainDumpUpdateRequest struct {
	ID          string           `json:"id"`
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Content     *string          `json:"content,omitempty"`
	Status      *string          `json:"status,omitempty"`
	ProjectID   *string          `json:"project_id,omitempty"`
	Metadata    content.Metadata `json:"metadata,omitempty"`
}

// ProjectCreateRequest represents the arguments for project_create.
type ProjectCreateRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status,omitempty"`
	Sections    []content.Section `json:"sections,omitempty"`
}

// ProjectUpdateRequest represents the arguments for project_update.
type ProjectUpdateRequest struct {
	ID          string  `json:"id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// AppendRequest represents the arguments for project_append.
type AppendRequest struct {
	ID      string `json:"id"`
	Section string `json:"section"`
	Content string `json:"content"`
	Create  bool   `json:"create,omitempty"`
}

// ComposeRequest represents the arguments for project_compose.
type ComposeRequest struct {
	ID     string `json:"id"`
	Format string `json:"format,omitempty"`
}

// DeleteResult is returned by the *_delete tools.
type DeleteResult struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// ProductDetail is returned by product_get.
type ProductDetail struct {
	ops.ProductView
	Resume content.Resume `json:"resume"`
}

// Products

// HandleProductList handles the product_list tool call.
func (h *Handlers) HandleProductList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	items, err := loadOrRefresh(ctx, h.deps.Products.Collection, input.Refresh)
	if err != nil {
		return errorResult(err), nil
	}
	filtered := ops.FilterProducts(items, ops.FilterInput{Type: input.Type, Bucket: input.Bucket, Query: input.Query})

	return successResult(map[string]any{
		"items": ops.ViewProducts(filtered),
		"stats": ops.Summarize(items),
	})
}

// HandleProductGet handles the product_get tool call.
func (h *Handlers) HandleProductGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RefRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	p, err := h.getProduct(ctx, input)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(ProductDetail{ProductView: ops.ViewProduct(p), Resume: content.ResumeTarget(p)})
}

// HandleProductCreate handles the product_create tool call.
func (h *Handlers) HandleProductCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProductCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	p, err := h.deps.Products.Create(ctx, ops.ProductInput{
		Title:     input.Title,
		Type:      input.Type,
		Status:    input.Status,
		ProjectID: input.ProjectID,
		Metadata:  input.Metadata,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(ops.ViewProduct(p))
}

// HandleProductUpdate handles the product_update tool call.
func (h *Handlers) HandleProductUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProductUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	p, err := h.deps.Products.Update(ctx, input.Source, input.ID, ops.ProductPatch{
		Title:     input.Title,
		Type:      input.Type,
		Status:    input.Status,
		ProjectID: input.ProjectID,
		Metadata:  input.Metadata,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(ops.ViewProduct(p))
}

// HandleProductDelete handles the product_delete tool call.
func (h *Handlers) HandleProductDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RefRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.deps.Products.Delete(ctx, input.Source, input.ID); err != nil {
		return errorResult(err), nil
	}

	return successResult(DeleteResult{Deleted: true, ID: input.ID})
}

// HandleProductContinue handles the product_continue tool call.
func (h *Handlers) HandleProductContinue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RefRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	p, err := h.getProduct(ctx, input)
	if err != nil {
		return errorResult(err), nil
	}
	user := ""
	if h.deps.User != nil {
		user = h.deps.User()
	}
	handoff, err := h.deps.Handoffs.Continue(ctx, user, p)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(handoff)
}

func (h *Handlers) getProduct(ctx context.Context, ref RefRequest) (content.Product, error) {
	if strings.TrimSpace(ref.Source) == "" {
		return h.deps.Products.Get(ctx, ref.ID)
	}
	return h.deps.Products.GetFrom(ctx, ref.Source, ref.ID)
}

// Brain dumps

// HandleBrainDumpList handles the braindump_list tool call.
func (h *Handlers) HandleBrainDumpList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	items, err := loadOrRefresh(ctx, h.deps.BrainDumps.Collection, input.Refresh)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"items": items})
}

// HandleBrainDumpGet handles the braindump_get tool call.
func (h *Handlers) HandleBrainDumpGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RefRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	d, err := h.deps.BrainDumps.Get(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(d)
}

// HandleBrainDumpCreate handles the braindump_create tool call.
func (h *Handlers) HandleBrainDumpCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BrainDumpCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	d, err := h.deps.BrainDumps.Create(ctx, ops.BrainDumpInput{
		Title:       input.Title,
		Description: input.Description,
		Content:     input.Content,
		Status:      input.Status,
		ProjectID:   input.ProjectID,
		Metadata:    input.Metadata,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(d)
}

// HandleBrainDumpUpdate handles the braindump_update tool call.
func (h *Handlers) HandleBrainDumpUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BrainDumpUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	d, err := h.deps.BrainDumps.Update(ctx, input.ID, ops.BrainDumpPatch{
		Title:       input.Title,
		Description: input.Description,
		Content:     input.Content,
		Status:      input.Status,
		ProjectID:   input.ProjectID,
		Metadata:    input.Metadata,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(d)
}

// HandleBrainDumpDelete handles the braindump_delete tool call.
func (h *Handlers) HandleBrainDumpDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RefRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.deps.BrainDumps.Delete(ctx, input.ID); err != nil {
		return errorResult(err), nil
	}

	return successResult(DeleteResult{Deleted: true, ID: input.ID})
}

// Projects

// HandleProjectList handles the project_list tool call.
func (h *Handlers) HandleProjectList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	items, err := loadOrRefresh(ctx, h.deps.Projects.Collection, input.Refresh)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"items": items})
}

// HandleProjectGet handles the project_get tool call.
func (h *Handlers) HandleProjectGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RefRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	p, err := h.deps.Projects.Get(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(p)
}

// HandleProjectCreate handles the project_create tool call.
func (h *Handlers) HandleProjectCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	p, err := h.deps.Projects.Create(ctx, ops.ProjectInput{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Sections:    input.Sections,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(p)
}

// HandleProjectUpdate handles the project_update tool call.
func (h *Handlers) HandleProjectUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	p, err := h.deps.Projects.Update(ctx, input.ID, ops.ProjectPatch{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(p)
}

// HandleProjectDelete handles the project_delete tool call.
func (h *Handlers) HandleProjectDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RefRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.deps.Projects.Delete(ctx, input.ID); err != nil {
		return errorResult(err), nil
	}

	return successResult(DeleteResult{Deleted: true, ID: input.ID})
}

// HandleProjectAppend handles the project_append tool call.
func (h *Handlers) HandleProjectAppend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AppendRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.deps.Projects.AppendSection(ctx, ops.AppendInput{
		ID:      input.ID,
		Section: input.Section,
		Content: input.Content,
		Create:  input.Create,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleProjectCompose handles the project_compose tool call.
func (h *Handlers) HandleProjectCompose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ComposeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.deps.Projects.Compose(ctx, ops.ComposeInput{ID: input.ID, Format: input.Format})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

func loadOrRefresh[T any](ctx context.Context, c *ops.Collection[T], refresh bool) ([]T, error) {
	if refresh {
		return c.Refresh(ctx)
	}
	return c.Load(ctx)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var qErr *errors.QuillError
	if stderrors.As(err, &qErr) {
		errorObj := map[string]any{
			"code":    qErr.Code,
			"message": qErr.Message,
			"status":  qErr.Status,
		}
		if qErr.Code != errors.ErrInternal && qErr.Details != nil {
			errorObj["details"] = qErr.Details
		}
		if hint := errors.Remediation(err); hint != "" {
			errorObj["remediation"] = hint
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	body, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(body)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
