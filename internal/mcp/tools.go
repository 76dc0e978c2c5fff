package mcp

import "github.com/mark3labs/mcp-go/mcp"

func sourceParam() mcp.ToolOption {
	return mcp.WithString("source",
		mcp.Description("Table the product was read from: creator_contents (default) or projects"),
		mcp.Enum("creator_contents", "projects"),
	)
}

func idParam(what string) mcp.ToolOption {
	return mcp.WithString("id", mcp.Required(), mcp.Description(what+" id (UUID)"))
}

func refreshParam() mcp.ToolOption {
	return mcp.WithBoolean("refresh", mcp.Description("Bypass the cache and re-read the backend"))
}

var productListToolDef = mcp.NewTool("product_list",
	mcp.WithDescription("List the signed-in user's products, newest first, merged from creator_contents and legacy projects. Each item carries its category, progress and status badge."),
	mcp.WithString("type", mcp.Description("Only this product type (ebook, blog, course, ...)")),
	mcp.WithString("bucket", mcp.Description("Only this status bucket: draft, in_progress, generating, complete, published")),
	mcp.WithString("query", mcp.Description("Case-insensitive title substring")),
	refreshParam(),
)

var productGetToolDef = mcp.NewTool("product_get",
	mcp.WithDescription("Get one product with its progress and where 'continue' would resume it."),
	idParam("Product"),
	sourceParam(),
)

var productCreateToolDef = mcp.NewTool("product_create",
	mcp.WithDescription("Create a product in creator_contents."),
	mcp.WithString("title", mcp.Required(), mcp.Description("Product title")),
	mcp.WithString("type", mcp.Description("Product type; free text is normalized (\"E-Book\" becomes ebook)")),
	mcp.WithString("status", mcp.Description("Initial status (default: draft)")),
	mcp.WithString("project_id", mcp.Description("Linked project id")),
	mcp.WithObject("metadata", mcp.Description("Open metadata, e.g. {\"wordCount\": 1200}")),
)

var productUpdateToolDef = mcp.NewTool("product_update",
	mcp.WithDescription("Update a product. Legacy project products accept only title and status."),
	idParam("Product"),
	sourceParam(),
	mcp.WithString("title", mcp.Description("New title")),
	mcp.WithString("type", mcp.Description("New type")),
	mcp.WithString("status", mcp.Description("New status")),
	mcp.WithString("project_id", mcp.Description("New linked project id; empty string unlinks")),
	mcp.WithObject("metadata", mcp.Description("Replaces the whole metadata object")),
)

var productDeleteToolDef = mcp.NewTool("product_delete",
	mcp.WithDescription("Permanently delete a product."),
	idParam("Product"),
	sourceParam(),
)

var productContinueToolDef = mcp.NewTool("product_continue",
	mcp.WithDescription("Record the workflow handoff for a product and return the path its workflow resumes at."),
	idParam("Product"),
	sourceParam(),
)

var braindumpListToolDef = mcp.NewTool("braindump_list",
	mcp.WithDescription("List the signed-in user's brain dumps, newest first."),
	refreshParam(),
)

var braindumpGetToolDef = mcp.NewTool("braindump_get",
	mcp.WithDescription("Get one brain dump with its full content."),
	idParam("Brain dump"),
)

var braindumpCreateToolDef = mcp.NewTool("braindump_create",
	mcp.WithDescription("Create a brain dump. Word count, link count and outline are computed into metadata."),
	mcp.WithString("title", mcp.Required(), mcp.Description("Title")),
	mcp.WithString("description", mcp.Description("Short description")),
	mcp.WithString("content", mcp.Description("Markdown body")),
	mcp.WithString("status", mcp.Description("Initial status (default: draft)")),
	mcp.WithString("project_id", mcp.Description("Linked project id")),
	mcp.WithObject("metadata", mcp.Description("Extra metadata")),
)

var braindumpUpdateToolDef = mcp.NewTool("braindump_update",
	mcp.WithDescription("Update a brain dump. Changing content recomputes its stats."),
	idParam("Brain dump"),
	mcp.WithString("title", mcp.Description("New title")),
	mcp.WithString("description", mcp.Description("New description")),
	mcp.WithString("content", mcp.Description("New markdown body")),
	mcp.WithString("status", mcp.Description("New status")),
	mcp.WithString("project_id", mcp.Description("New linked project id")),
	mcp.WithObject("metadata", mcp.Description("Replaces the whole metadata object")),
)

var braindumpDeleteToolDef = mcp.NewTool("braindump_delete",
	mcp.WithDescription("Permanently delete a brain dump."),
	idParam("Brain dump"),
)

var projectListToolDef = mcp.NewTool("project_list",
	mcp.WithDescription("List the signed-in user's projects, newest first."),
	refreshParam(),
)

var projectGetToolDef = mcp.NewTool("project_get",
	mcp.WithDescription("Get one project with its sections."),
	idParam("Project"),
)

var projectCreateToolDef = mcp.NewTool("project_create",
	mcp.WithDescription("Create a project with optional ordered sections."),
	mcp.WithString("title", mcp.Required(), mcp.Description("Title")),
	mcp.WithString("description", mcp.Description("Description")),
	mcp.WithString("status", mcp.Description("Initial status (default: draft)")),
	mcp.WithArray("sections",
		mcp.Description("Ordered sections"),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":   map[string]any{"type": "string"},
				"content": map[string]any{"type": "string"},
			},
		}),
	),
)

var projectUpdateToolDef = mcp.NewTool("project_update",
	mcp.WithDescription("Update a project's title, description or status."),
	idParam("Project"),
	mcp.WithString("title", mcp.Description("New title")),
	mcp.WithString("description", mcp.Description("New description")),
	mcp.WithString("status", mcp.Description("New status")),
)

var projectDeleteToolDef = mcp.NewTool("project_delete",
	mcp.WithDescription("Permanently delete a project."),
	idParam("Project"),
)

var projectAppendToolDef = mcp.NewTool("project_append",
	mcp.WithDescription("Append text to one section of a project."),
	idParam("Project"),
	mcp.WithString("section", mcp.Required(), mcp.Description("Section title (case-insensitive) or section id")),
	mcp.WithString("content", mcp.Required(), mcp.Description("Text to append")),
	mcp.WithBoolean("create", mcp.Description("Add the section at the end when it does not exist")),
)

var projectComposeToolDef = mcp.NewTool("project_compose",
	mcp.WithDescription("Assemble a project's sections into one document."),
	idParam("Project"),
	mcp.WithString("format", mcp.Description("markdown (default) or json"), mcp.Enum("markdown", "json")),
)
