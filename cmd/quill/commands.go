package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/quill/internal/content"
	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/ops"
)

// Flags are built per command; a cli flag value remembers being set.
func refreshFlag() cli.Flag {
	return &cli.BoolFlag{Name: "refresh", Aliases: []string{"r"}, Usage: "Bypass the cache and refetch"}
}

func yesFlag() cli.Flag {
	return &cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Skip the confirmation prompt"}
}

func sourceFlag() cli.Flag {
	return &cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Product source: creator_contents|projects (default: look up)"}
}

// load returns the collection's items, refetching when --refresh is given.
func load[T any](c *cli.Context, coll *ops.Collection[T]) ([]T, error) {
	if c.Bool("refresh") {
		return coll.Refresh(c.Context)
	}
	return coll.Load(c.Context)
}

// requireArg returns the first positional argument or an INVALID_REQUEST.
func requireArg(c *cli.Context, what string) (string, error) {
	if c.NArg() == 0 {
		return "", errors.NewInvalidRequest(what + " is required")
	}
	return c.Args().First(), nil
}

// productsCmd creates the products command group.
func productsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "products",
		Usage: "Work with products across creator_contents and projects",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List products with progress and totals",
				Flags: []cli.Flag{
					refreshFlag(),
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Filter by type (ebook, blog, ...)"},
					&cli.StringFlag{Name: "bucket", Aliases: []string{"b"}, Usage: "Filter by status bucket (draft, in_progress, generating, complete, published)"},
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Case-insensitive title search"},
				},
				Action: func(c *cli.Context) error {
					items, err := load(c, e.products.Collection)
					if err != nil {
						return outputError(err)
					}
					filtered := ops.FilterProducts(items, ops.FilterInput{
						Type:   c.String("type"),
						Bucket: c.String("bucket"),
						Query:  c.String("query"),
					})
					return outputJSON(c, map[string]any{
						"items": ops.ViewProducts(filtered),
						"stats": ops.Summarize(items),
					})
				},
			},
			{
				Name:      "show",
				Usage:     "Show one product and where it resumes",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{sourceFlag()},
				Action: func(c *cli.Context) error {
					p, err := e.product(c)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, struct {
						ops.ProductView
						Resume content.Resume `json:"resume"`
					}{ops.ViewProduct(p), content.ResumeTarget(p)})
				},
			},
			{
				Name:  "create",
				Usage: "Create a product in creator_contents",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Usage: "Product title"},
					&cli.StringFlag{Name: "type", Usage: "Product type (default: other)"},
					&cli.StringFlag{Name: "status", Usage: "Status (default: draft)"},
					&cli.StringFlag{Name: "project-id", Usage: "Link to a project"},
					&cli.StringFlag{Name: "metadata", Usage: "Metadata as a JSON object"},
				},
				Action: func(c *cli.Context) error {
					input := ops.ProductInput{
						Title:     c.String("title"),
						Type:      c.String("type"),
						Status:    c.String("status"),
						ProjectID: optional(c, "project-id"),
					}
					if c.IsSet("metadata") {
						meta, err := parseMetadata(c.String("metadata"))
						if err != nil {
							return outputError(err)
						}
						input.Metadata = meta
					}

					p, err := e.products.Create(c.Context, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, ops.ViewProduct(p))
				},
			},
			{
				Name:      "update",
				Usage:     "Change a product's fields",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					sourceFlag(),
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
					&cli.StringFlag{Name: "type", Usage: "New type"},
					&cli.StringFlag{Name: "status", Usage: "New status"},
					&cli.StringFlag{Name: "project-id", Usage: "New project link"},
					&cli.StringFlag{Name: "metadata", Usage: "Replacement metadata as a JSON object"},
				},
				Action: func(c *cli.Context) error {
					id, source, err := e.productRef(c)
					if err != nil {
						return outputError(err)
					}
					patch := ops.ProductPatch{
						Title:     optional(c, "title"),
						Type:      optional(c, "type"),
						Status:    optional(c, "status"),
						ProjectID: optional(c, "project-id"),
					}
					if c.IsSet("metadata") {
						meta, err := parseMetadata(c.String("metadata"))
						if err != nil {
							return outputError(err)
						}
						patch.Metadata = meta
					}

					p, err := e.products.Update(c.Context, source, id, patch)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, ops.ViewProduct(p))
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a product",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{sourceFlag(), yesFlag()},
				Action: func(c *cli.Context) error {
					id, source, err := e.productRef(c)
					if err != nil {
						return outputError(err)
					}
					if !confirm(c, fmt.Sprintf("Delete product %s?", id)) {
						return outputError(errors.NewInvalidRequest("delete cancelled"))
					}
					if err := e.products.Delete(c.Context, source, id); err != nil {
						return outputError(err)
					}
					return outputJSON(c, deleted(id))
				},
			},
			{
				Name:      "continue",
				Usage:     "Hand a product off to its workflow step",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{sourceFlag()},
				Action: func(c *cli.Context) error {
					p, err := e.product(c)
					if err != nil {
						return outputError(err)
					}
					h, err := e.handoffs.Continue(c.Context, e.userID(), p)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, h)
				},
			},
			{
				Name:  "handoff",
				Usage: "Take the pending workflow handoff (printed once, then cleared)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "peek", Usage: "Print without clearing"},
				},
				Action: func(c *cli.Context) error {
					take := e.handoffs.Consume
					if c.Bool("peek") {
						take = e.handoffs.Peek
					}
					h, err := take(c.Context, e.userID())
					if err != nil {
						return outputError(err)
					}
					if h == nil {
						return outputError(errors.NewNotFound("handoff", e.userID()))
					}
					return outputJSON(c, h)
				},
			},
		},
	}
}

// product reads the product named by the first argument and --source.
func (e *env) product(c *cli.Context) (content.Product, error) {
	id, err := requireArg(c, "product id")
	if err != nil {
		return content.Product{}, err
	}
	if source := c.String("source"); source != "" {
		return e.products.GetFrom(c.Context, source, id)
	}
	return e.products.Get(c.Context, id)
}

// productRef resolves (id, source). Without --source the product is looked up.
func (e *env) productRef(c *cli.Context) (id, source string, err error) {
	if source = c.String("source"); source != "" {
		id, err = requireArg(c, "product id")
		return id, source, err
	}
	p, err := e.product(c)
	if err != nil {
		return "", "", err
	}
	return p.ID, p.Source, nil
}

func deleted(id string) map[string]any {
	return map[string]any{"deleted": true, "id": id}
}

// dumpsCmd creates the brain dump command group.
func dumpsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "dumps",
		Usage: "Work with brain dumps",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List brain dumps, newest first",
				Flags: []cli.Flag{refreshFlag()},
				Action: func(c *cli.Context) error {
					items, err := load(c, e.brainDumps.Collection)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, map[string]any{"items": items})
				},
			},
			{
				Name:      "show",
				Usage:     "Show one brain dump with word, link and outline stats",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "brain dump id")
					if err != nil {
						return outputError(err)
					}
					d, err := e.brainDumps.Get(c.Context, id)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, struct {
						content.BrainDump
						Stats content.DumpStats `json:"stats"`
					}{d, content.AnalyzeDump(d.Content)})
				},
			},
			{
				Name:  "create",
				Usage: "Create a brain dump (content from --content or stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Usage: "Title"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Short description"},
					&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Usage: "Markdown content"},
					&cli.StringFlag{Name: "status", Usage: "Status (default: draft)"},
					&cli.StringFlag{Name: "project-id", Usage: "Link to a project"},
				},
				Action: func(c *cli.Context) error {
					text, err := readInput(c, "content")
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					d, err := e.brainDumps.Create(c.Context, ops.BrainDumpInput{
						Title:       c.String("title"),
						Description: c.String("description"),
						Content:     text,
						Status:      c.String("status"),
						ProjectID:   optional(c, "project-id"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, d)
				},
			},
			{
				Name:      "update",
				Usage:     "Change a brain dump's fields",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description"},
					&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Usage: "New markdown content"},
					&cli.StringFlag{Name: "status", Usage: "New status"},
					&cli.StringFlag{Name: "project-id", Usage: "New project link"},
				},
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "brain dump id")
					if err != nil {
						return outputError(err)
					}
					d, err := e.brainDumps.Update(c.Context, id, ops.BrainDumpPatch{
						Title:       optional(c, "title"),
						Description: optional(c, "description"),
						Content:     optional(c, "content"),
						Status:      optional(c, "status"),
						ProjectID:   optional(c, "project-id"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, d)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a brain dump",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{yesFlag()},
				Action: deleteAction("brain dump", func(ctx context.Context, id string) error {
					return e.brainDumps.Delete(ctx, id)
				}),
			},
		},
	}
}

// projectsCmd creates the project command group.
func projectsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "projects",
		Usage: "Work with sectioned projects",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List projects, newest first",
				Flags: []cli.Flag{refreshFlag()},
				Action: func(c *cli.Context) error {
					items, err := load(c, e.projects.Collection)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, map[string]any{"items": items})
				},
			},
			{
				Name:      "show",
				Usage:     "Show one project with its sections",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "project id")
					if err != nil {
						return outputError(err)
					}
					p, err := e.projects.Get(c.Context, id)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, p)
				},
			},
			{
				Name:  "create",
				Usage: "Create a project",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Usage: "Title"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Short description"},
					&cli.StringFlag{Name: "status", Usage: "Status (default: draft)"},
					&cli.StringSliceFlag{Name: "section", Usage: "Section title, repeatable"},
				},
				Action: func(c *cli.Context) error {
					var sections []content.Section
					for _, title := range c.StringSlice("section") {
						sections = append(sections, content.Section{Title: title})
					}
					p, err := e.projects.Create(c.Context, ops.ProjectInput{
						Title:       c.String("title"),
						Description: c.String("description"),
						Status:      c.String("status"),
						Sections:    sections,
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, p)
				},
			},
			{
				Name:      "update",
				Usage:     "Change a project's title, description or status",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description"},
					&cli.StringFlag{Name: "status", Usage: "New status"},
				},
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "project id")
					if err != nil {
						return outputError(err)
					}
					p, err := e.projects.Update(c.Context, id, ops.ProjectPatch{
						Title:       optional(c, "title"),
						Description: optional(c, "description"),
						Status:      optional(c, "status"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, p)
				},
			},
			{
				Name:      "append",
				Usage:     "Append text to a section (content from --content or stdin)",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "section", Required: true, Usage: "Section id or title"},
					&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Usage: "Text to append"},
					&cli.BoolFlag{Name: "create", Usage: "Create the section when it does not exist"},
				},
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "project id")
					if err != nil {
						return outputError(err)
					}
					text, err := readInput(c, "content")
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					out, err := e.projects.AppendSection(c.Context, ops.AppendInput{
						ID:      id,
						Section: c.String("section"),
						Content: text,
						Create:  c.Bool("create"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:      "compose",
				Usage:     "Bundle a project's sections into one document",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "markdown", Usage: "Bundle format: markdown|json"},
					&cli.BoolFlag{Name: "raw", Usage: "Print only the bundle text"},
				},
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "project id")
					if err != nil {
						return outputError(err)
					}
					out, err := e.projects.Compose(c.Context, ops.ComposeInput{ID: id, Format: c.String("format")})
					if err != nil {
						return outputError(err)
					}
					if c.Bool("raw") {
						_, err := fmt.Fprintln(c.App.Writer, out.BundleText)
						return err
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a project",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{yesFlag()},
				Action: deleteAction("project", func(ctx context.Context, id string) error {
					return e.projects.Delete(ctx, id)
				}),
			},
		},
	}
}

// deleteAction confirms and runs del on the first argument.
func deleteAction(kind string, del func(context.Context, string) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		id, err := requireArg(c, kind+" id")
		if err != nil {
			return outputError(err)
		}
		if !confirm(c, fmt.Sprintf("Delete %s %s?", kind, id)) {
			return outputError(errors.NewInvalidRequest("delete cancelled"))
		}
		if err := del(c.Context, id); err != nil {
			return outputError(err)
		}
		return outputJSON(c, deleted(id))
	}
}
