package mcp

import "github.com/mark3labs/mcp-go/mcp"

var createToolDef = mcp.NewTool("wish_create",
	mcp.WithDescription("Create an ephemeral wish that self-destructs after a time limit, a view limit, or deletion. Returns the public slug."),
	mcp.WithString("message", mcp.Required(), mcp.Description("Wish body")),
	mcp.WithString("title", mcp.Description("Optional title")),
	mcp.WithString("theme", mcp.Description("Presentation theme tag (default: default)")),
	mcp.WithString("expires_at", mcp.Description("Absolute expiry, RFC 3339")),
	mcp.WithNumber("expires_in_minutes", mcp.Description("Relative expiry in minutes; ignored if expires_at is set")),
	mcp.WithNumber("max_views", mcp.Description("Number of views before the wish disappears")),
	mcp.WithString("origin", mcp.Required(), mcp.Description("Client network origin used for the per-origin daily quota")),
)

var viewToolDef = mcp.NewTool("wish_view",
	mcp.WithDescription("View a wish. Counts one view; the view that reaches max_views is the last one shown."),
	mcp.WithString("slug", mcp.Required(), mcp.Description("Public wish slug")),
)

var deleteToolDef = mcp.NewTool("wish_delete",
	mcp.WithDescription("Delete a wish immediately. Deleting an unknown or already deleted wish succeeds."),
	mcp.WithString("slug", mcp.Required(), mcp.Description("Public wish slug")),
	mcp.WithString("requested_by", mcp.Description("Who asked for the deletion (logged only)")),
)

var statusToolDef = mcp.NewTool("wish_status",
	mcp.WithDescription("Report a wish's state (active, expired, deleted) without counting a view."),
	mcp.WithString("slug", mcp.Required(), mcp.Description("Public wish slug")),
)

var imagesToolDef = mcp.NewTool("wish_images",
	mcp.WithDescription("List a wish's images without counting a view."),
	mcp.WithString("slug", mcp.Required(), mcp.Description("Public wish slug")),
)

var attachImageToolDef = mcp.NewTool("wish_attach_image",
	mcp.WithDescription("Attach a JPEG, PNG, GIF or WebP image to an active wish."),
	mcp.WithString("slug", mcp.Required(), mcp.Description("Public wish slug")),
	mcp.WithString("filename", mcp.Description("Original file name")),
	mcp.WithString("data_base64", mcp.Required(), mcp.Description("Image bytes, standard base64")),
)

var detachImageToolDef = mcp.NewTool("wish_detach_image",
	mcp.WithDescription("Remove one image from an active wish."),
	mcp.WithString("slug", mcp.Required(), mcp.Description("Public wish slug")),
	mcp.WithString("image_id", mcp.Required(), mcp.Description("Image id from wish_images")),
)
