package mcp

import (
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/wishaday/internal/errors"
)

// normalizer is implemented by request types that clean up their own fields
// after decoding.
type normalizer interface {
	normalize()
}

// decode unmarshals MCP request arguments into a typed struct. Malformed
// arguments are reported as INVALID_REQUEST naming the offending field.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInvalidRequest("arguments are not a JSON object")
	}
	if err := json.Unmarshal(b, &result); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return result, errors.NewInvalidRequest(typeErr.Field + " must be " + jsonKind(typeErr.Type.Kind().String()))
		}
		return result, errors.NewInvalidRequest("invalid arguments")
	}
	if n, ok := any(&result).(normalizer); ok {
		n.normalize()
	}
	return result, nil
}

// jsonKind names a Go kind the way a JSON caller thinks of it.
func jsonKind(kind string) string {
	switch {
	case strings.HasPrefix(kind, "int"), strings.HasPrefix(kind, "uint"), strings.HasPrefix(kind, "float"):
		return "a number"
	case kind == "string":
		return "a string"
	case kind == "bool":
		return "a boolean"
	default:
		return "a " + kind
	}
}

func (r *SlugRequest) normalize() { r.Slug = strings.TrimSpace(r.Slug) }

func (r *DeleteRequest) normalize() { r.Slug = strings.TrimSpace(r.Slug) }

func (r *AttachImageRequest) normalize() {
	r.Slug = strings.TrimSpace(r.Slug)
	r.DataBase64 = strings.TrimSpace(r.DataBase64)
}

func (r *DetachImageRequest) normalize() {
	r.Slug = strings.TrimSpace(r.Slug)
	r.ImageID = strings.TrimSpace(r.ImageID)
}
