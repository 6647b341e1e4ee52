// Package query serves the public read API over GraphQL.
//
// The schema is loaded from schema.graphql at startup and executed by
// executableSchema: every root field calls a service, the result is
// encoded to JSON once and then projected onto the requested selection
// set. Field `fooBar` reads the json key `foo_bar` of the result.
package query

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"unicode"

	"github.com/99designs/gqlgen/graphql"
	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/Laisky/agency-site/internal/library/webutil"
	"github.com/Laisky/agency-site/library/apperr"
	"github.com/Laisky/agency-site/library/i18n"
	"github.com/Laisky/agency-site/library/metrics"
)

//go:embed schema.graphql
var schemaSDL string

// Schema parses the embedded schema, it panics on a malformed schema
func Schema() *ast.Schema {
	return gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSDL})
}

type executableSchema struct {
	schema *ast.Schema
	fields map[string]fieldFunc
	logger logSDK.Logger
}

// NewExecutableSchema binds resolver to the embedded schema
func NewExecutableSchema(resolver *Resolver, logger logSDK.Logger) graphql.ExecutableSchema {
	return &executableSchema{
		schema: Schema(),
		fields: resolver.fields(),
		logger: logger,
	}
}

func (e *executableSchema) Schema() *ast.Schema {
	return e.schema
}

// Complexity uses the default cost of one per field
func (e *executableSchema) Complexity(_ context.Context, _, _ string, _ int, _ map[string]any) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)
	first := true
	return func(ctx context.Context) *graphql.Response {
		if !first {
			return nil
		}
		first = false

		if opCtx.Operation.Operation != ast.Query {
			return graphql.ErrorResponse(ctx, "unsupported operation %s, only queries are served", opCtx.Operation.Operation)
		}

		ex := &execution{
			schema: e,
			op:     opCtx,
			lang:   i18n.Negotiate("", opCtx.Headers.Get("Accept-Language")),
		}
		ex.query(ctx)
		return &graphql.Response{Data: ex.buf.Bytes(), Errors: ex.errs}
	}
}

// execution state of one operation
type execution struct {
	schema *executableSchema
	op     *graphql.OperationContext
	lang   i18n.Lang
	buf    bytes.Buffer
	errs   gqlerror.List
}

func (ex *execution) query(ctx context.Context) {
	queryType := ex.schema.schema.Query
	fields := graphql.CollectFields(ex.op, ex.op.Operation.SelectionSet, []string{queryType.Name})

	ex.buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			ex.buf.WriteByte(',')
		}
		ex.writeKey(f.Alias)

		path := ast.Path{ast.PathName(f.Alias)}
		if f.Name == "__typename" {
			ex.writeScalar(path, queryType.Name)
			continue
		}

		def := queryType.Fields.ForName(f.Name)
		resolve, ok := ex.schema.fields[f.Name]
		if def == nil || !ok {
			ex.buf.WriteString("null")
			ex.errs = append(ex.errs, gqlerror.ErrorPathf(path, "field %s is not served", f.Name))
			continue
		}

		args := arguments(f.ArgumentMap(ex.op.Variables))
		lang := ex.lang
		if explicit := args.String("lang"); explicit != "" {
			lang = i18n.Negotiate(explicit, "")
		}

		result, err := resolve(ctx, args, lang)
		if err != nil {
			ex.buf.WriteString("null")
			ex.errs = append(ex.errs, ex.present(ctx, path, lang, err))
			continue
		}

		value, err := toGeneric(result)
		if err != nil {
			ex.buf.WriteString("null")
			ex.errs = append(ex.errs, ex.present(ctx, path, lang, err))
			continue
		}

		ex.writeValue(def.Type, f.Selections, value, path)
	}
	ex.buf.WriteByte('}')
}

// writeValue projects value of type typ onto sel
func (ex *execution) writeValue(typ *ast.Type, sel ast.SelectionSet, value any, path ast.Path) {
	if typ.Elem != nil {
		items, ok := value.([]any)
		if !ok {
			if value == nil && typ.NonNull {
				ex.buf.WriteString("[]")
			} else {
				ex.writeNull(typ, path, value)
			}
			return
		}

		ex.buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				ex.buf.WriteByte(',')
			}
			ex.writeValue(typ.Elem, sel, item, appendPath(path, ast.PathIndex(i)))
		}
		ex.buf.WriteByte(']')
		return
	}

	def := ex.schema.schema.Types[typ.Name()]
	if def == nil || def.Kind != ast.Object {
		if value == nil {
			ex.writeNull(typ, path, value)
			return
		}
		ex.writeScalar(path, value)
		return
	}

	obj, ok := value.(map[string]any)
	if !ok {
		ex.writeNull(typ, path, value)
		return
	}

	ex.buf.WriteByte('{')
	for i, f := range graphql.CollectFields(ex.op, sel, []string{def.Name}) {
		if i > 0 {
			ex.buf.WriteByte(',')
		}
		ex.writeKey(f.Alias)

		fieldPath := appendPath(path, ast.PathName(f.Alias))
		if f.Name == "__typename" {
			ex.writeScalar(fieldPath, def.Name)
			continue
		}

		fd := def.Fields.ForName(f.Name)
		if fd == nil {
			ex.buf.WriteString("null")
			ex.errs = append(ex.errs, gqlerror.ErrorPathf(fieldPath, "unknown field %s.%s", def.Name, f.Name))
			continue
		}
		ex.writeValue(fd.Type, f.Selections, obj[jsonKey(f.Name)], fieldPath)
	}
	ex.buf.WriteByte('}')
}

// writeNull writes null, and records an error when typ does not allow it
func (ex *execution) writeNull(typ *ast.Type, path ast.Path, value any) {
	ex.buf.WriteString("null")
	if value != nil {
		ex.errs = append(ex.errs, gqlerror.ErrorPathf(path, "value of type %T does not match %s", value, typ.String()))
		return
	}
	if typ.NonNull {
		ex.errs = append(ex.errs, gqlerror.ErrorPathf(path, "non-null field %s resolved to null", typ.String()))
	}
}

func (ex *execution) writeScalar(path ast.Path, value any) {
	data, err := gutils.JSON.Marshal(value)
	if err != nil {
		ex.buf.WriteString("null")
		ex.errs = append(ex.errs, gqlerror.ErrorPathf(path, "marshal value: %v", err))
		return
	}

	ex.buf.Write(data)
}

func (ex *execution) writeKey(key string) {
	data, _ := gutils.JSON.Marshal(key)
	ex.buf.Write(data)
	ex.buf.WriteByte(':')
}

// present classifies err the same way the REST endpoints do
func (ex *execution) present(ctx context.Context, path ast.Path, lang i18n.Lang, err error) *gqlerror.Error {
	cls := apperr.Log(webutil.RequestLogger(ctx, ex.schema.logger), err,
		zap.String("route", "graphql"),
		zap.String("path", path.String()))
	metrics.RequestErrors.WithLabelValues(string(cls.Category), string(cls.Severity)).Inc()

	gqlErr := gqlerror.ErrorPathf(path, "%s", apperr.Message(cls.Category, lang))
	gqlErr.Extensions = map[string]any{"category": string(cls.Category)}
	if cls.Category == apperr.CategoryValidation {
		gqlErr.Extensions["detail"] = err.Error()
	}

	return gqlErr
}

// toGeneric encodes v to JSON and decodes it into maps, slices and scalars
func toGeneric(v any) (any, error) {
	data, err := gutils.JSON.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal result")
	}

	var out any
	if err = gutils.JSON.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "unmarshal result")
	}

	return out, nil
}

// jsonKey converts a camelCase field name into the snake_case json key
func jsonKey(field string) string {
	var sb strings.Builder
	for i, r := range field {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}

	return sb.String()
}

func appendPath(path ast.Path, el ast.PathElement) ast.Path {
	out := make(ast.Path, len(path), len(path)+1)
	copy(out, path)
	return append(out, el)
}
