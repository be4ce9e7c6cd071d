package introspection

import (
	"bytes"
	"context"
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"

	"github.com/netopsio/netopsgql/client"
)

// builtins are declared by the gqlparser prelude and must not be redeclared.
var builtins = map[string]struct{}{
	"String":      {},
	"Int":         {},
	"Float":       {},
	"Boolean":     {},
	"ID":          {},
	"skip":        {},
	"include":     {},
	"deprecated":  {},
	"specifiedBy": {},
	"defer":       {},
	"oneOf":       {},
}

type parser struct {
	sharedPosition *ast.Position
}

// ParseIntrospectionQuery converts an introspection result into schema
// definitions. Introspection types and prelude built-ins are skipped, as are
// argument default values.
func ParseIntrospectionQuery(name string, query Query) *ast.SchemaDocument {
	p := parser{
		sharedPosition: &ast.Position{Src: &ast.Source{Name: name}},
	}

	return p.parseIntrospectionQuery(query)
}

func (p parser) parseIntrospectionQuery(query Query) *ast.SchemaDocument {
	doc := &ast.SchemaDocument{Position: p.sharedPosition}
	if schema := p.parseSchemaDefinition(query); schema != nil {
		doc.Schema = append(doc.Schema, schema)
	}

	for _, typ := range query.Schema.Types {
		if typ == nil || typ.Name == nil || isIntrospectionType(*typ.Name) {
			continue
		}
		if _, ok := builtins[*typ.Name]; ok {
			continue
		}
		if def := p.parseTypeSystemDefinition(typ); def != nil {
			doc.Definitions = append(doc.Definitions, def)
		}
	}

	for _, directive := range query.Schema.Directives {
		if _, ok := builtins[directive.Name]; ok {
			continue
		}
		doc.Directives = append(doc.Directives, p.parseDirectiveDefinition(directive))
	}

	return doc
}

func (p parser) parseSchemaDefinition(query Query) *ast.SchemaDefinition {
	def := &ast.SchemaDefinition{Position: p.sharedPosition}
	add := func(op ast.Operation, named *Named) {
		if named == nil || named.Name == "" {
			return
		}
		def.OperationTypes = append(def.OperationTypes, &ast.OperationTypeDefinition{
			Operation: op,
			Type:      named.Name,
			Position:  p.sharedPosition,
		})
	}
	add(ast.Query, query.Schema.QueryType)
	add(ast.Mutation, query.Schema.MutationType)
	add(ast.Subscription, query.Schema.SubscriptionType)

	if len(def.OperationTypes) == 0 {
		return nil
	}

	return def
}

func (p parser) parseTypeSystemDefinition(typ *FullType) *ast.Definition {
	def := &ast.Definition{
		Name:        *typ.Name,
		Description: deref(typ.Description),
		Position:    p.sharedPosition,
	}

	switch typ.Kind {
	case TypeKindScalar:
		def.Kind = ast.Scalar
	case TypeKindObject:
		def.Kind = ast.Object
		def.Fields = p.parseFields(typ.Fields)
		def.Interfaces = names(typ.Interfaces)
	case TypeKindInterface:
		def.Kind = ast.Interface
		def.Fields = p.parseFields(typ.Fields)
		def.Interfaces = names(typ.Interfaces)
	case TypeKindUnion:
		def.Kind = ast.Union
		def.Types = names(typ.PossibleTypes)
	case TypeKindEnum:
		def.Kind = ast.Enum
		for _, v := range typ.EnumValues {
			def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{
				Name:        v.Name,
				Description: deref(v.Description),
				Directives:  p.deprecation(v.IsDeprecated, v.DeprecationReason),
				Position:    p.sharedPosition,
			})
		}
	case TypeKindInputObject:
		def.Kind = ast.InputObject
		for _, f := range typ.InputFields {
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Name:        f.Name,
				Description: deref(f.Description),
				Type:        p.parseTypeRef(&f.Type),
				Position:    p.sharedPosition,
			})
		}
	default:
		return nil
	}

	return def
}

func (p parser) parseFields(fields []*FieldValue) ast.FieldList {
	list := make(ast.FieldList, 0, len(fields))
	for _, f := range fields {
		list = append(list, &ast.FieldDefinition{
			Name:        f.Name,
			Description: deref(f.Description),
			Arguments:   p.parseArguments(f.Args),
			Type:        p.parseTypeRef(&f.Type),
			Directives:  p.deprecation(f.IsDeprecated, f.DeprecationReason),
			Position:    p.sharedPosition,
		})
	}

	return list
}

func (p parser) parseArguments(args []*InputValue) ast.ArgumentDefinitionList {
	if len(args) == 0 {
		return nil
	}

	list := make(ast.ArgumentDefinitionList, 0, len(args))
	for _, a := range args {
		list = append(list, &ast.ArgumentDefinition{
			Name:        a.Name,
			Description: deref(a.Description),
			Type:        p.parseTypeRef(&a.Type),
			Position:    p.sharedPosition,
		})
	}

	return list
}

func (p parser) parseTypeRef(ref *TypeRef) *ast.Type {
	switch ref.Kind {
	case TypeKindNonNull:
		typ := p.parseTypeRef(ref.OfType)
		typ.NonNull = true
		return typ
	case TypeKindList:
		return &ast.Type{Elem: p.parseTypeRef(ref.OfType), Position: p.sharedPosition}
	default:
		return &ast.Type{NamedType: deref(ref.Name), Position: p.sharedPosition}
	}
}

func (p parser) parseDirectiveDefinition(directive *DirectiveType) *ast.DirectiveDefinition {
	def := &ast.DirectiveDefinition{
		Name:        directive.Name,
		Description: deref(directive.Description),
		Arguments:   p.parseArguments(directive.Args),
		Position:    p.sharedPosition,
	}
	for _, loc := range directive.Locations {
		def.Locations = append(def.Locations, ast.DirectiveLocation(loc))
	}

	return def
}

func (p parser) deprecation(deprecated bool, reason *string) ast.DirectiveList {
	if !deprecated {
		return nil
	}

	directive := &ast.Directive{Name: "deprecated", Position: p.sharedPosition}
	if reason != nil {
		directive.Arguments = ast.ArgumentList{{
			Name:     "reason",
			Value:    &ast.Value{Kind: ast.StringValue, Raw: *reason, Position: p.sharedPosition},
			Position: p.sharedPosition,
		}}
	}

	return ast.DirectiveList{directive}
}

func names(refs []*TypeRef) []string {
	var out []string
	for _, ref := range refs {
		if ref != nil && ref.Name != nil {
			out = append(out, *ref.Name)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SDL renders the introspection result as schema definition language.
func SDL(name string, query Query) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(ParseIntrospectionQuery(name, query))
	return buf.String()
}

// LoadSchema builds a validated schema from an introspection result.
func LoadSchema(name string, query Query) (*ast.Schema, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: SDL(name, query)})
	if err != nil {
		return nil, fmt.Errorf("introspected schema %s is invalid: %w", name, err)
	}
	return schema, nil
}

// Fetch runs the introspection query against the client's endpoint.
func Fetch(ctx context.Context, c *client.Client) (*ast.Schema, error) {
	var res Query
	if err := c.Post(ctx, "IntrospectionQuery", Introspection, nil, &res); err != nil {
		return nil, fmt.Errorf("introspection query failed: %w", err)
	}

	return LoadSchema(c.Endpoint(), res)
}
