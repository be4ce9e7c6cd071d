package netops

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

//go:embed schema.graphql
var schemaSDL string

//go:embed queries/*.graphql
var queryFS embed.FS

// Document is a ready-to-send operation: the operation plus every fragment it spreads.
type Document struct {
	Name      string
	Operation ast.Operation
	Query     string
	Variables []string
}

type documentSet struct {
	schema *ast.Schema
	byName map[string]Document
	sorted []Document
}

var documents = mustLoadDocuments()

// SchemaSDL returns the schema the documents are built against.
func SchemaSDL() string {
	return schemaSDL
}

// Schema returns the parsed schema the documents are built against.
func Schema() *ast.Schema {
	return documents.schema
}

// Documents returns every operation document sorted by name.
func Documents() []Document {
	return append([]Document(nil), documents.sorted...)
}

func DocumentByName(name string) (Document, bool) {
	d, ok := documents.byName[name]
	return d, ok
}

func mustDocument(name string) Document {
	d, ok := documents.byName[name]
	if !ok {
		panic(fmt.Sprintf("netops: unknown document %s", name))
	}
	return d
}

func mustLoadDocuments() *documentSet {
	set, err := loadDocuments(schemaSDL, queryFS)
	if err != nil {
		panic(fmt.Sprintf("netops: %v", err))
	}
	return set
}

func loadDocuments(sdl string, fsys fs.FS) (*documentSet, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	merged, err := parseQueryFiles(fsys)
	if err != nil {
		return nil, err
	}

	if errs := validator.Validate(schema, merged); len(errs) > 0 {
		return nil, fmt.Errorf("validate documents: %w", errs)
	}

	queryDocuments, err := queryDocumentsByOperations(schema, merged.Operations)
	if err != nil {
		return nil, err
	}

	set := &documentSet{
		schema: schema,
		byName: make(map[string]Document, len(queryDocuments)),
	}
	for _, qd := range queryDocuments {
		op := qd.Operations[0]
		if _, dup := set.byName[op.Name]; dup {
			return nil, fmt.Errorf("operation %s is defined twice", op.Name)
		}

		d := Document{
			Name:      op.Name,
			Operation: op.Operation,
			Query:     render(qd),
		}
		for _, v := range op.VariableDefinitions {
			d.Variables = append(d.Variables, v.Variable)
		}

		set.byName[d.Name] = d
		set.sorted = append(set.sorted, d)
	}
	sort.Slice(set.sorted, func(i, j int) bool { return set.sorted[i].Name < set.sorted[j].Name })

	return set, nil
}

// parseQueryFiles merges every .graphql file into one document. A file holds
// at most one operation, named after the file.
func parseQueryFiles(fsys fs.FS) (*ast.QueryDocument, error) {
	files, err := fs.Glob(fsys, "queries/*.graphql")
	if err != nil {
		return nil, fmt.Errorf("list query files: %w", err)
	}
	sort.Strings(files)

	merged := &ast.QueryDocument{}
	for _, file := range files {
		b, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}

		doc, err := parser.ParseQuery(&ast.Source{Name: file, Input: string(b)})
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}

		switch len(doc.Operations) {
		case 0:
		case 1:
			want := strings.TrimSuffix(path.Base(file), path.Ext(file))
			if got := doc.Operations[0].Name; got != want {
				return nil, fmt.Errorf("%s: operation %q must be named %q", file, got, want)
			}
		default:
			return nil, fmt.Errorf("%s: %d operations, want at most one", file, len(doc.Operations))
		}

		merged.Operations = append(merged.Operations, doc.Operations...)
		merged.Fragments = append(merged.Fragments, doc.Fragments...)
	}

	return merged, nil
}

func queryDocumentsByOperations(schema *ast.Schema, operations ast.OperationList) ([]*ast.QueryDocument, error) {
	queryDocuments := make([]*ast.QueryDocument, 0, len(operations))
	for _, operation := range operations {
		queryDocument := &ast.QueryDocument{
			Operations: ast.OperationList{operation},
			Fragments:  fragmentsInOperationDefinition(operation),
		}

		if errs := validator.Validate(schema, queryDocument); len(errs) > 0 {
			return nil, fmt.Errorf("operation %s: %w", operation.Name, errs)
		}

		queryDocuments = append(queryDocuments, queryDocument)
	}

	return queryDocuments, nil
}

func fragmentsInOperationDefinition(operation *ast.OperationDefinition) ast.FragmentDefinitionList {
	fragments := fragmentsInSelectionSet(operation.SelectionSet)

	seen := make(map[string]struct{}, len(fragments))
	unique := make(ast.FragmentDefinitionList, 0, len(fragments))
	for _, fragment := range fragments {
		if _, ok := seen[fragment.Name]; ok {
			continue
		}
		seen[fragment.Name] = struct{}{}
		unique = append(unique, fragment)
	}

	return unique
}

// fragmentsInSelectionSet relies on the validator having resolved each spread's Definition.
func fragmentsInSelectionSet(selectionSet ast.SelectionSet) ast.FragmentDefinitionList {
	var fragments ast.FragmentDefinitionList
	for _, selection := range selectionSet {
		var selectionSet ast.SelectionSet
		switch selection := selection.(type) {
		case *ast.Field:
			selectionSet = selection.SelectionSet
		case *ast.InlineFragment:
			selectionSet = selection.SelectionSet
		case *ast.FragmentSpread:
			if selection.Definition == nil {
				continue
			}
			fragments = append(fragments, selection.Definition)
			selectionSet = selection.Definition.SelectionSet
		}

		fragments = append(fragments, fragmentsInSelectionSet(selectionSet)...)
	}

	return fragments
}

func render(doc *ast.QueryDocument) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatQueryDocument(doc)
	return strings.TrimSpace(buf.String())
}

// CheckDocuments validates every document against schema, typically one
// fetched from a live server, and returns one error per problem found.
func CheckDocuments(schema *ast.Schema) []error {
	var problems []error
	for _, d := range documents.sorted {
		qd, err := parser.ParseQuery(&ast.Source{Name: d.Name, Input: d.Query})
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", d.Name, err))
			continue
		}
		for _, e := range validator.Validate(schema, qd) {
			problems = append(problems, fmt.Errorf("%s: %s", d.Name, e.Message))
		}
	}
	return problems
}
