package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// FindConfigFile looks for one of cfgFilenames in path and then in each
// parent directory, returning the closest match.
func FindConfigFile(path string, cfgFilenames []string) (string, error) {
	var err error

	var dir string
	if path == "." {
		dir, err = os.Getwd()
	} else {
		dir = path
		_, err = os.Stat(dir)
	}

	if err != nil {
		return "", fmt.Errorf("unable to get directory \"%s\" to find config: %w", dir, err)
	}

	cfg := findConfigInDir(dir, cfgFilenames)

	for cfg == "" && dir != filepath.Dir(dir) {
		dir = filepath.Dir(dir)
		cfg = findConfigInDir(dir, cfgFilenames)
	}

	if cfg == "" {
		return "", fmt.Errorf("config not found, want one of %s above %s: %w", strings.Join(cfgFilenames, ", "), path, os.ErrNotExist)
	}

	return cfg, nil
}

func findConfigInDir(dir string, cfgFilenames []string) string {
	for _, cfgName := range cfgFilenames {
		path := filepath.Join(dir, cfgName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}

	return ""
}

// SchemaFilenames expands globs, including ** for any depth, into a sorted
// list of unique files.
func SchemaFilenames(schemaFilenameGlobs []string) ([]string, error) {
	path2regex := strings.NewReplacer(
		`.`, `\.`,
		`*`, `.+`,
		`\`, `[\\/]`,
		`/`, `[\\/]`,
	)

	allSchemaFilenames := make(map[string]struct{})

	for _, schemaFilenameGlob := range schemaFilenameGlobs {
		var schemaFilenames []string

		if strings.Contains(schemaFilenameGlob, "**") {
			pathParts := strings.SplitN(schemaFilenameGlob, "**", 2)
			rest := strings.TrimPrefix(strings.TrimPrefix(pathParts[1], `\`), `/`)
			// anchored only at the end because ** spans any number of directories
			globRe := regexp.MustCompile(path2regex.Replace(rest) + `$`)

			if err := filepath.Walk(pathParts[0], func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}

				if !info.IsDir() && globRe.MatchString(strings.TrimPrefix(path, pathParts[0])) {
					schemaFilenames = append(schemaFilenames, path)
				}

				return nil
			}); err != nil {
				return nil, fmt.Errorf("failed to walk schema at root %s: %w", pathParts[0], err)
			}
		} else {
			var err error

			schemaFilenames, err = filepath.Glob(schemaFilenameGlob)
			if err != nil {
				return nil, fmt.Errorf("failed to glob schema filename %s: %w", schemaFilenameGlob, err)
			}
		}

		for _, schemaFilename := range schemaFilenames {
			allSchemaFilenames[schemaFilename] = struct{}{}
		}
	}

	if len(allSchemaFilenames) == 0 {
		return nil, fmt.Errorf("no schema files match %s", strings.Join(schemaFilenameGlobs, ", "))
	}

	return slices.Sorted(maps.Keys(allSchemaFilenames)), nil
}

// LoadSchema parses and validates the SDL files matched by globs.
func LoadSchema(globs ...string) (*ast.Schema, error) {
	filenames, err := SchemaFilenames(globs)
	if err != nil {
		return nil, err
	}

	sources := make([]*ast.Source, 0, len(filenames))
	for _, filename := range filenames {
		raw, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("unable to open schema: %w", err)
		}

		sources = append(sources, &ast.Source{Name: filepath.ToSlash(filename), Input: string(raw)})
	}

	schema, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, fmt.Errorf("load local schema failed: %w", err)
	}

	return schema, nil
}
