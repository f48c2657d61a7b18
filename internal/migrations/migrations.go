package migrations

import (
	"fmt"
	"os"
	"path/filepath"
)

// MigrationsDir is where schema files live relative to the working
// directory. Tests override it.
var MigrationsDir = "scripts/migrations"

const initialSchemaFile = "001_initial_schema.sql"

// GetInitialSchema loads the initial schema SQL. The file is searched
// relative to the working directory and then one and two levels up, which
// covers both the repo root and package test directories.
func GetInitialSchema() (string, error) {
	for _, dir := range []string{MigrationsDir, filepath.Join("..", "..", MigrationsDir), filepath.Join("..", MigrationsDir)} {
		content, err := os.ReadFile(filepath.Join(dir, initialSchemaFile))
		if err == nil {
			return string(content), nil
		}
	}
	return "", fmt.Errorf("could not find schema file in any location")
}
