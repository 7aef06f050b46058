package migrate

import (
	"embed"
	"io/fs"
)

// EmbeddedDir is the migrations directory inside the embedded filesystem.
const EmbeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// EmbeddedFS exposes the compiled-in migrations rooted above EmbeddedDir.
func EmbeddedFS() fs.FS {
	return embedded
}

// EmbeddedSource is the compiled-in migrations directory itself, so deployed
// images need no migrations on disk.
func EmbeddedSource() fs.FS {
	sub, err := fs.Sub(embedded, EmbeddedDir)
	if err != nil {
		panic(err)
	}
	return sub
}
