package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo/internal/models"
)

func TestObserveAll_SeesWritesFromOtherHandle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "todo.db")
	reader := setupFileDB(t, dbPath)
	writer := setupFileDB(t, dbPath)

	ch := observe(t, reader)
	waitForItems(t, ch, hasLen(0))

	item := &models.Item{Title: "From another handle"}
	require.NoError(t, writer.Persist(context.Background(), item))

	items := waitForItems(t, ch, hasLen(1))
	assert.Equal(t, *item, items[0])

	require.NoError(t, writer.Remove(context.Background(), *item))
	waitForItems(t, ch, hasLen(0))
}

func TestFileWatcher_Relevant(t *testing.T) {
	fw := &fileWatcher{base: "todo.db"}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{name: "database write", event: fsnotify.Event{Name: "/data/todo.db", Op: fsnotify.Write}, want: true},
		{name: "journal removed", event: fsnotify.Event{Name: "/data/todo.db-journal", Op: fsnotify.Remove}, want: true},
		{name: "wal write", event: fsnotify.Event{Name: "/data/todo.db-wal", Op: fsnotify.Write}, want: true},
		{name: "shared memory ignored", event: fsnotify.Event{Name: "/data/todo.db-shm", Op: fsnotify.Write}, want: false},
		{name: "chmod ignored", event: fsnotify.Event{Name: "/data/todo.db", Op: fsnotify.Chmod}, want: false},
		{name: "other file ignored", event: fsnotify.Event{Name: "/data/other.db", Op: fsnotify.Write}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fw.relevant(tt.event))
		})
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		path     string
		wantDSN  string
		wantFile string
		wantErr  bool
	}{
		{path: ":memory:", wantDSN: ":memory:?_busy_timeout=5000"},
		{path: "", wantDSN: ""},
		{path: "file::memory:?cache=shared", wantDSN: "file::memory:?cache=shared&_busy_timeout=5000"},
		{path: "file:shared?mode=memory&cache=shared", wantDSN: "file:shared?mode=memory&cache=shared&_busy_timeout=5000"},
		{path: "./data/todo.db", wantDSN: "./data/todo.db?_busy_timeout=5000", wantFile: "./data/todo.db"},
		{path: "/var/lib/todo/todo.db", wantDSN: "/var/lib/todo/todo.db?_busy_timeout=5000", wantFile: "/var/lib/todo/todo.db"},
		{path: "file:/var/lib/todo.db", wantDSN: "file:/var/lib/todo.db?_busy_timeout=5000", wantFile: "/var/lib/todo.db"},
		{path: "file:data/todo.db?cache=shared", wantDSN: "file:data/todo.db?cache=shared&_busy_timeout=5000", wantFile: "data/todo.db"},
		{path: "file:///var/lib/todo.db", wantDSN: "file:///var/lib/todo.db?_busy_timeout=5000", wantFile: "/var/lib/todo.db"},
		{path: "file://localhost/var/lib/todo.db", wantDSN: "file://localhost/var/lib/todo.db?_busy_timeout=5000", wantFile: "/var/lib/todo.db"},
		{path: "file:my%20list.db", wantDSN: "file:my%20list.db?_busy_timeout=5000", wantFile: "my list.db"},
		{path: "file://remote/todo.db", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			loc, err := parseLocation(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDSN, loc.dsn)
			assert.Equal(t, tt.wantFile, loc.file)
		})
	}
}

func TestObserveAll_FileURISeesWritesFromOtherHandle(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		uri  string
	}{
		{name: "absolute", uri: "file:" + filepath.Join(dir, "abs.db")},
		{name: "with query", uri: "file:" + filepath.Join(dir, "query.db") + "?cache=private"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := setupFileDB(t, tt.uri)
			writer := setupFileDB(t, tt.uri)

			ch := observe(t, reader)
			waitForItems(t, ch, hasLen(0))

			require.NoError(t, writer.Persist(context.Background(), &models.Item{Title: "Via uri"}))
			items := waitForItems(t, ch, hasLen(1))
			assert.Equal(t, "Via uri", items[0].Title)
		})
	}
}

func TestObserveAll_RelativeFileURI(t *testing.T) {
	chdir(t, t.TempDir())

	reader := setupFileDB(t, "file:rel.db")
	writer := setupFileDB(t, "file:rel.db")

	ch := observe(t, reader)
	waitForItems(t, ch, hasLen(0))

	require.NoError(t, writer.Persist(context.Background(), &models.Item{Title: "Relative"}))
	waitForItems(t, ch, hasLen(1))

	_, err := os.Stat("rel.db")
	require.NoError(t, err, "expected the uri to name rel.db in the working directory")
}

func TestDatabaseFile(t *testing.T) {
	file, err := DatabaseFile("file:data/todo.db?cache=shared")
	require.NoError(t, err)
	assert.Equal(t, "data/todo.db", file)

	file, err = DatabaseFile(":memory:")
	require.NoError(t, err)
	assert.Empty(t, file)
}

func TestFileWatcher_CloseIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "todo.db")

	fw, err := newFileWatcher(dbPath, func() {}, nil)
	require.NoError(t, err)

	require.NoError(t, fw.Close())
	require.NoError(t, fw.Close())
}
