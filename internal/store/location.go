package store

import (
	"fmt"
	"net/url"
	"strings"
)

const busyTimeoutParam = "_busy_timeout=5000"

// location is a database path resolved into the DSN handed to the driver
// and the file on disk, if any.
type location struct {
	dsn string
	// file is empty for in-memory databases.
	file string
}

// parseLocation accepts a plain path, ":memory:", or a SQLite "file:" URI
// such as "file:data/todo.db?cache=shared" or "file:///var/lib/todo.db".
func parseLocation(dbPath string) (location, error) {
	name, query, hasQuery := strings.Cut(dbPath, "?")

	var dsn string
	switch {
	case dbPath == "":
		// The driver opens a private temporary database.
	case hasQuery:
		dsn = dbPath + "&" + busyTimeoutParam
	default:
		dsn = dbPath + "?" + busyTimeoutParam
	}
	loc := location{dsn: dsn}

	if rest, ok := strings.CutPrefix(name, "file:"); ok {
		params, err := url.ParseQuery(query)
		if err != nil {
			return location{}, fmt.Errorf("invalid database uri %q: %w", dbPath, err)
		}
		if params.Get("mode") == "memory" {
			return loc, nil
		}

		if authority, ok := strings.CutPrefix(rest, "//"); ok {
			host, p, _ := strings.Cut(authority, "/")
			if host != "" && host != "localhost" {
				return location{}, fmt.Errorf("invalid database uri %q: unsupported host %q", dbPath, host)
			}
			rest = "/" + p
		}

		unescaped, err := url.PathUnescape(rest)
		if err != nil {
			return location{}, fmt.Errorf("invalid database uri %q: %w", dbPath, err)
		}
		name = unescaped
	}

	if name == "" || strings.HasPrefix(name, ":") {
		return loc, nil
	}
	loc.file = name
	return loc, nil
}

// DatabaseFile returns the on-disk file dbPath refers to, or "" for an
// in-memory database.
func DatabaseFile(dbPath string) (string, error) {
	loc, err := parseLocation(dbPath)
	if err != nil {
		return "", err
	}
	return loc.file, nil
}
