package migrations

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// migration is one embedded SQL file split into statements.
type migration struct {
	name       string
	statements []string
}

// load reads dir's .sql files in lexical order and splits each into statements.
// Files holding only comments or whitespace are skipped.
func load(fsys fs.FS, dir string) ([]migration, error) {
	names, err := sqlFiles(fsys, dir)
	if err != nil {
		return nil, err
	}

	out := make([]migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		stmts, err := splitStatements(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse migration %s: %w", name, err)
		}
		if len(stmts) == 0 {
			continue
		}
		out = append(out, migration{name: name, statements: stmts})
	}
	return out, nil
}

// apply loads dir and hands every statement to exec, stopping at the first failure.
func apply(fsys fs.FS, dir string, exec func(stmt string) error) error {
	set, err := load(fsys, dir)
	if err != nil {
		return err
	}
	for _, m := range set {
		for i, stmt := range m.statements {
			if err := exec(stmt); err != nil {
				return fmt.Errorf("apply migration %s (statement %d): %w", m.name, i+1, err)
			}
		}
	}
	return nil
}

// sqlFiles lists the .sql files under dir in lexical order.
func sqlFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// splitStatements cuts SQL on semicolons that sit outside single-quoted
// literals. Whole-line -- comments are removed first; '' inside a literal is
// an escaped quote.
func splitStatements(input string) ([]string, error) {
	var body strings.Builder
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}

	var (
		stmts    []string
		current  strings.Builder
		inString bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}

	for _, r := range body.String() {
		if r == '\'' {
			inString = !inString
		} else if r == ';' && !inString {
			flush()
			continue
		}
		current.WriteRune(r)
	}
	if inString {
		return nil, fmt.Errorf("unterminated string literal")
	}
	flush()
	return stmts, nil
}
