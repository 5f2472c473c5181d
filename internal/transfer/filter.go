package transfer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultIgnoreFile is read from every uploaded directory unless
// Options.IgnoreFiles says otherwise.
const DefaultIgnoreFile = ".apoloignore"

// Filter is one --exclude or --include rule from the command line, in
// gitignore syntax. Filters are evaluated after every ignore file, so they
// have the last word.
type Filter struct {
	Pattern string
	Include bool
}

// matcher evaluates ignore patterns against paths relative to the transfer
// root. Patterns later in the list take precedence.
type matcher struct {
	ignores []gitignore.Pattern
	filters []gitignore.Pattern
}

func newMatcher(filters []Filter) *matcher {
	m := &matcher{}
	for _, f := range filters {
		p := f.Pattern
		if f.Include {
			p = "!" + p
		}
		m.filters = append(m.filters, gitignore.ParsePattern(p, nil))
	}
	return m
}

// scoped returns a matcher extended with patterns for one subtree; the
// receiver is left unchanged so siblings do not see them.
func (m *matcher) scoped(patterns []gitignore.Pattern) *matcher {
	if len(patterns) == 0 {
		return m
	}
	ignores := make([]gitignore.Pattern, 0, len(m.ignores)+len(patterns))
	ignores = append(ignores, m.ignores...)
	ignores = append(ignores, patterns...)
	return &matcher{ignores: ignores, filters: m.filters}
}

func (m *matcher) excluded(rel []string, isDir bool) bool {
	if len(m.ignores) == 0 && len(m.filters) == 0 {
		return false
	}
	all := make([]gitignore.Pattern, 0, len(m.ignores)+len(m.filters))
	all = append(all, m.ignores...)
	all = append(all, m.filters...)
	return gitignore.NewMatcher(all).Match(rel, isDir)
}

// readIgnoreFile parses dir/name with patterns scoped to domain, the
// directory's path below the transfer root. A missing file yields nothing.
func readIgnoreFile(ctx context.Context, fsys FileSystem, dir, name string, domain []string) ([]gitignore.Pattern, error) {
	r, err := fsys.Open(ctx, joinPath(dir, name), 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ignore file %s: %w", joinPath(dir, name), err)
	}
	defer func() { _ = r.Close() }()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, domain))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ignore file %s: %w", joinPath(dir, name), err)
	}
	return patterns, nil
}
