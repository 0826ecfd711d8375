package source

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/distr1/backupd/internal/model"
)

type globReader struct {
	src      *model.GlobSource
	patterns []*regexp.Regexp
}

func newGlobReader(src *model.GlobSource) (*globReader, error) {
	patterns := make([]*regexp.Regexp, 0, len(src.Patterns))
	for _, p := range src.Patterns {
		re, err := compileGlobPattern(p)
		if err != nil {
			return nil, &model.ConfigError{Reason: "invalid glob pattern " + p + ": " + err.Error()}
		}
		patterns = append(patterns, re)
	}
	return &globReader{src: src, patterns: patterns}, nil
}

func (g *globReader) matches(relSlash string) bool {
	for _, re := range g.patterns {
		if re.MatchString(relSlash) {
			return true
		}
	}
	return false
}

func (g *globReader) Read(ctx context.Context, emit func(model.ArchiveEntry) error, onSkip func(error)) error {
	type match struct {
		rel  string // OS-native relative path
		info fs.FileInfo
	}
	var found []match
	err := walkFollowingFileSymlinks(g.src.SrcDir, "", func(rel string, info fs.FileInfo) {
		if g.matches(filepath.ToSlash(rel)) {
			found = append(found, match{rel: rel, info: info})
		}
	}, onSkip)
	if err != nil {
		return err
	}

	sort.Slice(found, func(i, j int) bool {
		return filepath.ToSlash(found[i].rel) < filepath.ToSlash(found[j].rel)
	})

	for _, m := range found {
		if err := ctx.Err(); err != nil {
			return err
		}
		full := filepath.Join(g.src.SrcDir, m.rel)
		f, err := os.Open(full)
		if err != nil {
			onSkip(&model.EntrySkipped{Path: filepath.ToSlash(m.rel), Reason: err})
			continue
		}
		entry := model.ArchiveEntry{
			LogicalPath: joinLogicalPath(g.src.DstPrefix, filepath.ToSlash(m.rel)),
			Size:        m.info.Size(),
			Mtime:       m.info.ModTime(),
			Mode:        uint32(m.info.Mode().Perm()),
			Data:        f,
		}
		emitErr := emit(entry)
		f.Close()
		if emitErr != nil {
			return emitErr
		}
	}
	return nil
}

func joinLogicalPath(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

// walkFollowingFileSymlinks walks root recursively, calling onFile for
// every regular file (following a symlink to see whether it resolves to a
// regular file) found under it. Symlinked directories are not traversed, so
// a cyclic symlink farm cannot cause an infinite walk.
func walkFollowingFileSymlinks(root, rel string, onFile func(rel string, info fs.FileInfo), onSkip func(error)) error {
	dir := filepath.Join(root, rel)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, de := range entries {
		childRel := filepath.Join(rel, de.Name())
		childPath := filepath.Join(root, childRel)

		if de.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(childPath) // follows the symlink
			if err != nil {
				onSkip(&model.EntrySkipped{Path: filepath.ToSlash(childRel), Reason: err})
				continue
			}
			if info.IsDir() {
				continue // no loop chasing through symlinked directories
			}
			if info.Mode().IsRegular() {
				onFile(childRel, info)
			}
			continue
		}

		if de.IsDir() {
			if err := walkFollowingFileSymlinks(root, childRel, onFile, onSkip); err != nil {
				return err
			}
			continue
		}

		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			onSkip(&model.EntrySkipped{Path: filepath.ToSlash(childRel), Reason: err})
			continue
		}
		onFile(childRel, info)
	}
	return nil
}

// compileGlobPattern translates a pattern using "**" (any number of path
// components), "*" (any run of non-separator characters), "?" (one
// non-separator character), and "[...]" character classes into an anchored,
// case-sensitive regular expression matched against a forward-slash
// relative path.
//
// No example repo in the retrieval pack imports a "**"-aware glob library
// (doublestar and similar are absent from every go.mod in the pack), so
// this is built on the standard library's regexp — the narrowest
// stdlib-only piece of this codebase; see DESIGN.md.
func compileGlobPattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				sb.WriteString(".*")
				i++
				if i+1 < len(runes) && runes[i+1] == '/' {
					i++
				}
			} else {
				sb.WriteString("[^/]*")
			}
		case '?':
			sb.WriteString("[^/]")
		case '[':
			j := i + 1
			neg := false
			if j < len(runes) && (runes[j] == '!' || runes[j] == '^') {
				neg = true
				j++
			}
			start := j
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j >= len(runes) {
				sb.WriteString(regexp.QuoteMeta("["))
				continue
			}
			class := string(runes[start:j])
			sb.WriteString("[")
			if neg {
				sb.WriteString("^")
			}
			sb.WriteString(class)
			sb.WriteString("]")
			i = j
		case '.', '+', '(', ')', '|', '^', '$', '\\', '{', '}':
			sb.WriteString(regexp.QuoteMeta(string(c)))
		default:
			sb.WriteRune(c)
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
