package project

import (
	"sort"

	"cchat/pkg/cclog"
)

// LoadFamily loads a session file together with its compaction
// predecessors, oldest first. Predecessors are found by following the
// logical parent of each file's initial entry back to the file that
// contains that entry; files sharing the target's sessionId are pulled
// in as well and ordered by modification time, which covers logs written
// before logical parent links existed.
func LoadFamily(dir, path string) ([]*cclog.File, error) {
	target, err := cclog.Load(path)
	if err != nil {
		return nil, err
	}

	siblings, err := SessionFiles(dir)
	if err != nil {
		// A bare file outside a project dir is still viewable alone.
		return []*cclog.File{target}, nil
	}

	loaded := map[string]*cclog.File{path: target}
	chain := []*cclog.File{target}
	seen := map[string]bool{path: true}

	// Walk logical parent links backward from the chain head.
	for {
		head := chain[0]
		first := head.FirstEntry()
		if first == nil || first.LogicalParentUUID == "" {
			break
		}
		if head.Lookup(first.LogicalParentUUID) != nil {
			break // microcompaction, parent is in the same file
		}
		pred := findFileWithUUID(siblings, seen, loaded, first.LogicalParentUUID)
		if pred == nil {
			break
		}
		seen[pred.Path] = true
		chain = append([]*cclog.File{pred}, chain...)
	}

	// Same sessionId is the family signal when links are absent.
	if sid := target.SessionID; sid != "" {
		var extras []*cclog.File
		for _, p := range siblings {
			if seen[p] {
				continue
			}
			f := loadCached(loaded, p)
			if f == nil || f.SessionID != sid {
				continue
			}
			seen[p] = true
			extras = append(extras, f)
		}
		if len(extras) > 0 {
			chain = append(chain, extras...)
			sort.Slice(chain, func(i, j int) bool {
				return chain[i].Mtime.Before(chain[j].Mtime)
			})
		}
	}

	return chain, nil
}

func findFileWithUUID(candidates []string, seen map[string]bool, cache map[string]*cclog.File, uuid string) *cclog.File {
	for _, p := range candidates {
		if seen[p] {
			continue
		}
		f := loadCached(cache, p)
		if f == nil {
			continue
		}
		if f.Lookup(uuid) != nil {
			return f
		}
	}
	return nil
}

func loadCached(cache map[string]*cclog.File, path string) *cclog.File {
	if f, ok := cache[path]; ok {
		return f
	}
	f, err := cclog.Load(path)
	if err != nil {
		cache[path] = nil
		return nil
	}
	cache[path] = f
	return f
}
