package conversation

import (
	"fmt"
	"path/filepath"
)

// IntegrityError reports a parentUuid that dangles within a single file
// with no compaction explanation. The affected session is unreadable;
// other sessions in a listing still resolve.
type IntegrityError struct {
	Path       string
	UUID       string
	ParentUUID string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: entry %s references missing parent %s",
		filepath.Base(e.Path), e.UUID, e.ParentUUID)
}

// UnresolvableRootError reports a cycle in the parent chain. Walking stops
// instead of hanging and the session is marked unreadable.
type UnresolvableRootError struct {
	Path string
	UUID string
}

func (e *UnresolvableRootError) Error() string {
	return fmt.Sprintf("%s: parent chain revisits entry %s",
		filepath.Base(e.Path), e.UUID)
}
