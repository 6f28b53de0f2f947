package vcs

import (
	"strings"
	"time"
)

// AuthorInfo represents commit author information.
type AuthorInfo struct {
	Name  string
	Email string
}

// String returns the author in "Name <email>" form.
func (a AuthorInfo) String() string {
	if a.Email == "" {
		return a.Name
	}
	return a.Name + " <" + a.Email + ">"
}

// ChangeKind represents the type of change to a path.
type ChangeKind int

const (
	ChangeKindAdded ChangeKind = iota
	ChangeKindModified
	ChangeKindDeleted
)

// String returns a string representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeKindAdded:
		return "added"
	case ChangeKindModified:
		return "modified"
	case ChangeKindDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileChange represents a path touched by a commit, relative to its first parent.
type FileChange struct {
	Path string
	Kind ChangeKind
}

// Commit is a single node of the history graph as observed in a mirror.
type Commit struct {
	Revision Revision
	Parents  []Revision
	Author   AuthorInfo
	Comment  string
	When     time.Time // committer time, UTC
	Files    []FileChange
}

// Subject returns the first line of the commit comment.
func (c Commit) Subject() string {
	if idx := strings.IndexByte(c.Comment, '\n'); idx != -1 {
		return c.Comment[:idx]
	}
	return c.Comment
}

// Change is one commit reported by a detection.
type Change struct {
	Revision  Revision
	Author    AuthorInfo
	Comment   string
	When      time.Time
	Files     []FileChange
	IssueKeys []string
}

// NewChange builds the change entry for a commit.
func NewChange(c Commit) Change {
	return Change{
		Revision: c.Revision,
		Author:   c.Author,
		Comment:  c.Comment,
		When:     c.When,
		Files:    c.Files,
	}
}

// BuildRepositoryChanges is the result of a single detection call.
type BuildRepositoryChanges struct {
	// NewRevision is the head to record as "last seen".
	NewRevision Revision
	// Changes are ordered most recent first.
	Changes []Change
	// Skipped counts commits left out because of the configured maximum.
	Skipped int
}

// Comments returns the comments of all changes, in order.
func (b *BuildRepositoryChanges) Comments() []string {
	comments := make([]string, len(b.Changes))
	for i, c := range b.Changes {
		comments[i] = c.Comment
	}
	return comments
}

// Revisions returns the revisions of all changes, in order.
func (b *BuildRepositoryChanges) Revisions() []Revision {
	revs := make([]Revision, len(b.Changes))
	for i, c := range b.Changes {
		revs[i] = c.Revision
	}
	return revs
}
