package locator

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

// OriginName is the name of the only remote configured in a mirror.
const OriginName = "origin"

const (
	branchPrefixInLocalRepo  = "refs/remotes/" + OriginName + "/"
	branchPrefixInRemoteRepo = "refs/heads/"

	// AllBranchesFetchSpec maps every remote branch into the mirror.
	AllBranchesFetchSpec config.RefSpec = config.RefSpec("+" + branchPrefixInRemoteRepo + "*:" + branchPrefixInLocalRepo + "*")
)

// BranchName is a relative branch name (i.e. 'master', 'feature/x'). It maps to
// 'refs/heads/...' in the remote repository and to 'refs/remotes/origin/...'
// in the mirror.
type BranchName string

func (b BranchName) RefInRemote() plumbing.ReferenceName {
	return plumbing.ReferenceName(branchPrefixInRemoteRepo + string(b))
}

func (b BranchName) RefInLocal() plumbing.ReferenceName {
	return plumbing.ReferenceName(branchPrefixInLocalRepo + string(b))
}

func (b BranchName) ForceFetchSpec() config.RefSpec {
	return config.RefSpec(fmt.Sprintf("+%s:%s", b.RefInRemote(), b.RefInLocal()))
}

func (b BranchName) String() string {
	return string(b)
}

// Validate rejects names git would refuse as a branch, and names that could be
// taken for a command line option.
func (b BranchName) Validate() error {
	s := string(b)
	switch {
	case s == "":
		return fmt.Errorf("branch name is empty")
	case strings.HasPrefix(s, "-"), strings.HasPrefix(s, "/"), strings.HasSuffix(s, "/"):
		return fmt.Errorf("invalid branch name %q", s)
	case strings.HasSuffix(s, ".lock"), strings.HasSuffix(s, "."):
		return fmt.Errorf("invalid branch name %q", s)
	case strings.Contains(s, ".."), strings.Contains(s, "//"), strings.Contains(s, "@{"):
		return fmt.Errorf("invalid branch name %q", s)
	case strings.ContainsAny(s, " ~^:?*[\\\t\n"):
		return fmt.Errorf("invalid branch name %q", s)
	}
	return nil
}

// BranchFromLocalRef returns the branch name of a mirror reference.
func BranchFromLocalRef(n plumbing.ReferenceName) (BranchName, bool) {
	if !strings.HasPrefix(n.String(), branchPrefixInLocalRepo) {
		return "", false
	}
	return BranchName(strings.TrimPrefix(n.String(), branchPrefixInLocalRepo)), true
}
