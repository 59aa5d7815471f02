package pull

// FilePullMode tells how a pulled file ended up with its content.
type FilePullMode int

const (
	DownloadedFromRemote FilePullMode = iota
	UsedLocalCache
	WasAlreadyPresent
)

func (m FilePullMode) String() string {
	switch m {
	case DownloadedFromRemote:
		return "Downloaded from lfs server"
	case UsedLocalCache:
		return "Taken from local cache"
	case WasAlreadyPresent:
		return "File already pulled"
	default:
		return "Unknown"
	}
}

// PullResult pairs one worktree file with the way its content arrived.
type PullResult struct {
	Path string
	Mode FilePullMode
}

// repoContext is the per-repository state a pull needs: where to ask
// for objects and where to cache them.
type repoContext struct {
	remote  string
	lfsRoot string
}
