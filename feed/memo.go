package feed

import "github.com/AshBuk/pic-share/model"

// PostUnchanged reports whether a rendered post subtree may skip re-rendering.
// It is the render-side counterpart of the cache's identity contract: merges
// preserve pointers exactly when this predicate would hold, so the pointer
// short-circuit does nearly all the work in practice.
//
// Title, description and image are immutable after creation and deliberately
// not compared.
func PostUnchanged(prev *model.Post, next *model.Post) bool {
	if prev == next {
		return true
	}
	if prev == nil || next == nil {
		return false
	}
	return prev.Id == next.Id &&
		prev.LikesCount == next.LikesCount &&
		prev.ViewerHasLiked == next.ViewerHasLiked &&
		len(prev.Comments) == len(next.Comments) &&
		sameCommentsBacking(prev.Comments, next.Comments)
}

// sameCommentsBacking reports whether the two slices share the same backing
// array. A likes-only merge copies the post shallowly, so its comment slice
// header survives, while a comments merge installs a freshly queried slice.
func sameCommentsBacking(prev []model.Comment, next []model.Comment) bool {
	if len(prev) == 0 && len(next) == 0 {
		return true
	}
	if len(prev) == 0 || len(next) == 0 {
		return false
	}
	return &prev[0] == &next[0]
}

// ImageKey is the memoization key of a post's image element. The image render
// path only re-runs when the key changes by value, which a likes or comments
// merge never causes.
type ImageKey struct {
	PostId   string
	ImageURL string
	Title    string
	// Priority marks above-the-fold images that should be fetched eagerly.
	Priority bool
}

// ImageKeyFor derives the image memoization key for a post at the given feed
// position. The first page renders eagerly.
func ImageKeyFor(post *model.Post, position int, pageSize int) ImageKey {
	return ImageKey{
		PostId:   post.Id,
		ImageURL: post.ImageURL,
		Title:    post.Title,
		Priority: position < pageSize,
	}
}
