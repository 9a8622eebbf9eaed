package loader

// Front-matter keys recognized in source documents. Anything else is ignored.
const (
	KeyTitle     = "blog-title"
	KeySubtitle  = "blog-subtitle"
	KeyAuthor    = "blog-author"
	KeyTags      = "blog-tags"
	KeyTagsAlt   = "tag"
	KeySkip      = "blog-skip"
	KeyArchived  = "blog-archived"
	KeyDate      = "blog-date"
	KeyPublished = "blog-published"
)

// dateKeys is the priority order for publish date resolution.
var dateKeys = []string{KeyDate, "Date", "DATE", KeyPublished}

// tagKeys are concatenated in this order.
var tagKeys = []string{KeyTags, KeyTagsAlt}
