package mcpserver

// PostFormatContract describes the source format that LLM consumers should
// follow when creating or updating posts.
const PostFormatContract = `# folio Post Format Contract

Every post source is a Markdown file with optional YAML front matter. The
file stem is the post id and must be unique across the whole source tree.

## Structure

` + "```" + `markdown
---
blog-title: Human-readable title     # OPTIONAL – defaults to the file stem
blog-subtitle: Short tagline         # OPTIONAL
blog-author: Jane Doe                # OPTIONAL – defaults to the site author
blog-date: 2025-01-15                # OPTIONAL – also Date, DATE, blog-published
blog-tags:                           # OPTIONAL – YAML list or comma-separated string
  - go
  - tooling
blog-archived: false                 # OPTIONAL – listed under the archive
blog-skip: false                     # OPTIONAL – never published
---

Body text in standard Markdown (GitHub flavored).
` + "```" + `

## Rules

1. **Ids are file stems.** ` + "`" + `2024/hello.md` + "`" + ` and ` + "`" + `drafts/hello.md` + "`" + ` collide.
2. **Dates** are ` + "`" + `YYYY-MM-DD` + "`" + `. The first present key of ` + "`" + `blog-date` + "`" + `, ` + "`" + `Date` + "`" + `,
   ` + "`" + `DATE` + "`" + `, ` + "`" + `blog-published` + "`" + ` wins. The publish date decides the output path
   ` + "`" + `posts/<yyyy>/<mm>/<id>.html` + "`" + `.
3. **Tags** from ` + "`" + `blog-tags` + "`" + ` and ` + "`" + `tag` + "`" + ` are merged. Tag ids are lowercase without
   whitespace, so ` + "`" + `Go Lang` + "`" + ` and ` + "`" + `golang` + "`" + ` are the same tag. A year tag is added
   automatically. The tag ` + "`" + `blog` + "`" + ` is indexed but never displayed.
4. **blog-skip: true** removes the post and all its artifacts on the next build.
5. **File paths** end with ` + "`" + `.md` + "`" + `, use forward slashes and contain no hidden segments.
6. Changes are published by the ` + "`" + `build` + "`" + ` tool, not on write.

## Assets & Images

- Upload assets via the ` + "`" + `upload_asset` + "`" + ` tool. It returns a ` + "`" + `markdownImage` + "`" + ` field ready to paste into the post body.
- Reference images with ` + "`" + `/images/filename.png` + "`" + `; the build rewrites the prefix to the media directory.
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf.

## Example

` + "```" + `markdown
---
blog-title: Incremental builds
blog-date: 2025-01-20
blog-tags: [go, static-sites]
---

Rebuilding only what changed.

![Pipeline](/images/pipeline.png)
` + "```" + `
`
