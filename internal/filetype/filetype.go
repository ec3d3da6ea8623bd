// Package filetype maps file extensions to the coarse types the vault UI renders.
package filetype

import "strings"

// Type is a coarse semantic file type.
type Type string

const (
	Markdown Type = "markdown"
	PDF      Type = "pdf"
	Image    Type = "image"
	Text     Type = "text"
	Code     Type = "code"
	Archive  Type = "archive"
	Office   Type = "office"
	Audio    Type = "audio"
	Video    Type = "video"
	File     Type = "file"
)

var byExt = map[string]Type{}

func init() {
	groups := map[Type][]string{
		Markdown: {"md", "markdown"},
		PDF:      {"pdf"},
		Image:    {"png", "jpg", "jpeg", "gif", "webp", "svg", "bmp", "ico"},
		Text:     {"txt", "log", "json", "xml", "yaml", "yml", "toml", "ini", "cfg", "conf"},
		Code: {
			"js", "ts", "jsx", "tsx", "vue", "html", "css", "scss", "less",
			"rs", "py", "java", "c", "cpp", "h", "hpp", "go", "rb", "php", "swift", "kt",
		},
		Archive: {"zip", "rar", "7z", "tar", "gz", "bz2"},
		Office:  {"doc", "docx", "xls", "xlsx", "ppt", "pptx"},
		Audio:   {"mp3", "wav", "ogg", "flac", "aac", "m4a"},
		Video:   {"mp4", "avi", "mkv", "mov", "wmv", "flv", "webm"},
	}
	for t, exts := range groups {
		for _, ext := range exts {
			byExt[ext] = t
		}
	}
}

// Classify returns the type for ext. The lookup ignores case and a leading
// dot; unknown and empty extensions are File.
func Classify(ext string) Type {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if t, ok := byExt[ext]; ok {
		return t
	}
	return File
}

// SplitExt splits a file name at its final dot. A name whose only dot is the
// leading one (".gitignore") has no extension.
func SplitExt(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}
