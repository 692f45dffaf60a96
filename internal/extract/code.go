package extract

import (
	"fmt"
)

// typeToLang maps source file type tags to language names.
var typeToLang = map[string]string{
	"go":    "go",
	"py":    "python",
	"pyi":   "python",
	"js":    "javascript",
	"jsx":   "javascript",
	"mjs":   "javascript",
	"ts":    "typescript",
	"tsx":   "typescript",
	"rs":    "rust",
	"java":  "java",
	"c":     "c",
	"h":     "c",
	"cc":    "cpp",
	"cpp":   "cpp",
	"hpp":   "cpp",
	"cs":    "csharp",
	"rb":    "ruby",
	"php":   "php",
	"swift": "swift",
	"kt":    "kotlin",
	"scala": "scala",
	"sh":    "shell",
	"bash":  "shell",
	"zsh":   "shell",
	"sql":   "sql",
	"html":  "html",
	"css":   "css",
	"json":  "json",
	"yaml":  "yaml",
	"yml":   "yaml",
	"toml":  "toml",
	"xml":   "xml",
}

// CodeExtractor handles source code. The text passes through the same
// encoding fallback as prose; metadata records the detected language.
type CodeExtractor struct{}

func NewCodeExtractor() *CodeExtractor {
	return &CodeExtractor{}
}

func (e *CodeExtractor) Types() []string {
	types := make([]string, 0, len(typeToLang))
	for t := range typeToLang {
		types = append(types, t)
	}
	return types
}

func (e *CodeExtractor) Extract(path string, content []byte) (*Result, error) {
	text, encoding, err := decodeText(content)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	meta := map[string]string{
		"size":     fmt.Sprintf("%d", len(content)),
		"lines":    fmt.Sprintf("%d", countLines(text)),
		"encoding": encoding,
	}
	if lang, ok := typeToLang[FileType(path)]; ok {
		meta["language"] = lang
	}

	return &Result{Text: text, Metadata: meta}, nil
}
