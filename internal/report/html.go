package report

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// htmlShell wraps the converted report body for browser display and PDF
// printing.
const htmlShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Testwise Report</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; max-width: 52em; margin: 2em auto; color: #222; line-height: 1.5; }
h1 { border-bottom: 2px solid #c0392b; padding-bottom: 0.3em; }
h2 { margin-top: 1.4em; }
table { border-collapse: collapse; margin: 0.5em 0; }
th, td { border: 1px solid #bbb; padding: 0.3em 0.8em; text-align: left; }
th { background: #f4f4f4; }
pre { background: #f8f8f8; padding: 0.8em; overflow-x: auto; }
hr { border: 0; border-top: 1px solid #ddd; margin: 1.5em 0; }
em { color: #777; }
</style>
</head>
<body>
%s
</body>
</html>
`

// converter renders GFM tables and passes the inline SVG chart through.
var converter = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// HTML converts a report Markdown document into a standalone HTML page.
func HTML(markdown string) ([]byte, error) {
	var body bytes.Buffer
	if err := converter.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	return []byte(fmt.Sprintf(htmlShell, body.String())), nil
}
