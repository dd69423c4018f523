package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	texttemplate "text/template"

	"github.com/FranksOps/digest/internal/pipeline"
)

// separator frames the digest text in terminal output.
var separator = strings.Repeat("=", 80)

var funcs = texttemplate.FuncMap{
	"upper":     strings.ToUpper,
	"separator": func() string { return separator },
}

// WriteJSON writes the digest to the provided writer in JSON format.
func WriteJSON(w io.Writer, d *pipeline.Digest) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("report: encode digest: %w", err)
	}
	return nil
}

const textTmpl = `
{{separator}}
NEWS SUMMARY FOR: {{upper .Topic}}
{{separator}}
{{.Summary}}
{{separator}}
{{- if .Articles}}
Sources ({{len .Articles}} of {{.TotalResults}} results, {{.Enriched}} fetched in full):
{{- range $i, $a := .Articles}}
  {{inc $i}}. {{$a.Title}} ({{$a.SourceName}})
{{- if $a.Link}}
     {{$a.Link}}
{{- end}}
{{- end}}
{{- end}}
`

// WriteText writes the digest framed by a banner naming the topic, followed
// by the list of sources it was built from.
func WriteText(w io.Writer, d *pipeline.Digest) error {
	t, err := texttemplate.New("textReport").
		Funcs(funcs).
		Funcs(texttemplate.FuncMap{"inc": func(i int) int { return i + 1 }}).
		Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse text template: %w", err)
	}

	if err := t.Execute(w, d); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}
	return nil
}

// WriteTopics writes one banner section per topic outcome. Skipped topics and
// failures are listed after the digests.
func WriteTopics(w io.Writer, name string, results []pipeline.TopicResult) error {
	if name != "" {
		if _, err := fmt.Fprintf(w, "Daily digest for %s\n", name); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}

	var skipped, failed []string
	for _, r := range results {
		switch {
		case r.Digest != nil:
			if err := WriteText(w, r.Digest); err != nil {
				return err
			}
		case r.Skipped:
			skipped = append(skipped, r.Topic)
		case r.Err != nil:
			failed = append(failed, fmt.Sprintf("%s: %v", r.Topic, r.Err))
		}
	}

	if len(skipped) > 0 {
		if _, err := fmt.Fprintf(w, "\nNo news found for: %s\n", strings.Join(skipped, ", ")); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}
	for _, f := range failed {
		if _, err := fmt.Fprintf(w, "Failed: %s\n", f); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>News summary: {{.Topic}}</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; max-width: 860px; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .summary { white-space: pre-wrap; background: #f4f4f4; padding: 20px; border-radius: 5px; }
  .meta { color: #777; }
  li { margin-bottom: 10px; }
</style>
</head>
<body>
  <h1>News summary for {{.Topic}}</h1>
  <p class="meta">Past {{.Window}} &middot; {{.TotalResults}} results &middot; {{.Enriched}} fetched in full &middot; {{.CreatedAt.Format "2006-01-02 15:04:05"}}</p>
  <div class="summary">{{.Summary}}</div>

  <h3>Sources</h3>
  <ol>
    {{- range .Articles}}
    <li>{{if .Link}}<a href="{{.Link}}">{{.Title}}</a>{{else}}{{.Title}}{{end}} <span class="meta">{{.SourceName}}{{if .Date}}, {{.Date}}{{end}}</span><br>{{.Snippet}}</li>
    {{- else}}
    <li>None</li>
    {{- end}}
  </ol>
</body>
</html>
`

// WriteHTML writes a standalone HTML page for the digest.
func WriteHTML(w io.Writer, d *pipeline.Digest) error {
	t, err := template.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: parse html template: %w", err)
	}

	if err := t.Execute(w, d); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}

// Write renders d in the named format: text, json or html.
func Write(w io.Writer, format string, d *pipeline.Digest) error {
	switch strings.ToLower(format) {
	case "", "text":
		return WriteText(w, d)
	case "json":
		return WriteJSON(w, d)
	case "html":
		return WriteHTML(w, d)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

// ValidFormat reports whether Write understands format.
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case "", "text", "json", "html":
		return true
	}
	return false
}
