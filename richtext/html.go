package richtext

import (
	"bytes"
	"html"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// RenderHTML writes the HTML representation of doc to buf. Consecutive list
// items are grouped into a single <ul> or <ol>.
func RenderHTML(buf *bytes.Buffer, doc Document) {
	openList := ""
	flushList := func() {
		if openList != "" {
			buf.WriteString("</" + openList + ">")
			openList = ""
		}
	}

	for _, b := range doc {
		switch b.Type {
		case TypeListItem, TypeOListItem:
			want := "ul"
			if b.Type == TypeOListItem {
				want = "ol"
			}
			if openList != want {
				flushList()
				buf.WriteString("<" + want + ">")
				openList = want
			}
			buf.WriteString("<li>")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</li>")
			continue
		}

		flushList()
		switch b.Type {
		case TypeHeading1, TypeHeading2, TypeHeading3, TypeHeading4, TypeHeading5, TypeHeading6:
			tag := "h" + strings.TrimPrefix(b.Type, "heading")
			buf.WriteString("<" + tag + ">")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</" + tag + ">")
		case TypePreformatted:
			buf.WriteString("<pre>")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</pre>")
		case TypeImage:
			src := SafeURL(b.URL)
			if src == "" {
				continue
			}
			buf.WriteString(`<p class="block-img"><img src="` + src + `" alt="` + html.EscapeString(b.Alt) + `"`)
			if b.Dimensions != nil && b.Dimensions.Width > 0 && b.Dimensions.Height > 0 {
				buf.WriteString(` width="` + strconv.Itoa(b.Dimensions.Width) + `" height="` + strconv.Itoa(b.Dimensions.Height) + `"`)
			}
			buf.WriteString(` loading="lazy" decoding="async"/></p>`)
		case TypeEmbed:
			if b.Oembed == nil || b.Oembed.HTML == "" {
				continue
			}
			// oEmbed markup comes from the content backend and is rendered as is.
			buf.WriteString(`<div data-oembed="` + html.EscapeString(b.Oembed.EmbedURL) + `" data-oembed-type="` + html.EscapeString(b.Oembed.Type) + `">`)
			buf.WriteString(b.Oembed.HTML)
			buf.WriteString("</div>")
		default:
			if b.Text == "" {
				continue
			}
			buf.WriteString("<p>")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</p>")
		}
	}
	flushList()
}

// FormatSpans escapes text and wraps the ranges covered by spans in their
// tags. Overlapping spans are split so the output is always well nested.
func FormatSpans(text string, spans []Span) string {
	units := utf16.Encode([]rune(text))
	n := len(units)

	valid := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > n {
			s.End = n
		}
		if s.Start < s.End {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return escapeText(text)
	}

	points := []int{0, n}
	for _, s := range valid {
		points = append(points, s.Start, s.End)
	}
	sort.Ints(points)
	points = dedupe(points)

	var buf strings.Builder
	var stack []int
	for i := 0; i < len(points)-1; i++ {
		from, to := points[i], points[i+1]

		active := make(map[int]bool)
		for idx, s := range valid {
			if s.Start <= from && s.End >= to {
				active[idx] = true
			}
		}

		// Close everything from the first span that no longer applies.
		for k, idx := range stack {
			if !active[idx] {
				for j := len(stack) - 1; j >= k; j-- {
					buf.WriteString(closeTag(valid[stack[j]]))
				}
				stack = stack[:k]
				break
			}
		}

		var open []int
		for idx := range active {
			if !contains(stack, idx) {
				open = append(open, idx)
			}
		}
		// Longer spans wrap shorter ones.
		sort.Slice(open, func(a, b int) bool {
			sa, sb := valid[open[a]], valid[open[b]]
			if sa.End != sb.End {
				return sa.End > sb.End
			}
			if sa.Start != sb.Start {
				return sa.Start < sb.Start
			}
			return open[a] < open[b]
		})
		for _, idx := range open {
			buf.WriteString(openTag(valid[idx]))
			stack = append(stack, idx)
		}

		buf.WriteString(escapeText(string(utf16.Decode(units[from:to]))))
	}
	for j := len(stack) - 1; j >= 0; j-- {
		buf.WriteString(closeTag(valid[stack[j]]))
	}
	return buf.String()
}

func openTag(s Span) string {
	switch s.Type {
	case SpanStrong:
		return "<strong>"
	case SpanEm:
		return "<em>"
	case SpanHyperlink:
		href := SafeURL(s.Data.URL)
		if href == "" {
			return ""
		}
		attrs := ""
		if s.Data.Target == "_blank" {
			attrs = ` target="_blank" rel="noopener noreferrer"`
		}
		return `<a href="` + href + `"` + attrs + `>`
	case SpanLabel:
		return `<span class="` + html.EscapeString(s.Data.Label) + `">`
	default:
		return ""
	}
}

func closeTag(s Span) string {
	switch s.Type {
	case SpanStrong:
		return "</strong>"
	case SpanEm:
		return "</em>"
	case SpanHyperlink:
		if SafeURL(s.Data.URL) == "" {
			return ""
		}
		return "</a>"
	case SpanLabel:
		return "</span>"
	default:
		return ""
	}
}

func escapeText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br />")
}

func dedupe(sorted []int) []int {
	out := sorted[:0]
	for _, v := range sorted {
		if len(out) == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// SafeURL returns raw HTML-escaped if it is relative or uses an allowed
// scheme (http, https, mailto, tel), and "" otherwise.
func SafeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
