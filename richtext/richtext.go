// Package richtext renders structured rich text, as delivered by headless
// content backends, to plain text and to HTML.
package richtext

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Block types.
const (
	TypeParagraph    = "paragraph"
	TypeHeading1     = "heading1"
	TypeHeading2     = "heading2"
	TypeHeading3     = "heading3"
	TypeHeading4     = "heading4"
	TypeHeading5     = "heading5"
	TypeHeading6     = "heading6"
	TypePreformatted = "preformatted"
	TypeListItem     = "list-item"
	TypeOListItem    = "o-list-item"
	TypeImage        = "image"
	TypeEmbed        = "embed"
)

// Span types.
const (
	SpanStrong    = "strong"
	SpanEm        = "em"
	SpanHyperlink = "hyperlink"
	SpanLabel     = "label"
)

// Document is an ordered sequence of rich text blocks.
type Document []Block

// Block is a single paragraph, heading, list item, image or embed.
type Block struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	Spans      []Span      `json:"spans,omitempty"`
	URL        string      `json:"url,omitempty"`
	Alt        string      `json:"alt,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	Oembed     *Embed      `json:"oembed,omitempty"`
	Label      string      `json:"label,omitempty"`
}

// Dimensions of an image block.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Embed is the oEmbed payload of an embed block.
type Embed struct {
	Type     string `json:"type"`
	EmbedURL string `json:"embed_url"`
	HTML     string `json:"html"`
}

// Span marks a formatted range of a block's text. Start and End are offsets
// in UTF-16 code units, End exclusive.
type Span struct {
	Start int      `json:"start"`
	End   int      `json:"end"`
	Type  string   `json:"type"`
	Data  SpanData `json:"data,omitempty"`
}

// SpanData carries the link target of a hyperlink span or the name of a label span.
type SpanData struct {
	LinkType string `json:"link_type,omitempty"`
	URL      string `json:"url,omitempty"`
	Target   string `json:"target,omitempty"`
	Label    string `json:"label,omitempty"`
}

// AsText flattens doc to plain text. Block texts are joined with a single
// space; formatting is dropped.
func AsText(doc Document) string {
	parts := make([]string, 0, len(doc))
	for _, b := range doc {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}

// AsHTML returns the HTML representation of doc.
func AsHTML(doc Document) string {
	var buf bytes.Buffer
	RenderHTML(&buf, doc)
	return buf.String()
}

// RichText returns a templ.Component that renders doc as HTML.
func RichText(doc Document) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderHTML(&buf, doc)
		_, err := w.Write(buf.Bytes())
		return err
	})
}
