package cms

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eringen/spacetraveling/locale"
	"github.com/eringen/spacetraveling/richtext"
)

// PostType is the custom type of blog posts.
const PostType = "posts"

// SummaryFields are the fields fetched for listing pages.
var SummaryFields = []string{"post.title", "post.subtitle", "post.author"}

// PostSummary is one entry of the index listing. FirstPublicationDate keeps
// the raw backend value; DisplayDate holds its localized form once normalized.
type PostSummary struct {
	UID                  string  `json:"uid"`
	FirstPublicationDate *string `json:"first_publication_date"`
	DisplayDate          string  `json:"display_date,omitempty"`
	Title                string  `json:"title"`
	Subtitle             string  `json:"subtitle"`
	Author               string  `json:"author"`
}

// PostPage is one page of summaries plus the cursor of the next one. An empty
// NextPage means there are no further pages.
type PostPage struct {
	NextPage string        `json:"next_page"`
	Results  []PostSummary `json:"results"`
}

// ContentBlock is one section of a post body.
type ContentBlock struct {
	Heading string            `json:"heading"`
	Body    richtext.Document `json:"body"`
}

// PostDetail is a fully loaded post.
type PostDetail struct {
	UID                  string         `json:"uid"`
	FirstPublicationDate *string        `json:"first_publication_date"`
	Title                string         `json:"title"`
	BannerURL            string         `json:"banner_url"`
	Author               string         `json:"author"`
	Content              []ContentBlock `json:"content"`
}

// Text is a field the backend may model either as key text or as rich text.
// Rich text is flattened to plain text.
type Text string

// UnmarshalJSON accepts a JSON string, null, or a rich text array.
func (t *Text) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var doc richtext.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("cms: text field: %w", err)
	}
	*t = Text(richtext.AsText(doc))
	return nil
}

type postData struct {
	Title    Text `json:"title"`
	Subtitle Text `json:"subtitle"`
	Author   Text `json:"author"`
	Banner   struct {
		URL string `json:"url"`
	} `json:"banner"`
	Content []struct {
		Heading Text              `json:"heading"`
		Body    richtext.Document `json:"body"`
	} `json:"content"`
}

func decodeData(doc Document) (postData, error) {
	var d postData
	if len(doc.Data) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(doc.Data, &d); err != nil {
		return postData{}, fmt.Errorf("cms: decode %s %q: %w", doc.Type, doc.UID, err)
	}
	return d, nil
}

// Summary maps a raw document to a listing entry.
func Summary(doc Document) (PostSummary, error) {
	d, err := decodeData(doc)
	if err != nil {
		return PostSummary{}, err
	}
	return PostSummary{
		UID:                  doc.UID,
		FirstPublicationDate: doc.FirstPublicationDate,
		Title:                string(d.Title),
		Subtitle:             string(d.Subtitle),
		Author:               string(d.Author),
	}, nil
}

// Summaries maps one search page to a PostPage, preserving result order.
func Summaries(resp SearchResponse) (PostPage, error) {
	page := PostPage{
		NextPage: resp.Next(),
		Results:  make([]PostSummary, 0, len(resp.Results)),
	}
	for _, doc := range resp.Results {
		s, err := Summary(doc)
		if err != nil {
			return PostPage{}, err
		}
		page.Results = append(page.Results, s)
	}
	return page, nil
}

// DecodePostDetail maps a raw document to a PostDetail.
func DecodePostDetail(doc Document) (PostDetail, error) {
	d, err := decodeData(doc)
	if err != nil {
		return PostDetail{}, err
	}
	detail := PostDetail{
		UID:                  doc.UID,
		FirstPublicationDate: doc.FirstPublicationDate,
		Title:                string(d.Title),
		BannerURL:            d.Banner.URL,
		Author:               string(d.Author),
		Content:              make([]ContentBlock, 0, len(d.Content)),
	}
	for _, c := range d.Content {
		detail.Content = append(detail.Content, ContentBlock{Heading: string(c.Heading), Body: c.Body})
	}
	return detail, nil
}

// NormalizeSummaries returns copies of in with DisplayDate set by f. The raw
// timestamps are left as they are. Entries whose timestamp is missing or
// invalid keep an empty DisplayDate and contribute to the returned error.
func NormalizeSummaries(f *locale.Formatter, in []PostSummary) ([]PostSummary, error) {
	out := make([]PostSummary, len(in))
	var errs []error
	for i, s := range in {
		display, err := f.Format(s.FirstPublicationDate)
		if err != nil {
			errs = append(errs, fmt.Errorf("post %q: %w", s.UID, err))
		}
		s.DisplayDate = display
		out[i] = s
	}
	return out, errors.Join(errs...)
}
