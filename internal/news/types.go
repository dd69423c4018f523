// Package news holds the records that flow through a digest run, from raw
// search results to the normalized articles handed to the prompt builder.
package news

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultWindow is the recency filter used when none is given.
	DefaultWindow = "1d"
	// MinResultCap and MaxResultCap bound how many results a search returns.
	MinResultCap = 1
	MaxResultCap = 20
)

var windowPattern = regexp.MustCompile(`^[1-7]d$`)

// ValidWindow reports whether w is one of 1d..7d.
func ValidWindow(w string) bool {
	return windowPattern.MatchString(w)
}

// SearchQuery is a validated request to a search provider.
type SearchQuery struct {
	Topic     string
	Window    string
	ResultCap int
}

// NewSearchQuery validates the topic and window and clamps resultCap to
// [MinResultCap, MaxResultCap].
func NewSearchQuery(topic, window string, resultCap int) (SearchQuery, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return SearchQuery{}, fmt.Errorf("%w: topic must not be empty", ErrValidation)
	}
	if !ValidWindow(window) {
		return SearchQuery{}, fmt.Errorf("%w: time window %q must be one of 1d..7d", ErrValidation, window)
	}
	return SearchQuery{Topic: topic, Window: window, ResultCap: ClampResultCap(resultCap)}, nil
}

// ClampResultCap clamps n to [MinResultCap, MaxResultCap].
func ClampResultCap(n int) int {
	switch {
	case n < MinResultCap:
		return MinResultCap
	case n > MaxResultCap:
		return MaxResultCap
	default:
		return n
	}
}

// Source is the publisher of a result. Providers send it either as a bare
// string or as an object with a name.
type Source struct {
	Name    string   `json:"name,omitempty"`
	Icon    string   `json:"icon,omitempty"`
	Authors []string `json:"authors,omitempty"`
}

// UnmarshalJSON accepts a string, an object with a name field, or any other
// scalar, which is kept as its literal text. Fields of the wrong type decode
// as empty.
func (s *Source) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Source{}
		return nil
	}

	switch data[0] {
	case '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*s = Source{Name: name}
	case '{':
		var obj struct {
			Name    json.RawMessage `json:"name"`
			Title   json.RawMessage `json:"title"`
			Icon    json.RawMessage `json:"icon"`
			Authors json.RawMessage `json:"authors"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		name := scalarText(obj.Name)
		if name == "" {
			name = scalarText(obj.Title)
		}
		*s = Source{Name: name, Icon: scalarText(obj.Icon), Authors: decodeAuthors(obj.Authors)}
	case '[':
		*s = Source{}
	default:
		*s = Source{Name: string(data)}
	}
	return nil
}

func decodeAuthors(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		var authors []string
		for _, a := range list {
			if name := scalarText(a); name != "" {
				authors = append(authors, name)
			}
		}
		return authors
	}
	if one := scalarText(raw); one != "" {
		return []string{one}
	}
	return nil
}

// scalarText renders a JSON string, number or bool as text. Null, objects,
// arrays and malformed input yield "".
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	default:
		return string(raw)
	}
}

// RawResult is one search hit in provider order.
type RawResult struct {
	Position    int    `json:"position,omitempty"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Source      Source `json:"source"`
	Snippet     string `json:"snippet,omitempty"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// UnmarshalJSON decodes one provider record field by field. A field of the
// wrong type falls back to its zero value, and a record that is not an object
// decodes as empty, so one odd entry never fails a whole response.
func (r *RawResult) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*r = RawResult{}
		return nil
	}

	var fields struct {
		Position    json.RawMessage `json:"position"`
		Title       json.RawMessage `json:"title"`
		Link        json.RawMessage `json:"link"`
		Source      Source          `json:"source"`
		Snippet     json.RawMessage `json:"snippet"`
		Description json.RawMessage `json:"description"`
		Date        json.RawMessage `json:"date"`
		Thumbnail   json.RawMessage `json:"thumbnail"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	position, _ := strconv.Atoi(strings.TrimSpace(scalarText(fields.Position)))
	*r = RawResult{
		Position:    position,
		Title:       scalarText(fields.Title),
		Link:        scalarText(fields.Link),
		Source:      fields.Source,
		Snippet:     scalarText(fields.Snippet),
		Description: scalarText(fields.Description),
		Date:        scalarText(fields.Date),
		Thumbnail:   scalarText(fields.Thumbnail),
	}
	return nil
}

// Empty reports whether r carries nothing a digest can use.
func (r RawResult) Empty() bool {
	return r.Link == "" && r.Title == "" && r.Snippet == "" && r.Description == ""
}

// EnrichedResult is a RawResult plus the page text, when fetching it worked.
type EnrichedResult struct {
	RawResult
	FullContent string `json:"full_content,omitempty"`
}

// UnmarshalJSON keeps full_content, which the promoted RawResult decoder
// would drop.
func (e *EnrichedResult) UnmarshalJSON(data []byte) error {
	if err := e.RawResult.UnmarshalJSON(data); err != nil {
		return err
	}
	e.FullContent = ""
	var extra struct {
		FullContent json.RawMessage `json:"full_content"`
	}
	if json.Unmarshal(data, &extra) == nil {
		e.FullContent = scalarText(extra.FullContent)
	}
	return nil
}

// NormalizedArticle is the uniform article shape consumed by the prompt builder.
type NormalizedArticle struct {
	Title      string `json:"title"`
	SourceName string `json:"source"`
	Content    string `json:"-"`
	Snippet    string `json:"snippet"`
	Link       string `json:"link,omitempty"`
	Date       string `json:"date,omitempty"`
}
