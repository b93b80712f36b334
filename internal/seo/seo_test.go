package seo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func complete() Input {
	return Input{
		Title:           "A practical guide to caching listing endpoints",
		Excerpt:         "How we cache listings.",
		Content:         "<p>" + words(350) + "</p>",
		MetaTitle:       "Caching listings",
		MetaDescription: strings.Repeat("d", 140),
		MetaKeywords:    "cache, listings",
		Tags:            []string{"caching"},
		FeaturedImage:   "resources/cover.png",
	}
}

func TestScoreCompleteResourceIs100(t *testing.T) {
	assert.Equal(t, 100, Score(complete()))
}

func TestScoreEmptyResourceIsZero(t *testing.T) {
	assert.Equal(t, 0, Score(Input{}))
}

func TestScoreIsMonotone(t *testing.T) {
	clearers := map[string]func(*Input){
		"title":            func(in *Input) { in.Title = "" },
		"excerpt":          func(in *Input) { in.Excerpt = "" },
		"content":          func(in *Input) { in.Content = "" },
		"meta_title":       func(in *Input) { in.MetaTitle = "" },
		"meta_description": func(in *Input) { in.MetaDescription = "" },
		"meta_keywords":    func(in *Input) { in.MetaKeywords = "" },
		"tags":             func(in *Input) { in.Tags = nil },
		"featured_image":   func(in *Input) { in.FeaturedImage = "" },
	}

	for name, clear := range clearers {
		t.Run(name, func(t *testing.T) {
			full := complete()
			without := complete()
			clear(&without)
			assert.GreaterOrEqual(t, Score(full), Score(without))

			// Adding the field to an otherwise sparse input never lowers the score either.
			sparse := Input{Title: "Short"}
			withField := sparse
			switch name {
			case "title":
				withField.Title = full.Title
			case "excerpt":
				withField.Excerpt = full.Excerpt
			case "content":
				withField.Content = full.Content
			case "meta_title":
				withField.MetaTitle = full.MetaTitle
			case "meta_description":
				withField.MetaDescription = full.MetaDescription
			case "meta_keywords":
				withField.MetaKeywords = full.MetaKeywords
			case "tags":
				withField.Tags = full.Tags
			case "featured_image":
				withField.FeaturedImage = full.FeaturedImage
			}
			assert.GreaterOrEqual(t, Score(withField), Score(sparse))
		})
	}
}

func TestScoreMetaDescriptionLength(t *testing.T) {
	base := complete()
	base.MetaDescription = ""
	short := base
	short.MetaDescription = "Too short"
	ideal := base
	ideal.MetaDescription = strings.Repeat("x", 150)

	assert.Equal(t, Score(base)+10, Score(short))
	assert.Equal(t, Score(base)+20, Score(ideal))
}

func TestScoreTitleAndContentTiers(t *testing.T) {
	assert.Equal(t, 8, Score(Input{Title: "Hi"}))
	assert.Equal(t, 15, Score(Input{Title: strings.Repeat("t", 45)}))
	assert.Equal(t, 10, Score(Input{Content: words(150)}))
	assert.Equal(t, 20, Score(Input{Content: words(300)}))
	assert.Equal(t, 0, Score(Input{Tags: []string{"  "}}))
}

func TestEstimateReadTime(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty", "", 1},
		{"short", "<p>hello world</p>", 1},
		{"exact", words(200), 1},
		{"one over", words(201), 2},
		{"markup not counted", "<h1>" + words(400) + "</h1><img src=\"a.png\">", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateReadTime(tt.content))
		})
	}
}

func TestStripTagsSeparatesWords(t *testing.T) {
	assert.Equal(t, 2, WordCount("<p>one</p><p>two</p>"))
	assert.Equal(t, "fish & chips", strings.TrimSpace(StripTags("<b>fish &amp; chips</b>")))
}

func TestSanitizeHTML(t *testing.T) {
	out := SanitizeHTML(`<p onclick="x()">Hello <script>alert(1)</script><a href="javascript:evil()">x</a></p>`)
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "javascript")
	assert.Contains(t, out, "<p>Hello")
}
