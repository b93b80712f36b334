// Package seo scores resource metadata completeness and estimates reading time.
package seo

import (
	"html"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const wordsPerMinute = 200

var (
	stripOnce   sync.Once
	stripPolicy *bluemonday.Policy

	ugcOnce   sync.Once
	ugcPolicy *bluemonday.Policy
)

func strict() *bluemonday.Policy {
	stripOnce.Do(func() {
		stripPolicy = bluemonday.StrictPolicy()
		stripPolicy.AddSpaceWhenStrippingTag(true)
	})
	return stripPolicy
}

func ugc() *bluemonday.Policy {
	ugcOnce.Do(func() {
		ugcPolicy = bluemonday.UGCPolicy()
	})
	return ugcPolicy
}

// StripTags returns the visible text of an HTML fragment.
func StripTags(content string) string {
	return html.UnescapeString(strict().Sanitize(content))
}

// SanitizeHTML keeps formatting markup and drops scripts, handlers and unsafe URLs.
func SanitizeHTML(content string) string {
	return ugc().Sanitize(content)
}

func WordCount(content string) int {
	return len(strings.Fields(StripTags(content)))
}

// EstimateReadTime is the reading time in whole minutes, never less than one.
func EstimateReadTime(content string) int {
	words := WordCount(content)
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

type Input struct {
	Title           string
	Excerpt         string
	Content         string
	MetaTitle       string
	MetaDescription string
	MetaKeywords    string
	Tags            []string
	FeaturedImage   string
}

// Rubric weights. Each criterion looks at a single field, so filling in a
// missing field never lowers the score. The maximum is 100.
const (
	pointsTitleIdeal      = 15
	pointsTitleAny        = 8
	pointsExcerpt         = 10
	pointsMetaTitle       = 10
	pointsMetaDescription = 10
	pointsMetaDescIdeal   = 10
	pointsContentLong     = 20
	pointsContentMedium   = 10
	pointsTags            = 10
	pointsFeaturedImage   = 10
	pointsMetaKeywords    = 5
)

const (
	titleMin, titleMax       = 30, 60
	metaDescMin, metaDescMax = 120, 160
	longContentWords         = 300
	mediumContentWords       = 100
)

func Score(in Input) int {
	score := 0

	title := strings.TrimSpace(in.Title)
	switch n := utf8.RuneCountInString(title); {
	case n >= titleMin && n <= titleMax:
		score += pointsTitleIdeal
	case n > 0:
		score += pointsTitleAny
	}

	if strings.TrimSpace(in.Excerpt) != "" {
		score += pointsExcerpt
	}
	if strings.TrimSpace(in.MetaTitle) != "" {
		score += pointsMetaTitle
	}

	desc := strings.TrimSpace(in.MetaDescription)
	if desc != "" {
		score += pointsMetaDescription
		if n := utf8.RuneCountInString(desc); n >= metaDescMin && n <= metaDescMax {
			score += pointsMetaDescIdeal
		}
	}

	switch words := WordCount(in.Content); {
	case words >= longContentWords:
		score += pointsContentLong
	case words >= mediumContentWords:
		score += pointsContentMedium
	}

	for _, tag := range in.Tags {
		if strings.TrimSpace(tag) != "" {
			score += pointsTags
			break
		}
	}
	if strings.TrimSpace(in.FeaturedImage) != "" {
		score += pointsFeaturedImage
	}
	if strings.TrimSpace(in.MetaKeywords) != "" {
		score += pointsMetaKeywords
	}

	if score > 100 {
		score = 100
	}
	return score
}
