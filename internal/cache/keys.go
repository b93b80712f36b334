package cache

import (
	"context"
	"strings"
)

const namespace = "cms"

// Entity names used in cache keys.
const (
	EntityFaqs               = "faqs"
	EntityFaqCategories      = "faq-categories"
	EntityResources          = "resources"
	EntityResourceCategories = "resource-categories"
)

func Key(parts ...string) string {
	return namespace + ":" + strings.Join(parts, ":")
}

func ListPrefix(entity string) string {
	return Key(entity, "list") + ":"
}

// ListKey combines an endpoint name with a canonical filter signature.
func ListKey(entity, endpoint, signature string) string {
	return ListPrefix(entity) + endpoint + ":" + signature
}

func DetailKey(entity, slug string) string {
	return Key(entity, "detail", slug)
}

func DetailPrefix(entity string) string {
	return Key(entity, "detail") + ":"
}

func ViewKey(entity, id, viewer string) string {
	return Key("views", entity, id, viewer)
}

func RateKey(action, requester string) string {
	return Key("rl", action, requester)
}

// Invalidate drops the detail entries for slugs and every listing of entity.
func Invalidate(ctx context.Context, c Cache, entity string, slugs ...string) error {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		if slug != "" {
			keys = append(keys, DetailKey(entity, slug))
		}
	}
	if len(keys) > 0 {
		if err := c.Delete(ctx, keys...); err != nil {
			return err
		}
	}
	return c.DeletePrefix(ctx, ListPrefix(entity))
}

// InvalidateAll drops every detail entry and every listing of entity. It is
// for writes whose effect shows up in details other than the one written,
// such as counts or names embedded from a related entity.
func InvalidateAll(ctx context.Context, c Cache, entity string) error {
	if c == nil {
		return nil
	}
	if err := c.DeletePrefix(ctx, DetailPrefix(entity)); err != nil {
		return err
	}
	return c.DeletePrefix(ctx, ListPrefix(entity))
}
