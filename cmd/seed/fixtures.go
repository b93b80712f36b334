package main

import (
	"fmt"
	"os"
	"strings"

	"cms-backend/internal/staff"
	"gopkg.in/yaml.v3"
)

type fixtures struct {
	Staff              []staffFixture            `yaml:"staff"`
	FaqCategories      []faqCategoryFixture      `yaml:"faq_categories"`
	ResourceCategories []resourceCategoryFixture `yaml:"resource_categories"`
	Resources          []resourceFixture         `yaml:"resources"`
}

// staffFixture takes its password from PasswordEnv when set, so real
// credentials never live in the fixture file.
type staffFixture struct {
	staff.Account `yaml:",inline"`
	PasswordEnv   string `yaml:"password_env"`
}

type faqCategoryFixture struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Icon        string       `yaml:"icon"`
	Color       string       `yaml:"color"`
	Faqs        []faqFixture `yaml:"faqs"`
}

type faqFixture struct {
	Question string   `yaml:"question"`
	Answer   string   `yaml:"answer"`
	Slug     string   `yaml:"slug"`
	Featured bool     `yaml:"featured"`
	Tags     []string `yaml:"tags"`
}

type resourceCategoryFixture struct {
	Name        string                    `yaml:"name"`
	Slug        string                    `yaml:"slug"`
	Description string                    `yaml:"description"`
	Color       string                    `yaml:"color"`
	Icon        string                    `yaml:"icon"`
	Featured    bool                      `yaml:"featured"`
	Children    []resourceCategoryFixture `yaml:"children"`
}

type resourceFixture struct {
	Title           string   `yaml:"title"`
	Slug            string   `yaml:"slug"`
	Category        string   `yaml:"category"`
	Excerpt         string   `yaml:"excerpt"`
	Content         string   `yaml:"content"`
	Status          string   `yaml:"status"`
	Featured        bool     `yaml:"featured"`
	Tags            []string `yaml:"tags"`
	MetaTitle       string   `yaml:"meta_title"`
	MetaDescription string   `yaml:"meta_description"`
}

func loadFixtures(path string) (fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fixtures{}, err
	}
	var f fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fixtures{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// accounts resolves passwords from the environment and drops entries that
// end up without one.
func (f fixtures) accounts(getenv func(string) string) ([]staff.Account, []string) {
	var (
		out     []staff.Account
		skipped []string
	)
	for _, s := range f.Staff {
		a := s.Account
		if s.PasswordEnv != "" {
			a.Password = getenv(s.PasswordEnv)
		}
		if strings.TrimSpace(a.Username) == "" || a.Password == "" {
			skipped = append(skipped, a.Username)
			continue
		}
		out = append(out, a)
	}
	return out, skipped
}
