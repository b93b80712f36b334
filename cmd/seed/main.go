package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cms-backend/internal/apperr"
	"cms-backend/internal/cache"
	"cms-backend/internal/categories"
	"cms-backend/internal/config"
	"cms-backend/internal/db"
	"cms-backend/internal/faqs"
	"cms-backend/internal/resources"
	"cms-backend/internal/staff"
	"cms-backend/internal/utils"
	"cms-backend/internal/validation"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "cms-seed",
		Short:        "Seed and maintain the CMS database",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg        *config.Config
	log        *slog.Logger
	val        *validation.Validator
	faqs       *faqs.Service
	categories *categories.Service
	resources  *resources.Service
	staff      *staff.Service
	close      func()
}

func connect(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("mongo: %w", err)
	}
	if err := db.EnsureIndexes(ctx, cols); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("indexes: %w", err)
	}

	var runner db.Runner = db.DirectRunner{}
	if cfg.MongoTransactions {
		runner = db.NewTxRunner(client)
	}

	// Writes evict the API's cached listings when both share Redis.
	var shared cache.Cache
	var redisStore *cache.RedisStore
	switch {
	case cfg.RedisURL != "":
		if redisStore, err = cache.NewRedisFromURL(cfg.RedisURL); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("redis: %w", err)
		}
	case cfg.RedisAddr != "":
		redisStore = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
	if redisStore != nil {
		shared = redisStore
	}

	categoryService := categories.NewService(categories.NewRepository(cols.ResourceCategories), runner, shared, nil, cfg.Timezone, log)
	return &app{
		cfg:        cfg,
		log:        log,
		val:        validation.New(),
		faqs:       faqs.NewService(faqs.NewRepository(cols.Faqs), faqs.NewCategoryRepository(cols.FaqCategories), runner, shared, nil, cfg.Timezone, log),
		categories: categoryService,
		resources: resources.NewService(resources.Deps{
			Repo:       resources.NewRepository(cols.Resources),
			Categories: categoryService,
			Runner:     runner,
			Cache:      shared,
			Location:   cfg.Timezone,
			Log:        log,
		}),
		staff: staff.NewService(staff.NewRepository(cols.StaffUsers), nil, cfg.Timezone, log),
		close: func() {
			if redisStore != nil {
				_ = redisStore.Close()
			}
			_ = client.Disconnect(context.Background())
		},
	}, nil
}

func seedCmd() *cobra.Command {
	var (
		file      string
		staffOnly bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create staff users and load content fixtures (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFixtures(file)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			a, err := connect(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.seedStaff(ctx, f); err != nil {
				return err
			}
			if staffOnly {
				return nil
			}
			if err := a.seedFaqs(ctx, f.FaqCategories); err != nil {
				return err
			}
			for _, c := range f.ResourceCategories {
				if err := a.seedResourceCategory(ctx, c, nil); err != nil {
					return err
				}
			}
			if err := a.seedResources(ctx, f.Resources); err != nil {
				return err
			}
			a.log.Info("seed completed")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "cmd/seed/fixtures.yaml", "fixture file")
	cmd.Flags().BoolVar(&staffOnly, "staff-only", false, "only create or refresh staff users")
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recount resource_count for every resource category",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			a, err := connect(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			counts, err := a.resources.CountByCategory(ctx)
			if err != nil {
				return err
			}
			changed, err := a.categories.Reconcile(ctx, counts)
			if err != nil {
				return err
			}
			a.log.Info("reconcile completed", slog.Int("changed", changed))
			return nil
		},
	}
}

func (a *app) seedStaff(ctx context.Context, f fixtures) error {
	accounts, skipped := f.accounts(os.Getenv)
	for _, name := range skipped {
		a.log.Warn("seed staff: missing password, skipping", slog.String("username", name))
	}
	for _, acc := range accounts {
		if err := a.val.Struct(acc); err != nil {
			return fmt.Errorf("staff %s: %w", acc.Username, err)
		}
		created, err := a.staff.Ensure(ctx, acc)
		if err != nil {
			return fmt.Errorf("staff %s: %w", acc.Username, err)
		}
		a.log.Info("seed staff: ok", slog.String("username", acc.Username), slog.Bool("created", created))
	}
	return nil
}

func (a *app) seedFaqs(ctx context.Context, cats []faqCategoryFixture) error {
	for i, c := range cats {
		order := i
		cat, err := a.faqs.CreateCategory(ctx, faqs.CategoryRequest{
			Name:        c.Name,
			Description: c.Description,
			Icon:        c.Icon,
			Color:       c.Color,
			SortOrder:   &order,
		}, "")
		if apperr.IsConflict(err) {
			cat, err = a.faqs.ResolveCategory(ctx, utils.Slugify(c.Name))
		}
		if err != nil {
			return fmt.Errorf("faq category %q: %w", c.Name, err)
		}

		for _, q := range c.Faqs {
			slug := q.Slug
			if slug == "" {
				slug = utils.Slugify(q.Question)
			}
			featured := q.Featured
			req := faqs.FaqRequest{
				Question:   q.Question,
				Answer:     q.Answer,
				CategoryID: cat.ID,
				Slug:       slug,
				IsFeatured: &featured,
				Tags:       q.Tags,
			}
			if err := a.val.Struct(req); err != nil {
				return fmt.Errorf("faq %q: %w", q.Question, err)
			}
			if _, err := a.faqs.Create(ctx, req, ""); err != nil {
				if apperr.IsConflict(err) {
					continue
				}
				return fmt.Errorf("faq %q: %w", q.Question, err)
			}
		}
		a.log.Info("seed faq category: ok", slog.String("name", c.Name), slog.Int("faqs", len(c.Faqs)))
	}
	return nil
}

func (a *app) seedResourceCategory(ctx context.Context, c resourceCategoryFixture, parentID *string) error {
	slug := c.Slug
	if slug == "" {
		slug = utils.Slugify(c.Name)
	}
	featured := c.Featured
	req := categories.UpsertRequest{
		Name:        c.Name,
		Slug:        slug,
		Description: c.Description,
		Color:       c.Color,
		Icon:        c.Icon,
		ParentID:    parentID,
		IsFeatured:  &featured,
	}
	if err := a.val.Struct(req); err != nil {
		return fmt.Errorf("resource category %q: %w", c.Name, err)
	}
	cat, err := a.categories.Create(ctx, req)
	if apperr.IsConflict(err) {
		cat, err = a.categories.Resolve(ctx, slug)
	}
	if err != nil {
		return fmt.Errorf("resource category %q: %w", c.Name, err)
	}
	for _, child := range c.Children {
		id := cat.ID
		if err := a.seedResourceCategory(ctx, child, &id); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) seedResources(ctx context.Context, items []resourceFixture) error {
	for _, item := range items {
		cat, err := a.categories.Resolve(ctx, item.Category)
		if err != nil {
			return fmt.Errorf("resource %q: category %q: %w", item.Title, item.Category, err)
		}
		slug := item.Slug
		if slug == "" {
			slug = utils.Slugify(item.Title)
		}
		featured := item.Featured
		req := resources.UpsertRequest{
			Title:           item.Title,
			Slug:            slug,
			Excerpt:         item.Excerpt,
			Content:         item.Content,
			CategoryID:      cat.ID,
			Tags:            item.Tags,
			Status:          item.Status,
			IsFeatured:      &featured,
			MetaTitle:       item.MetaTitle,
			MetaDescription: item.MetaDescription,
		}
		if err := a.val.Struct(req); err != nil {
			return fmt.Errorf("resource %q: %w", item.Title, err)
		}
		if _, err := a.resources.Create(ctx, req, ""); err != nil {
			if apperr.IsConflict(err) {
				continue
			}
			return fmt.Errorf("resource %q: %w", item.Title, err)
		}
		a.log.Info("seed resource: ok", slog.String("slug", slug))
	}
	return nil
}
