package main

import (
	"log/slog"
	"net/http"
	"time"

	"cms-backend/internal/auth"
	"cms-backend/internal/categories"
	"cms-backend/internal/config"
	"cms-backend/internal/dashboard"
	"cms-backend/internal/faqs"
	"cms-backend/internal/inquiries"
	"cms-backend/internal/media"
	"cms-backend/internal/metrics"
	"cms-backend/internal/middleware"
	"cms-backend/internal/ratelimit"
	"cms-backend/internal/resources"
	"cms-backend/internal/staff"
	"cms-backend/internal/transport"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routerDeps struct {
	cfg     *config.Config
	log     *slog.Logger
	tokens  *auth.Manager
	limiter *ratelimit.Limiter

	inquiries  *inquiries.Handler
	faqs       *faqs.Handler
	categories *categories.Handler
	resources  *resources.Handler
	staff      *staff.Handler
	dashboard  *dashboard.Handler
	media      *media.Handler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.log))
	r.Use(metrics.Middleware)
	r.Use(middleware.CORS(d.cfg.FrontendOrigins))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	limit := func(action ratelimit.Action) func(http.Handler) http.Handler {
		return middleware.RateLimit(d.limiter, action, d.log)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		transport.WriteData(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		// Staff sessions are optional on public routes; a signed-in viewer is
		// keyed by staff id instead of IP for view counting.
		api.Use(middleware.OptionalStaff(d.tokens))

		api.With(limit(ratelimit.ActionContact)).Post("/contact", d.inquiries.Submit)

		api.Route("/faqs", func(fr chi.Router) {
			fr.Group(func(read chi.Router) {
				read.Use(limit(ratelimit.ActionFaqRead))
				read.Get("/", d.faqs.PublicList)
				read.Get("/popular", d.faqs.Popular)
				read.Get("/grouped", d.faqs.Grouped)
				read.Get("/categories", d.faqs.PublicCategories)
				read.Get("/{slug}", d.faqs.PublicDetail)
			})
			fr.With(limit(ratelimit.ActionFaqVote)).Post("/{id}/vote", d.faqs.Vote)
		})

		api.Route("/resources", func(rr chi.Router) {
			rr.Group(func(read chi.Router) {
				read.Use(limit(ratelimit.ActionResourceRead))
				read.Get("/", d.resources.PublicList)
				read.Get("/featured", d.resources.Featured)
				read.Get("/{slug}", d.resources.PublicDetail)
				read.Get("/{slug}/related", d.resources.Related)
			})
			rr.Group(func(search chi.Router) {
				search.Use(limit(ratelimit.ActionResourceSearch))
				search.Get("/search", d.resources.Search)
				search.Get("/tags", d.resources.Tags)
			})
			rr.Group(func(engage chi.Router) {
				engage.Use(limit(ratelimit.ActionShare))
				engage.Post("/{id}/share", d.resources.Share)
				engage.Post("/{id}/like", d.resources.Like)
			})
		})

		api.Route("/resource-categories", func(cr chi.Router) {
			cr.Use(limit(ratelimit.ActionResourceSearch))
			cr.Get("/", d.categories.PublicTree)
			cr.Get("/flat", d.categories.PublicFlat)
			cr.Get("/{slug}", d.categories.PublicDetail)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Post("/login", d.staff.Login)
			admin.Post("/refresh", d.staff.Refresh)
			admin.Post("/logout", d.staff.Logout)

			// chi: middlewares must be attached before defining routes, so the
			// protected routes live in their own group.
			admin.Group(func(p chi.Router) {
				p.Use(middleware.AdminAuth(d.cfg.AdminAPIKey, d.tokens))

				p.Get("/me", d.staff.Me)
				p.Get("/dashboard", d.dashboard.Summary)

				p.Route("/contacts", func(c chi.Router) {
					c.Get("/", d.inquiries.AdminList)
					c.Post("/bulk", d.inquiries.AdminBulk)
					c.Get("/{id}", d.inquiries.AdminGet)
					c.Patch("/{id}", d.inquiries.AdminUpdate)
					c.Delete("/{id}", d.inquiries.AdminDelete)
				})

				p.Route("/faq-categories", func(c chi.Router) {
					c.Get("/", d.faqs.AdminCategoryList)
					c.Post("/", d.faqs.AdminCategoryCreate)
					c.Post("/reorder", d.faqs.AdminCategoryReorder)
					c.Post("/bulk", d.faqs.AdminCategoryBulk)
					c.Put("/{id}", d.faqs.AdminCategoryUpdate)
					c.Delete("/{id}", d.faqs.AdminCategoryDelete)
				})

				p.Route("/faqs", func(c chi.Router) {
					c.Get("/", d.faqs.AdminList)
					c.Post("/", d.faqs.AdminCreate)
					c.Post("/bulk", d.faqs.AdminBulk)
					c.Get("/{id}", d.faqs.AdminGet)
					c.Put("/{id}", d.faqs.AdminUpdate)
					c.Delete("/{id}", d.faqs.AdminDelete)
				})

				p.Route("/resource-categories", func(c chi.Router) {
					c.Get("/", d.categories.AdminList)
					c.Get("/hierarchy", d.categories.AdminHierarchy)
					c.Post("/", d.categories.AdminCreate)
					c.Post("/reorder", d.categories.AdminReorder)
					c.Post("/bulk", d.categories.AdminBulk)
					c.Get("/{id}", d.categories.AdminGet)
					c.Put("/{id}", d.categories.AdminUpdate)
					c.Delete("/{id}", d.categories.AdminDelete)
				})

				p.Route("/resources", func(c chi.Router) {
					c.Get("/", d.resources.AdminList)
					c.Post("/", d.resources.AdminCreate)
					c.Post("/bulk", d.resources.AdminBulk)
					c.Get("/{id}", d.resources.AdminGet)
					c.Put("/{id}", d.resources.AdminUpdate)
					c.Delete("/{id}", d.resources.AdminDelete)
				})

				p.Post("/media/images", d.media.UploadImage)
			})
		})
	})

	return r
}
