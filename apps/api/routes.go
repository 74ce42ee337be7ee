package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-rentals/apps/internal/engine"
	"github.com/zenGate-Global/palmyra-rentals/contracts"
	leaseshandler "github.com/zenGate-Global/palmyra-rentals/domains/leases/be/handler"
	paymentshandler "github.com/zenGate-Global/palmyra-rentals/domains/payments/be/handler"
	statisticshandler "github.com/zenGate-Global/palmyra-rentals/domains/statistics/be/handler"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/batch"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/httpapi"
	platformlogging "github.com/zenGate-Global/palmyra-rentals/platform/go/logging"
	platformmiddleware "github.com/zenGate-Global/palmyra-rentals/platform/go/middleware"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/requesttrace"
)

type routerConfig struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
}

func newRouter(eng *engine.Engine, cfg routerConfig, logger *zap.Logger) http.Handler {
	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		platformlogging.RequestLogger(logger),
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.CORS(cfg.CORSOrigins),
	)

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if eng.Pool != nil {
			if err := eng.Pool.Ping(r.Context()); err != nil {
				platformlogging.FromRequest(r, logger).Warn("readiness: database unreachable", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		if err := eng.Documents.Check(r.Context()); err != nil {
			platformlogging.FromRequest(r, logger).Warn("readiness: document store unavailable", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	apiRouter := chi.NewRouter()
	apiRouter.Use(platformmiddleware.RequestTrace)

	apiRouter.Get("/openapi/{name}", serveContract)

	leasesValidator := mustNewSpecValidator(logger, contracts.Leases)
	apiRouter.Route("/leases", func(r chi.Router) {
		r.Use(leasesValidator)
		leaseshandler.New(eng.Leases, logger).Routes(r)
	})

	paymentsValidator := mustNewSpecValidator(logger, contracts.Payments)
	apiRouter.Route("/payments", func(r chi.Router) {
		r.Use(paymentsValidator)
		paymentshandler.New(eng.Payments, logger).Routes(r)
	})

	statisticsValidator := mustNewSpecValidator(logger, contracts.Statistics)
	apiRouter.Route("/statistics", func(r chi.Router) {
		r.Use(statisticsValidator)
		statisticshandler.New(eng.Statistics, logger).Routes(r)
	})

	rootRouter.Mount("/api/v1", apiRouter)
	return rootRouter
}

// mustNewSpecValidator loads an embedded contract and builds the request
// validator for its domain group.
func mustNewSpecValidator(logger *zap.Logger, name string) func(http.Handler) http.Handler {
	doc, err := contracts.Load(context.Background(), name)
	if err != nil {
		logger.Fatal("load api contract", zap.String("contract", name), zap.Error(err))
	}
	return platformmiddleware.SpecValidator(doc)
}

func serveContract(w http.ResponseWriter, r *http.Request) {
	raw, err := contracts.Raw(chi.URLParam(r, "name"))
	if err != nil {
		httpapi.WriteProblem(w, httpapi.ProblemDetails{
			Type:   httpapi.ProblemTypeNotFound,
			Title:  "Contract not found",
			Status: http.StatusNotFound,
		})
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(raw)
}

// runSweeps marks overdue obligations late and expires ended contracts on
// every tick until ctx is cancelled.
func runSweeps(ctx context.Context, eng *engine.Engine, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, eng, logger)
		}
	}
}

func sweep(ctx context.Context, eng *engine.Engine, logger *zap.Logger) {
	ctx = requesttrace.IntoContext(ctx, requesttrace.System("late-sweep", uuid.NewString()))
	now := time.Now().UTC()

	late, err := eng.Payments.EvaluateLateStatuses(ctx, now)
	logReport(logger, "late status sweep", late, err)

	expired, err := eng.Leases.ExpireDue(ctx, now)
	logReport(logger, "contract expiry sweep", expired, err)
}

func logReport(logger *zap.Logger, msg string, r batch.Report, err error) {
	if err != nil {
		logger.Error(msg+" failed", zap.Error(err))
		return
	}
	logger.Info(msg,
		zap.Int("scanned", r.Scanned),
		zap.Int("updated", r.Updated),
		zap.Int("skipped", r.Skipped),
		zap.Int("failed", r.Failed),
	)
}
