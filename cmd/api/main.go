package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"judge-evals/internal/app"
	"judge-evals/internal/apperr"
	"judge-evals/internal/evaluation"
	"judge-evals/internal/httputil"
)

const shutdownTimeout = 10 * time.Second

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			deps.Log.Warn("failed to release dependencies", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           routes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		deps.Log.Info("api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("api stopped", "err", err)
	}
}

func routes(deps app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log, deps.Metrics)

	r.Route("/api/v1/evaluations", func(r chi.Router) {
		r.Post("/", createHandler(deps))
		r.Get("/", contestantHandler(deps))
		r.Get("/{id}", getHandler(deps))
		r.Put("/{id}", updateHandler(deps))
		r.Delete("/{id}", deleteHandler(deps))
	})
	r.Get("/health", httputil.HealthHandler())
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	return r
}

func createHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in evaluation.CreateInput
		if err := httputil.DecodeJSON(w, r, &in); err != nil {
			httputil.FailErr(deps.Log, w, err)
			return
		}
		ev, err := deps.Service.Create(r.Context(), in)
		if err != nil {
			httputil.FailErr(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, ev)
	}
}

func contestantHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contestantID := r.URL.Query().Get("contestant_id")
		summary, err := deps.Service.GetEvaluationsForContestant(r.Context(), contestantID, deps.Summarizer)
		if err != nil {
			httputil.FailErr(deps.Log.With("contestant_id", contestantID), w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, summary)
	}
}

func getHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := evaluationID(r)
		if err != nil {
			httputil.FailErr(deps.Log, w, err)
			return
		}
		ev, err := deps.Service.Get(r.Context(), id)
		if err != nil {
			httputil.FailErr(deps.Log.With("evaluation_id", id), w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ev)
	}
}

func updateHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := evaluationID(r)
		if err != nil {
			httputil.FailErr(deps.Log, w, err)
			return
		}
		var in evaluation.UpdateInput
		if err := httputil.DecodeJSON(w, r, &in); err != nil {
			httputil.FailErr(deps.Log, w, err)
			return
		}
		ev, err := deps.Service.Update(r.Context(), id, in)
		if err != nil {
			httputil.FailErr(deps.Log.With("evaluation_id", id), w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ev)
	}
}

func deleteHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := evaluationID(r)
		if err != nil {
			httputil.FailErr(deps.Log, w, err)
			return
		}
		if err := deps.Service.Delete(r.Context(), id); err != nil {
			httputil.FailErr(deps.Log.With("evaluation_id", id), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func evaluationID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.Invalid("invalid evaluation id", err)
	}
	return id, nil
}
