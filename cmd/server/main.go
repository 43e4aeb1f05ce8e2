// Copyright 2025 Clipforge, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/clipforge/clip-export/internal/core/history"
	"github.com/clipforge/clip-export/internal/core/model"
	"github.com/clipforge/clip-export/internal/core/services"
	"github.com/clipforge/clip-export/internal/telemetry"
)

func main() {
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := GetConfig()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	InitState(ctx)
	slog.Info("Initialized State")

	r := gin.Default()
	r.Use(otelgin.Middleware(config.Application.Name))
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		CatalogRouter(apiV1)
		ExportRouter(apiV1)
		ClipRouter(apiV1)
		HistoryRouter(apiV1)
	}

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen", "error", err)
		}
	}()
	slog.Info("Server Ready on port 8080")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("Telemetry Shutdown Failed", "error", err)
	}
	if state.history != nil {
		if err := state.history.Close(); err != nil {
			slog.Error("History Close Failed", "error", err)
		}
	}
	state.cloud.Close()

	log.Println("Server exiting")
}

// CatalogRouter exposes the export format and cropping strategy catalog the
// batch dialog renders its pickers from.
func CatalogRouter(r *gin.RouterGroup) {
	r.GET("/formats", func(c *gin.Context) {
		c.JSON(http.StatusOK, state.exportService.Catalog().Formats())
	})
	r.GET("/strategies", func(c *gin.Context) {
		c.JSON(http.StatusOK, state.exportService.Catalog().Strategies())
	})
}

// ExportRouter sets up the batch export lifecycle routes: submit, poll,
// retry.
func ExportRouter(r *gin.RouterGroup) {
	exports := r.Group("/exports")
	{
		exports.POST("", func(c *gin.Context) {
			var req model.BatchExportRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			view, err := state.exportService.StartBatch(c.Request.Context(), &req)
			if err != nil {
				c.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, view)
		})

		exports.GET("/:id", func(c *gin.Context) {
			view, err := state.exportService.GetBatch(c.Param("id"))
			if err != nil {
				c.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, view)
		})

		exports.POST("/:id/items/:item_id/retry", func(c *gin.Context) {
			view, err := state.exportService.RetryItem(c.Request.Context(), c.Param("id"), c.Param("item_id"))
			if err != nil {
				c.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, view)
		})
	}
}

// ClipRouter sets up the synchronous single-clip export route.
func ClipRouter(r *gin.RouterGroup) {
	clips := r.Group("/clips")
	{
		clips.POST("/:id/export", func(c *gin.Context) {
			clipID, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid clip id"})
				return
			}
			var req model.SingleExportRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			results, err := state.exportService.ExportClip(c.Request.Context(), clipID, &req)
			if err != nil {
				c.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"results": results})
		})
	}
}

// HistoryRouter exposes the persisted export outcomes.
func HistoryRouter(r *gin.RouterGroup) {
	hist := r.Group("/history")
	{
		hist.GET("", func(c *gin.Context) {
			if state.history == nil {
				c.JSON(http.StatusOK, []any{})
				return
			}
			limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
			if err != nil {
				limit = 50
			}
			records, err := state.history.List(limit)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, records)
		})

		hist.GET("/:item_id", func(c *gin.Context) {
			if state.history == nil {
				c.Status(http.StatusNotFound)
				return
			}
			record, err := state.history.Get(c.Param("item_id"))
			if errors.Is(err, history.ErrNotFound) {
				c.Status(http.StatusNotFound)
				return
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, record)
		})
	}
}

// statusForError maps the service's typed errors onto HTTP status codes.
func statusForError(err error) int {
	var validationErr *model.ValidationError
	var encoderErr *model.EncoderUnavailableError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &encoderErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrBatchNotFound), errors.Is(err, services.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrRetryConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
