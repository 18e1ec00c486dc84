// Package httpd implements the httpd command, a small operational API
// over pipeline runs and the staging buffer.
package httpd

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/scottaicode/seoul-sister/cmd/common"
	"github.com/scottaicode/seoul-sister/internal/database"
	"github.com/scottaicode/seoul-sister/internal/logger"
)

const (
	defaultRunsLimit    = 50
	defaultHistoryLimit = 100
)

// Command returns the httpd command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Serve the operational HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.Build()
			if err != nil {
				return err
			}
			defer deps.Close()

			router := newRouter(deps)

			deps.Logger.Info("http server listening",
				logger.String("address", deps.Config.Server.Address),
			)
			return router.Run(deps.Config.Server.Address)
		},
	}
}

// newRouter builds the gin engine with all routes registered.
func newRouter(deps *common.Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		if err := deps.DB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.GET("/runs", listRuns(deps))
	api.GET("/runs/:id", getRun(deps))
	api.GET("/staging/stats", stagingStats(deps))
	api.GET("/products/:id/prices", priceHistory(deps))

	return router
}

func listRuns(deps *common.Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRunsLimit)))
		if err != nil || limit <= 0 {
			limit = defaultRunsLimit
		}

		runs, err := deps.Runs.List(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

func getRun(deps *common.Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := deps.Runs.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func stagingStats(deps *common.Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := deps.Staging.Stats(c.Request.Context(), c.Query("source"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func priceHistory(deps *common.Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
			return
		}

		entries, err := deps.Prices.History(c.Request.Context(), productID, defaultHistoryLimit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"history": entries})
	}
}
