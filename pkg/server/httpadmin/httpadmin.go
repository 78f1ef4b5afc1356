/*
Copyright 2024 The Aibrix Team.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package httpadmin exposes the SharedState façade's control-plane and
// health surface over HTTP, via gin. This router only carries
// load/unload/metadata/health traffic; it exposes no inference route.
package httpadmin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/amdinfer/inferd/pkg/server"
	"github.com/amdinfer/inferd/pkg/types"
)

// Router builds a gin.Engine that dispatches admin routes onto state.
func Router(state *server.SharedState, logger zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	r.GET("/v2/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"live": state.ServerLive()})
	})
	r.GET("/v2/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ready": state.ServerReady()})
	})
	r.GET("/v2", func(c *gin.Context) {
		c.JSON(http.StatusOK, state.ServerMetadata())
	})

	r.GET("/v2/models", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"models": state.ModelList()})
	})

	r.GET("/v2/models/:name/ready", func(c *gin.Context) {
		ready, err := state.ModelReady(c.Param("name"))
		if writeError(c, err) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"ready": ready})
	})

	r.GET("/v2/models/:name", func(c *gin.Context) {
		meta, err := state.ModelMetadata(c.Param("name"))
		if writeError(c, err) {
			return
		}
		c.JSON(http.StatusOK, meta)
	})

	// gin requires one wildcard name per path segment, so the load route
	// shares :name with unload; here the segment carries the worker kind.
	r.POST("/v2/repository/models/:name/load", func(c *gin.Context) {
		var body loadRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		name, err := state.WorkerLoad(c.Param("name"), body.toParameterMap())
		if writeError(c, err) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"name": name})
	})

	r.POST("/v2/repository/models/:name/unload", func(c *gin.Context) {
		err := state.ModelUnload(c.Param("name"))
		if writeError(c, err) {
			return
		}
		c.Status(http.StatusOK)
	})

	return r
}

// loadRequest is the JSON body accepted by the load route: a flat map of
// parameter names to scalar values, mirroring the worker-load parameter
// set's {bool,int,double,string} union.
type loadRequest struct {
	Parameters map[string]interface{} `json:"parameters"`
}

func (b loadRequest) toParameterMap() types.ParameterMap {
	out := make(types.ParameterMap, len(b.Parameters))
	for k, v := range b.Parameters {
		switch val := v.(type) {
		case bool:
			out[k] = types.BoolParameter(val)
		case float64:
			out[k] = types.DoubleParameter(val)
		case string:
			out[k] = types.StringParameter(val)
		}
	}
	return out
}

func writeError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
	return true
}

func statusFor(err error) int {
	switch types.KindOf(err) {
	case types.ErrInvalidArgument:
		return http.StatusBadRequest
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrAlreadyExists:
		return http.StatusConflict
	case types.ErrResourceExhausted:
		return http.StatusTooManyRequests
	case types.ErrFailedPrecondition:
		return http.StatusPreconditionFailed
	case types.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("admin request")
	}
}
