// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the nodetree service.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	RateLimit ──► 429 when the limiter has no token
//	   │
//	   ▼
//	Metrics (records method, route, status, duration after the handler)
//	   │
//	   ▼
//	Actor ──► X-Actor-ID stored in the request context
//	   │
//	   ▼
//	Handler (privilege.ActorFromContext)
//
// Requests without X-Actor-ID run anonymously: they can read but never
// publish.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/nodetree/services/nodetree/privilege"
	"github.com/AleutianAI/nodetree/services/nodetree/telemetry"
)

// ActorHeader carries the id of the acting user.
const ActorHeader = "X-Actor-ID"

// actorKey is the gin context key of the actor.
const actorKey = "nodetree_actor"

// maxActorLength bounds the accepted header value.
const maxActorLength = 128

// GetActor returns the actor stored by Actor, or "" for anonymous requests.
func GetActor(c *gin.Context) string {
	return c.GetString(actorKey)
}

// Actor reads the actor from the X-Actor-ID header into the request context.
//
// # Description
//
// The trimmed header value is stored both in the gin context and, through
// privilege.WithActor, in the request context the service reads. Values
// longer than 128 bytes or containing control characters are rejected with
// 400 INVALID_ACTOR.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if actor == "" {
			c.Next()
			return
		}
		if !validActor(actor) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "invalid actor",
				"code":  "INVALID_ACTOR",
			})
			return
		}

		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(privilege.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func validActor(actor string) bool {
	if len(actor) > maxActorLength {
		return false
	}
	for _, r := range actor {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// RateLimit rejects requests above rps with a burst of burst. A
// non-positive rps disables limiting.
//
// # Description
//
// One token bucket is shared by all clients of the process. Rejected
// requests get 429 with a Retry-After header of at least one second.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = int(math.Ceil(rps))
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		r := limiter.Reserve()
		if !r.OK() {
			abortLimited(c, time.Second)
			return
		}
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			abortLimited(c, delay)
			return
		}
		c.Next()
	}
}

func abortLimited(c *gin.Context, wait time.Duration) {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": "rate limit exceeded",
		"code":  "RATE_LIMITED",
	})
}

// Metrics records every request on m. Unmatched routes are reported as
// "unmatched" to keep the route label bounded.
func Metrics(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		done := m.TrackActiveRequest(c.Request.Context())
		c.Next()
		done()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Context(), c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
