// Package handler is the thin HTTP surface over the core: it builds the
// request context, calls the resolver or the link service, and maps typed
// outcomes and sentinel errors to HTTP responses.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jack/golang-shortlink-service/internal/codegen"
	"github.com/jack/golang-shortlink-service/internal/model"
	"github.com/jack/golang-shortlink-service/internal/repository"
	"github.com/jack/golang-shortlink-service/internal/resolver"
	"github.com/jack/golang-shortlink-service/internal/service"
)

// ownerHeader carries the authenticated user id set by the upstream auth
// layer. Absent for anonymous requests.
const ownerHeader = "X-User-ID"

type HealthChecker interface {
	Health(ctx context.Context) error
}

type Handler struct {
	links    *service.LinkService
	resolver *resolver.Resolver
	postgres HealthChecker
	redis    HealthChecker
}

func NewHandler(links *service.LinkService, res *resolver.Resolver, postgres, redis HealthChecker) *Handler {
	return &Handler{links: links, resolver: res, postgres: postgres, redis: redis}
}

func (h *Handler) CreateLink(c *gin.Context) {
	var req model.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.links.CreateLink(c.Request.Context(), &req, ownerID(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL),
			errors.Is(err, service.ErrInvalidExpiry),
			errors.Is(err, service.ErrValidation),
			errors.Is(err, codegen.ErrInvalidAlias):
			badRequest(c, err.Error())
		case errors.Is(err, codegen.ErrAliasTaken),
			errors.Is(err, repository.ErrAliasTaken):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "alias_taken",
				"message": "The requested alias is already in use",
			})
		case errors.Is(err, codegen.ErrGenExhausted):
			log.Error().Err(err).Msg("short code generation exhausted")
			internalError(c, "Could not allocate a short code")
		default:
			log.Error().Err(err).Str("ip", c.ClientIP()).Msg("create link failed")
			internalError(c, "Failed to create short link")
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) UpdateLink(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	owner := ownerID(c)
	if owner == nil {
		unauthorized(c)
		return
	}

	var patch model.LinkPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	updated, err := h.links.UpdateLink(c.Request.Context(), id, *owner, &patch)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation),
			errors.Is(err, service.ErrInvalidExpiry),
			errors.Is(err, service.ErrEmptyPatch):
			badRequest(c, err.Error())
		case errors.Is(err, repository.ErrLinkNotFound):
			notFound(c)
		default:
			log.Error().Err(err).Int64("id", id).Msg("update link failed")
			internalError(c, "Failed to update link")
		}
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteLink(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	owner := ownerID(c)
	if owner == nil {
		unauthorized(c)
		return
	}

	if err := h.links.DeleteLink(c.Request.Context(), id, *owner); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			notFound(c)
			return
		}
		log.Error().Err(err).Int64("id", id).Msg("delete link failed")
		internalError(c, "Failed to delete link")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) GetStats(c *gin.Context) {
	code := c.Param("code")

	stats, err := h.links.GetStats(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			notFound(c)
			return
		}
		log.Error().Err(err).Str("code", code).Msg("get stats failed")
		internalError(c, "Failed to retrieve stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Redirect is the hot path: it maps the resolver's outcome to an HTTP
// response. 302 rather than 301 so user agents keep coming back and clicks
// keep being observed.
func (h *Handler) Redirect(c *gin.Context) {
	code := c.Param("code")

	rc := model.RequestContext{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
		ClientKey: c.ClientIP(),
		Password:  c.Query("password"),
		Preview:   c.Query("preview") == "1",
	}

	res, err := h.resolver.Resolve(c.Request.Context(), code, rc)
	if err != nil {
		// Store failure, not a missing link. Reporting 404 here would mask
		// an outage as "link doesn't exist".
		log.Error().Err(err).Str("code", code).Msg("resolution failed")
		internalError(c, "Failed to resolve short link")
		return
	}

	switch res.Status {
	case resolver.StatusRedirect:
		c.Redirect(http.StatusFound, res.Link.OriginalURL)
	case resolver.StatusNotFound:
		notFound(c)
	case resolver.StatusGone:
		c.JSON(http.StatusGone, gin.H{
			"error":   "gone",
			"message": "This short link has expired or been deactivated",
		})
	case resolver.StatusPasswordRequired:
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "password_required",
			"message": "This short link requires a password",
		})
	case resolver.StatusRateLimited:
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "rate_limited",
			"message": "Too many requests for this link. Please try again later.",
		})
	case resolver.StatusPreview:
		c.JSON(http.StatusOK, gin.H{
			"short_code":   res.Link.ShortCode,
			"original_url": res.Link.OriginalURL,
			"title":        res.Link.Title,
			"description":  res.Link.Description,
			"created_at":   res.Link.CreatedAt,
			"expires_at":   res.Link.ExpiresAt,
		})
	default:
		log.Error().Str("code", code).Stringer("status", res.Status).Msg("unhandled resolution status")
		internalError(c, "Failed to resolve short link")
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) HealthDetailed(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	postgres := "connected"
	if err := h.postgres.Health(ctx); err != nil {
		postgres = "unreachable"
		status = http.StatusServiceUnavailable
	}
	redis := "connected"
	if err := h.redis.Health(ctx); err != nil {
		redis = "unreachable"
		status = http.StatusServiceUnavailable
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":   overall,
		"postgres": postgres,
		"redis":    redis,
	})
}

// ownerID reads the authenticated user id from the auth layer's header.
func ownerID(c *gin.Context) *int64 {
	raw := c.GetHeader(ownerHeader)
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid link id")
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": message,
	})
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "not_found",
		"message": "Short link not found",
	})
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": "Authentication required",
	})
}

func internalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": message,
	})
}
