package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/WhizardTelemetry/eBPFConductor/internal/auth"
	"github.com/WhizardTelemetry/eBPFConductor/internal/cache"
	"github.com/WhizardTelemetry/eBPFConductor/internal/config"
	"github.com/WhizardTelemetry/eBPFConductor/internal/rbac"
)

const maxManifestBody = 1 << 20 // 1 MiB is generous for three records

type tokenRequest struct {
	Service string `json:"service" binding:"required"`
	Secret  string `json:"secret" binding:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Service   string    `json:"service"`
}

func tokenHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		if !auth.AuthenticateService(req.Service, req.Secret) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, exp, err := auth.GenerateToken(req.Service, "viewer", cfg)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
			return
		}

		c.JSON(http.StatusOK, tokenResponse{
			Token:     token,
			ExpiresAt: exp,
			Service:   req.Service,
		})
	}
}

func listWorkloadsHandler(wc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"addresses": wc.Addresses()})
	}
}

func lookupWorkloadHandler(wc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.Param("ip")
		workload, ok := wc.Lookup(ip)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no workload for address", "address": ip})
			return
		}
		c.JSON(http.StatusOK, workload)
	}
}

func manifestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := rbac.Default().Render()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
			return
		}
		c.Data(http.StatusOK, "application/yaml", out)
	}
}

type validateResponse struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Findings []string `json:"findings,omitempty"`
}

func validateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxManifestBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read body"})
			return
		}

		m, err := rbac.Parse(body)
		if err != nil {
			c.JSON(http.StatusOK, validateResponse{Valid: false, Errors: []string{err.Error()}})
			return
		}

		resp := validateResponse{Valid: true}
		if err := m.Validate(); err != nil {
			resp.Valid = false
			resp.Errors = append(resp.Errors, err.Error())
		}
		for _, f := range m.Lint() {
			resp.Findings = append(resp.Findings, f.String())
		}
		c.JSON(http.StatusOK, resp)
	}
}
