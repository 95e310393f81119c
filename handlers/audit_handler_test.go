package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"claimaudit-backend/embedding"
	"claimaudit-backend/extraction"
	"claimaudit-backend/index"
	"claimaudit-backend/repository"
	"claimaudit-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	embedder := embedding.NewLocalEmbedder(128)
	idx := index.NewMemoryIndex(0.7, 0.3)
	policies := repository.NewMemoryPolicyStore()

	ingestion := service.NewIngestionService(
		service.IngestionWithPolicyStore(policies),
		service.IngestionWithEmbedder(embedder),
		service.IngestionWithIndex(idx),
	)
	require.NoError(t, service.SeedDefaultPolicy(context.Background(), ingestion))

	auditService := service.NewAuditService(
		service.AuditWithRetriever(service.NewRetriever(embedder, idx, policies, 6)),
		service.AuditWithRuleSource(extraction.NewExtractor(&extraction.MockBackend{}, 0.5, 2)),
		service.AuditWithClaimStore(repository.NewMemoryClaimStore()),
		service.AuditWithAuditStore(repository.NewMemoryAuditStore()),
	)

	handler := NewAuditHandler(auditService)
	router := gin.New()
	router.POST("/api/audits", handler.RunAudit)
	router.GET("/api/audits/:id", handler.GetAudit)
	return router
}

func postAudit(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/audits", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRunAuditEndpointApproves(t *testing.T) {
	router := newTestRouter(t)

	w := postAudit(t, router, `{
		"claim_id": "clm-http-1",
		"patient_id": "pat-1",
		"cpt_codes": ["E0601"],
		"icd_codes": ["G47.33"],
		"service_date": "2025-03-14",
		"payer": "Medicare",
		"billed_amount": 1250,
		"notes": "Attended PSG performed. AHI = 18. Patient reports excessive daytime sleepiness."
	}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			AuditID    string  `json:"audit_id"`
			Decision   string  `json:"decision"`
			Confidence float64 `json:"confidence"`
			Citations  []struct {
				PolicyID    string `json:"policy_id"`
				TextExcerpt string `json:"text_excerpt"`
			} `json:"citations"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "APPROVE", resp.Data.Decision)
	require.NotEmpty(t, resp.Data.Citations)
	assert.Equal(t, service.DefaultPolicyID, resp.Data.Citations[0].PolicyID)

	// The recorded audit is retrievable by id.
	getReq := httptest.NewRequest(http.MethodGet, "/api/audits/"+resp.Data.AuditID, nil)
	getW := httptest.NewRecorder()
	router.ServeHTTP(getW, getReq)
	assert.Equal(t, http.StatusOK, getW.Code)
}

func TestRunAuditEndpointRejectsInvalidClaim(t *testing.T) {
	router := newTestRouter(t)

	w := postAudit(t, router, `{
		"claim_id": "clm-http-2",
		"cpt_codes": [],
		"service_date": "2025-03-14",
		"payer": "Medicare"
	}`)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Code   string   `json:"code"`
			Issues []string `json:"issues"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "INVALID_CLAIM", resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Issues)
}

func TestRunAuditEndpointRejectsMalformedJSON(t *testing.T) {
	router := newTestRouter(t)
	w := postAudit(t, router, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAuditEndpointNotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audits/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
