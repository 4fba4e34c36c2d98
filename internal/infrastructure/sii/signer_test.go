package sii

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
)

func TestRemoteSigner_SignSeed(t *testing.T) {
	companyID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sign-seed", r.URL.Path)

		var req signRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, companyID.String(), req.CompanyID)
		assert.Equal(t, "seed-001", req.Seed)

		fmt.Fprint(w, `{"signed_seed":"<signed/>"}`)
	}))
	defer server.Close()

	signer := NewRemoteSigner(server.URL, 5*time.Second)
	signed, err := signer.SignSeed(context.Background(), companyID, "seed-001")
	require.NoError(t, err)
	assert.Equal(t, "<signed/>", signed)
}

func TestRemoteSigner_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"unknown company", http.StatusNotFound, "", "SII_AUTH_REJECTED"},
		{"bad certificate", http.StatusUnprocessableEntity, "", "SII_AUTH_REJECTED"},
		{"service error", http.StatusInternalServerError, "", "SII_TRANSPORT"},
		{"garbage response", http.StatusOK, "not json", "SII_PARSING"},
		{"empty signature", http.StatusOK, `{"signed_seed":""}`, "SII_PARSING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			signer := NewRemoteSigner(server.URL, 5*time.Second)
			_, err := signer.SignSeed(context.Background(), uuid.New(), "seed")
			require.Error(t, err)
			assert.True(t, domainerrors.IsCode(err, tt.wantCode), "got %v", err)
		})
	}
}
