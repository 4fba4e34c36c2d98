package sii

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
)

// RemoteSigner delegates seed signing to the credential service that
// holds each company's certificate. Keys never enter this process.
type RemoteSigner struct {
	httpClient *http.Client
	baseURL    string
}

// NewRemoteSigner creates a signer backed by the credential service
func NewRemoteSigner(baseURL string, timeout time.Duration) *RemoteSigner {
	return &RemoteSigner{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type signRequest struct {
	CompanyID string `json:"company_id"`
	Seed      string `json:"seed"`
}

type signResponse struct {
	SignedSeed string `json:"signed_seed"`
}

// SignSeed returns the XML-DSIG signed seed for the company
func (s *RemoteSigner) SignSeed(ctx context.Context, companyID uuid.UUID, seed string) (string, error) {
	body, err := json.Marshal(signRequest{CompanyID: companyID.String(), Seed: seed})
	if err != nil {
		return "", domainerrors.NewInternalError("encoding sign request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/sign-seed", bytes.NewReader(body))
	if err != nil {
		return "", domainerrors.NewInternalError("building sign request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", domainerrors.NewTransportError("signing service unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domainerrors.NewTransportError("reading signing response").WithCause(err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		return "", domainerrors.NewAuthRejectedError(
			fmt.Sprintf("signing service rejected company %s: status %d", companyID, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return "", domainerrors.NewTransportError(
			fmt.Sprintf("signing service returned status %d", resp.StatusCode))
	}

	var decoded signResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", domainerrors.NewSIIParsingError("undecodable signing response", string(payload))
	}
	if decoded.SignedSeed == "" {
		return "", domainerrors.NewSIIParsingError("signing response carries no signature", string(payload))
	}
	return decoded.SignedSeed, nil
}
