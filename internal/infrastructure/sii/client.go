package sii

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/billing"
	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
	domainsii "github.com/contaflow/sii-reconciliation-backend/internal/domain/sii"
	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
	"github.com/contaflow/sii-reconciliation-backend/internal/infrastructure/config"
)

const (
	seedPath  = "/DTEWS/CrSeed.jws"
	tokenPath = "/DTEWS/GetTokenFromSeed.jws"
	rcvPath   = "/recursos/v1/registrocompraventa"

	// ESTADO "00" is the authority's success marker in every SOAP reply
	estadoOK = "00"
)

const seedRequestBody = `<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/">
 <SOAP-ENV:Body><getSeed/></SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

const tokenRequestTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/">
 <SOAP-ENV:Body><getToken><pszXml>%s</pszXml></getToken></SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

// soapEnvelope covers both seed and token replies. The authority returns
// the payload as an XML-escaped string inside the return element.
type soapEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		SeedReturn  string `xml:"getSeedResponse>getSeedReturn"`
		TokenReturn string `xml:"getTokenResponse>getTokenReturn"`
	} `xml:"Body"`
}

// respuesta is the inner payload of a SOAP reply
type respuesta struct {
	XMLName xml.Name `xml:"RESPUESTA"`
	Header  struct {
		Estado string `xml:"ESTADO"`
		Glosa  string `xml:"GLOSA"`
	} `xml:"RESP_HDR"`
	Body struct {
		Semilla string `xml:"SEMILLA"`
		Token   string `xml:"TOKEN"`
	} `xml:"RESP_BODY"`
}

// rcvPayload is the ledger endpoint's JSON shape
type rcvPayload struct {
	Data []rcvItem `json:"data"`
}

type rcvItem struct {
	TipoDte        int    `json:"tipoDte"`
	Folio          int64  `json:"folio"`
	RutContraparte string `json:"rutContraparte"`
	RazonSocial    string `json:"razonSocial"`
	MontoTotal     int64  `json:"montoTotal"`
}

// Client talks to the tax authority over HTTP: SOAP for the seed/token
// handshake, JSON for the purchase/sale ledgers. All calls are rate
// limited and carry the caller's context deadline.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a tax authority client from configuration
func NewClient(cfg config.SIIConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:     logger,
	}
}

// GetSeed requests a fresh authentication seed
func (c *Client) GetSeed(ctx context.Context) (string, error) {
	ctx, span := otel.Tracer("sii").Start(ctx, "Client.GetSeed")
	defer span.End()

	payload, err := c.callSOAP(ctx, seedPath, seedRequestBody)
	if err != nil {
		return "", err
	}

	inner, err := c.decodeRespuesta(payload, func(env *soapEnvelope) string { return env.Body.SeedReturn })
	if err != nil {
		return "", err
	}
	if inner.Header.Estado != estadoOK {
		return "", domainerrors.NewAuthRejectedError(
			fmt.Sprintf("seed request rejected: estado %s (%s)", inner.Header.Estado, inner.Header.Glosa))
	}
	if inner.Body.Semilla == "" {
		return "", domainerrors.NewSIIParsingError("seed reply carries no seed", string(payload))
	}
	return inner.Body.Semilla, nil
}

// GetToken exchanges a signed seed for a session token. A rejected
// signature is not retryable with the same seed.
func (c *Client) GetToken(ctx context.Context, signedSeed string) (string, error) {
	ctx, span := otel.Tracer("sii").Start(ctx, "Client.GetToken")
	defer span.End()

	var escaped strings.Builder
	if err := xml.EscapeText(&escaped, []byte(signedSeed)); err != nil {
		return "", domainerrors.NewInternalError("escaping signed seed").WithCause(err)
	}

	payload, err := c.callSOAP(ctx, tokenPath, fmt.Sprintf(tokenRequestTemplate, escaped.String()))
	if err != nil {
		return "", err
	}

	inner, err := c.decodeRespuesta(payload, func(env *soapEnvelope) string { return env.Body.TokenReturn })
	if err != nil {
		return "", err
	}
	if inner.Header.Estado != estadoOK {
		return "", domainerrors.NewAuthRejectedError(
			fmt.Sprintf("signed seed rejected: estado %s (%s)", inner.Header.Estado, inner.Header.Glosa))
	}
	if inner.Body.Token == "" {
		return "", domainerrors.NewSIIParsingError("token reply carries no token", string(payload))
	}
	return inner.Body.Token, nil
}

// GetRCV downloads one side of the period ledger for a taxpayer
func (c *Client) GetRCV(ctx context.Context, token string, rut values.Rut, period values.Period, direction domainsii.RcvDirection) ([]domainsii.RcvRecord, error) {
	ctx, span := otel.Tracer("sii").Start(ctx, "Client.GetRCV")
	defer span.End()
	span.SetAttributes(
		attribute.String("rut", rut.String()),
		attribute.String("period", period.String()),
		attribute.String("direction", direction.String()),
	)

	operacion := "compra"
	if direction == domainsii.DirectionSale {
		operacion = "venta"
	}
	url := fmt.Sprintf("%s%s/%s/%s/%s", c.baseURL, rcvPath, operacion, rut.String(), period.String())

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domainerrors.NewTransportError("rate limiter wait interrupted").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domainerrors.NewInternalError("building ledger request").WithCause(err)
	}
	req.AddCookie(&http.Cookie{Name: "TOKEN", Value: token})
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domainerrors.NewTransportError("ledger request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domainerrors.NewTransportError("reading ledger response").WithCause(err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domainerrors.NewAuthRejectedError(
			fmt.Sprintf("ledger request rejected with status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, domainerrors.NewTransportError(
			fmt.Sprintf("ledger request returned status %d", resp.StatusCode))
	}

	var payload rcvPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Error("undecodable ledger payload",
			zap.String("rut", rut.String()),
			zap.String("period", period.String()),
			zap.Error(err))
		return nil, domainerrors.NewSIIParsingError("undecodable ledger payload", string(body))
	}

	records := make([]domainsii.RcvRecord, 0, len(payload.Data))
	for _, item := range payload.Data {
		record, err := c.mapItem(item, period, direction)
		if err != nil {
			c.logger.Error("unmappable ledger row",
				zap.String("rut", rut.String()),
				zap.String("period", period.String()),
				zap.Error(err))
			return nil, domainerrors.NewSIIParsingError(err.Error(), string(body))
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *Client) mapItem(item rcvItem, period values.Period, direction domainsii.RcvDirection) (domainsii.RcvRecord, error) {
	docType := billing.DocumentType(item.TipoDte)
	if !docType.IsValid() {
		return domainsii.RcvRecord{}, fmt.Errorf("unknown document type code %d", item.TipoDte)
	}
	counterpart, err := values.ParseRut(item.RutContraparte)
	if err != nil {
		return domainsii.RcvRecord{}, fmt.Errorf("invalid counterpart RUT %q: %w", item.RutContraparte, err)
	}
	return domainsii.RcvRecord{
		Period:          period,
		DocumentType:    docType,
		Folio:           item.Folio,
		CounterpartRut:  counterpart,
		CounterpartName: item.RazonSocial,
		Amount:          values.NewCLP(item.MontoTotal),
		Direction:       direction,
	}, nil
}

// callSOAP posts a SOAP envelope and returns the raw response body
func (c *Client) callSOAP(ctx context.Context, path, body string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domainerrors.NewTransportError("rate limiter wait interrupted").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, domainerrors.NewInternalError("building SOAP request").WithCause(err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domainerrors.NewTransportError("SOAP request failed").WithCause(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domainerrors.NewTransportError("reading SOAP response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domainerrors.NewTransportError(
			fmt.Sprintf("SOAP endpoint returned status %d", resp.StatusCode))
	}
	return payload, nil
}

// decodeRespuesta unwraps the SOAP envelope and the XML-escaped inner
// payload it carries.
func (c *Client) decodeRespuesta(payload []byte, pick func(*soapEnvelope) string) (*respuesta, error) {
	var env soapEnvelope
	if err := xml.Unmarshal(payload, &env); err != nil {
		return nil, domainerrors.NewSIIParsingError("undecodable SOAP envelope", string(payload))
	}

	inner := pick(&env)
	if inner == "" {
		return nil, domainerrors.NewSIIParsingError("SOAP reply carries no payload", string(payload))
	}

	var resp respuesta
	if err := xml.Unmarshal([]byte(inner), &resp); err != nil {
		return nil, domainerrors.NewSIIParsingError("undecodable inner payload", string(payload))
	}
	return &resp, nil
}
