package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pjc-admin/statistiques-api/models"
	"github.com/pjc-admin/statistiques-api/utils"
)

// StatistiquesAPI is the statistics backend as seen by this service.
type StatistiquesAPI interface {
	GetAll(ctx context.Context) (*models.StatsGlobales, error)
	GetByAnnee(ctx context.Context, year int) (*models.YearStatistic, error)
	GetBudgetByAnnee(ctx context.Context, year int) (*models.BudgetAnnuel, error)
}

// ProviderError is a non-2xx answer from the statistics backend.
type ProviderError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("statistics backend %s: %d %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("statistics backend %s: status %d", e.Endpoint, e.StatusCode)
}

type tokenKey struct{}

// WithToken attache le jeton de l'utilisateur au contexte ; il est relayé au backend.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// StatistiquesClient appelle le backend REST des statistiques
type StatistiquesClient struct {
	baseURL string
	http    *http.Client
}

func NewStatistiquesClient(baseURL string, timeout time.Duration) *StatistiquesClient {
	return &StatistiquesClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *StatistiquesClient) GetAll(ctx context.Context) (*models.StatsGlobales, error) {
	var out models.StatsGlobales
	if err := c.get(ctx, "/statistiques", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *StatistiquesClient) GetByAnnee(ctx context.Context, year int) (*models.YearStatistic, error) {
	var out models.YearStatistic
	if err := c.get(ctx, fmt.Sprintf("/statistiques/annee/%d", year), &out); err != nil {
		return nil, err
	}
	if out.Year == 0 {
		out.Year = year
	}
	return &out, nil
}

func (c *StatistiquesClient) GetBudgetByAnnee(ctx context.Context, year int) (*models.BudgetAnnuel, error) {
	var out models.BudgetAnnuel
	if err := c.get(ctx, fmt.Sprintf("/statistiques/budget/%d", year), &out); err != nil {
		return nil, err
	}
	if out.Annee == 0 {
		out.Annee = year
	}
	return &out, nil
}

func (c *StatistiquesClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("statistics backend %s: %w", path, err)
	}
	defer resp.Body.Close()
	utils.SafeDebug("[Stats] GET %s -> %d", path, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ProviderError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Message:    extractMessage(body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// extractMessage récupère le champ "message" ou "error" d'une réponse JSON d'erreur
func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}
