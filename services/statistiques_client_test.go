package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjc-admin/statistiques-api/models"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/statistiques", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.StatsGlobales{Affaires: models.Compteur{Total: 12}})
	})
	mux.HandleFunc("/api/statistiques/annee/2024", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Token manquant"}`))
			return
		}
		w.Write([]byte(`{"finances":{"montantGage":15000.5,"montantPaye":7000,"nbConventions":8,"nbPaiements":3},
			"beneficiaires":{"total":60},"parRedacteur":{"Durand":6}}`))
	})
	mux.HandleFunc("/api/statistiques/annee/2030", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/statistiques/budget/2024", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"parMois":[{"mois":1,"nomMois":"Janvier","gage":{"montant":100,"nombre":1},"paye":{"montant":50,"nombre":1}}],
			"totaux":{"montantGage":100,"montantPaye":50,"ratio":0.5}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStatistiquesClient_GetByAnnee(t *testing.T) {
	srv := newBackend(t)
	client := NewStatistiquesClient(srv.URL+"/api/", 5*time.Second)

	stat, err := client.GetByAnnee(WithToken(context.Background(), "secret-token"), 2024)
	require.NoError(t, err)

	assert.Equal(t, 2024, stat.Year)
	assert.Equal(t, 15000.5, stat.Finances.MontantGage)
	assert.Equal(t, 60, stat.Beneficiaires.Total)
	assert.Equal(t, 6, stat.ParRedacteur["Durand"])
}

func TestStatistiquesClient_ProviderErrors(t *testing.T) {
	srv := newBackend(t)
	client := NewStatistiquesClient(srv.URL+"/api", 5*time.Second)

	_, err := client.GetByAnnee(context.Background(), 2024)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	assert.Equal(t, "Token manquant", perr.Message)

	_, err = client.GetByAnnee(context.Background(), 2030)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusInternalServerError, perr.StatusCode)
	assert.Equal(t, "boom", perr.Message)
}

func TestStatistiquesClient_GetAllAndBudget(t *testing.T) {
	srv := newBackend(t)
	client := NewStatistiquesClient(srv.URL+"/api", 5*time.Second)

	all, err := client.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, all.Affaires.Total)

	budget, err := client.GetBudgetByAnnee(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, 2024, budget.Annee)
	require.Len(t, budget.ParMois, 1)
	assert.Equal(t, "Janvier", budget.ParMois[0].NomMois)
}

func TestStatistiquesClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	client := NewStatistiquesClient(srv.URL, 20*time.Millisecond)
	_, err := client.GetAll(context.Background())
	assert.Error(t, err)
}
