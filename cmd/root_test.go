package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wakefit-analytics/gmb-pipeline/internal/config"
	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
	"github.com/wakefit-analytics/gmb-pipeline/pkg/google"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "serve", "runs", "lookup", "config"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "gmb-pipeline", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommandFlags(t *testing.T) {
	require.NotNil(t, runCmd.Flags().Lookup("summary"))
	require.NotNil(t, serveCmd.Flags().Lookup("port"))
	require.NotNil(t, lookupCmd.Flags().Lookup("details"))
	require.NotNil(t, runsListCmd.Flags().Lookup("status"))
	require.NotNil(t, runsListCmd.Flags().Lookup("date"))
	require.NotNil(t, runsStatsCmd.Flags().Lookup("since"))
}

func TestWriteOutcome_Summary(t *testing.T) {
	outcome := &model.RunOutcome{Result: model.RunResult{Stores: 5, Worksheets: []string{"Store_Data_2025-01-15"}}}

	var buf bytes.Buffer
	require.NoError(t, writeOutcome(&buf, outcome, true))
	assert.Contains(t, buf.String(), `"stores": 5`)
	assert.Contains(t, buf.String(), "Store_Data_2025-01-15")
}

func TestWriteConfig_RedactsSecrets(t *testing.T) {
	c := &config.Config{}
	c.Project.ID = "wakefit-prod"
	c.Secrets.PlacesAPIKey = "AIza-secret"
	c.Secrets.ServiceAccountJSON = `{"private_key":"xyz"}`
	c.Store.DatabaseURL = "postgres://user:pass@db/gmb"
	c.Monitoring.WebhookURL = "https://hooks.example.com/T000/B000"

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, c))

	out := buf.String()
	assert.NotContains(t, out, "AIza-secret")
	assert.NotContains(t, out, "xyz")
	assert.NotContains(t, out, "user:pass")
	assert.NotContains(t, out, "hooks.example.com")
	assert.Contains(t, out, "wakefit-prod")

	var decoded config.Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, redacted, decoded.Secrets.PlacesAPIKey)

	// The caller's config is untouched.
	assert.Equal(t, "AIza-secret", c.Secrets.PlacesAPIKey)
}

func TestFormatPlaces(t *testing.T) {
	var buf bytes.Buffer
	formatPlaces(&buf, []google.Place{{
		ID:               "ChIJnorthnorthnorthnorth1",
		DisplayName:      google.DisplayName{Text: "Wakefit Delhi"},
		FormattedAddress: "Connaught Place, New Delhi",
		Rating:           4.9,
		UserRatingCount:  120,
	}})

	out := buf.String()
	assert.Contains(t, out, "PLACE_ID")
	assert.Contains(t, out, "ChIJnorthnorthnorthnorth1")
	assert.Contains(t, out, "Wakefit Delhi")
	assert.Contains(t, out, "4.9")
	assert.Contains(t, out, "120")
}

func TestFormatEnrichment(t *testing.T) {
	var buf bytes.Buffer
	formatEnrichment(&buf, model.NewEnrichmentSuccess("ChIJx", 12, 4.25, "OPERATIONAL"))
	assert.Contains(t, buf.String(), "4.25")
	assert.Contains(t, buf.String(), "12")
	assert.Contains(t, buf.String(), "OPERATIONAL")
}

func TestNewPlacesClient_UsesConfiguredBaseURL(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places:searchText", r.URL.Path)
		gotKey = r.Header.Get("X-Goog-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"places":[{"id":"ChIJ1","displayName":{"text":"Wakefit HSR"}}]}`))
	}))
	defer srv.Close()

	client := newPlacesClient(config.PlacesConfig{BaseURL: srv.URL}, "k")
	resp, err := client.TextSearch(t.Context(), "wakefit hsr")
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "Wakefit HSR", resp.Places[0].DisplayName.Text)
	assert.Equal(t, "k", gotKey)
}
