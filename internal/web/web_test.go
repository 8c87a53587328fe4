package web

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"trafficanalyzer/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCards_DefaultsToZero(t *testing.T) {
	cards := Cards(model.Counts{{Label: "truck", Count: 2}, {Label: "car", Count: 5}, {Label: "tram", Count: 1}})

	require.Len(t, cards, 5)
	names := make([]string, len(cards))
	counts := make(map[string]int)
	for i, c := range cards {
		names[i] = c.Name
		counts[c.Label] = c.Count
	}
	assert.Equal(t, []string{"Bicycles", "Motorcycles", "Cars", "Trucks", "Buses"}, names)
	assert.Equal(t, map[string]int{"bicycle": 0, "motorcycle": 0, "car": 5, "truck": 2, "bus": 0}, counts)
}

func TestPages_RenderLayout(t *testing.T) {
	pages, err := ParsePages()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = pages.Render(&buf, PageReports, struct {
		Title       string
		Active      string
		AuthEnabled bool
		Categories  []Category
	}{"Reports", "reports", false, Categories})
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "<title>Reports · Traffic Analyzer</title>")
	assert.Contains(t, html, `<a href="/reports" class="active">Reports</a>`)
	assert.Contains(t, html, `<option value="bus">Buses</option>`)
	assert.NotContains(t, html, "Logout")
}

func TestPages_UnknownPage(t *testing.T) {
	pages, err := ParsePages()
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.Error(t, pages.Render(&buf, "missing", nil))
	assert.Zero(t, buf.Len())
}

func TestStatic(t *testing.T) {
	srv := httptest.NewServer(http.StripPrefix("/static/", Static()))
	defer srv.Close()

	for _, name := range []string{"app.js", "reports.js", "style.css"} {
		resp, err := http.Get(srv.URL + "/static/" + name)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, name)
		assert.NotEmpty(t, body, name)
	}
}
