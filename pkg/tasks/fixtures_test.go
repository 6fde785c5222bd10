package tasks

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"edu-etl/pkg/config"
	"edu-etl/pkg/httpclient"
)

const countryBody = `[{"page":1,"pages":1,"per_page":"50","total":1},[{
	"id":"MEX","iso2Code":"MX","name":"Mexico",
	"region":{"id":"LCN","iso2code":"ZJ","value":"Latin America & Caribbean "},
	"incomeLevel":{"id":"UMC","iso2code":"XT","value":"Upper middle income"},
	"lendingType":{"id":"IBD","iso2code":"XF","value":"IBRD"},
	"capitalCity":"Mexico City","longitude":"-99.1276","latitude":"19.427"}]]`

const universitiesBody = `[
	{"name":"ITESM","country":"Mexico","alpha_two_code":"MX","domains":["itesm.mx"],"web_pages":["http://www.itesm.mx/"],"state-province":null},
	{"name":"Universidad Nacional Autónoma de México","country":"Mexico","alpha_two_code":"MX","domains":["unam.mx"],"web_pages":["http://www.unam.mx/"]},
	{"name":"itesm","country":"Mexico","alpha_two_code":"MX","domains":["tec.mx"],"web_pages":["http://tec.mx/"]},
	{"name":"","country":"Mexico"},
	{"country":"Mexico"},
	{"name":"Universidad de Guadalajara","country":"MEXICO","domains":["udg.mx","cucei.udg.mx"]}
]`

// indicatorPages splits five observations over two pages of the World Bank envelope.
var indicatorPages = map[string]string{
	"1": `[{"page":1,"pages":2,"per_page":3,"total":5},[
		{"indicator":{"id":"SE.TER.ENRR","value":"School enrollment, tertiary (% gross)"},"country":{"id":"MX","value":"Mexico"},"countryiso3code":"MEX","date":"2016","value":"45.6789","unit":"","obs_status":"","decimal":1},
		{"indicator":{"id":"SE.TER.ENRR","value":"School enrollment, tertiary (% gross)"},"country":{"id":"MX","value":"Mexico"},"countryiso3code":"MEX","date":"2015","value":40.123,"unit":"","obs_status":"","decimal":1},
		{"indicator":{"id":"SE.TER.ENRR","value":"School enrollment, tertiary (% gross)"},"country":{"id":"MX","value":"Mexico"},"countryiso3code":"MEX","date":"2014","value":null,"unit":"","obs_status":"","decimal":1}]]`,
	"2": `[{"page":2,"pages":2,"per_page":3,"total":5},[
		{"indicator":{"id":"SE.TER.ENRR","value":"School enrollment, tertiary (% gross)"},"country":{"id":"MX","value":"Mexico"},"countryiso3code":"MEX","date":"2015","value":99.9,"unit":"","obs_status":"","decimal":1},
		{"indicator":{"id":"SE.TER.ENRR","value":"School enrollment, tertiary (% gross)"},"country":{"id":"MX","value":"Mexico"},"countryiso3code":"MEX","date":"2005","value":24.5,"unit":"","obs_status":"","decimal":1}]]`,
}

// apiServer fakes both upstream APIs. Overrides map a path to a raw body;
// a body of "500" makes that path fail.
func apiServer(t *testing.T, overrides map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if body, ok := overrides[path]; ok {
			if body == "500" {
				http.Error(w, "upstream error", http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, body)
			return
		}
		switch {
		case path == "/v2/country/MX":
			fmt.Fprint(w, countryBody)
		case path == "/search" && r.URL.Query().Get("country") == "Mexico":
			fmt.Fprint(w, universitiesBody)
		case strings.HasPrefix(path, "/v2/country/MX/indicator/"):
			page := r.URL.Query().Get("page")
			if page == "" {
				page = "1"
			}
			fmt.Fprint(w, indicatorPages[page])
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func sourceSettings(server *httptest.Server) config.SourceSettings {
	return config.SourceSettings{
		WorldBankBaseURL: server.URL + "/v2",
		HipolabsBaseURL:  server.URL,
		CountryCode:      "MX",
		CountryName:      "Mexico",
		IndicatorID:      "SE.TER.ENRR",
		PerPage:          3,
	}
}

func newTestIngester(t *testing.T, overrides map[string]string) *Ingester {
	t.Helper()
	server := apiServer(t, overrides)
	return NewIngester(httpclient.NewClient(httpclient.JSONClient, 2*time.Second), sourceSettings(server))
}
