package web

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/envdash/uda/aqi"
	"github.com/envdash/uda/export"
	"github.com/envdash/uda/measurement"
	"github.com/envdash/uda/narrative"
	"github.com/envdash/uda/normalize"
	"github.com/envdash/uda/poller"
	"github.com/envdash/uda/quality"
	"github.com/envdash/uda/threshold"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// domainParam parses the {domain} URL parameter, writing a 404 if it is unknown.
func domainParam(w http.ResponseWriter, r *http.Request) (threshold.Domain, bool) {
	d, ok := threshold.ParseDomain(chi.URLParam(r, "domain"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown domain %q", chi.URLParam(r, "domain")))
	}
	return d, ok
}

func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	out := make(map[threshold.Domain][]threshold.Metric)
	for _, d := range threshold.Domains() {
		out[d] = threshold.Metrics(d)
	}
	writeJSON(w, http.StatusOK, out)
}

type classifyResponse struct {
	Domain          threshold.Domain `json:"domain"`
	Metric          threshold.Metric `json:"metric"`
	Value           float64          `json:"value"`
	Band            threshold.Band   `json:"band"`
	Percentage      float64          `json:"percentage"`
	Summary         string           `json:"summary"`
	Recommendations []string         `json:"recommendations"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	d, ok := threshold.ParseDomain(q.Get("domain"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown domain %q", q.Get("domain")))
		return
	}
	m := threshold.Metric(q.Get("metric"))

	raw := q.Get("value")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("bad value %q", raw))
		return
	}

	if _, err := threshold.ClassifyStrict(d, m, &v); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	res := quality.Assess(d, m, &v)
	writeJSON(w, http.StatusOK, classifyResponse{
		Domain:          d,
		Metric:          m,
		Value:           v,
		Band:            res.Band,
		Percentage:      res.Percentage,
		Summary:         narrative.Summary(res),
		Recommendations: narrative.RecommendationsFor(d, res.Label()),
	})
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	d, ok := domainParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, threshold.Tables(d))
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	d, ok := domainParam(w, r)
	if !ok {
		return
	}

	label, err := url.PathUnescape(chi.URLParam(r, "label"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad label")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Domain          threshold.Domain `json:"domain"`
		Label           string           `json:"label"`
		Recommendations []string         `json:"recommendations"`
	}{d, label, narrative.RecommendationsFor(d, label)})
}

type aqiValue struct {
	Value    int    `json:"value"`
	Category string `json:"category"`
	Abbrv    string `json:"abbrv"`
}

func newAQIValue(v int) *aqiValue {
	return &aqiValue{Value: v, Category: aqi.String(v), Abbrv: aqi.Abbrv(v)}
}

type aqiReading struct {
	PM25 *aqiValue `json:"pm25,omitempty"`
	PM10 *aqiValue `json:"pm10,omitempty"`
}

type deviceStatus struct {
	poller.Update
	Summary string      `json:"summary"`
	AQI     *aqiReading `json:"aqi,omitempty"`
}

func newDeviceStatus(u poller.Update) deviceStatus {
	ds := deviceStatus{Update: u, Summary: narrative.Summary(u.Overall)}

	m := u.Measurement
	if m.Domain == threshold.Air && (m.PM25 != nil || m.PM10 != nil) {
		ds.AQI = &aqiReading{}
		if m.PM25 != nil {
			ds.AQI.PM25 = newAQIValue(aqi.PM25(*m.PM25))
		}
		if m.PM10 != nil {
			ds.AQI.PM10 = newAQIValue(aqi.PM10(*m.PM10))
		}
	}
	return ds
}

type statusResponse struct {
	Domain          threshold.Domain `json:"domain"`
	Updated         time.Time        `json:"updated,omitempty"`
	Overall         *quality.Result  `json:"overall"`
	Label           string           `json:"label"`
	Summary         string           `json:"summary"`
	Recommendations []string         `json:"recommendations"`
	Devices         []deviceStatus   `json:"devices"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	d, ok := domainParam(w, r)
	if !ok {
		return
	}

	resp := statusResponse{
		Domain:          d,
		Label:           narrative.NoData,
		Summary:         narrative.NoData,
		Recommendations: []string{},
		Devices:         []deviceStatus{},
	}

	if s.Poller != nil {
		if st, ok := s.Poller.Status(d); ok {
			resp.Updated = st.Updated
			resp.Overall = st.Overall
			resp.Summary = narrative.Summary(st.Overall)
			if st.Overall != nil {
				resp.Label = st.Overall.Label()
				resp.Recommendations = narrative.RecommendationsFor(d, st.Overall.Label())
			}
			for _, u := range st.Devices {
				resp.Devices = append(resp.Devices, newDeviceStatus(u))
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "deviceID")
	if s.Poller == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no data for device %q", id))
		return
	}

	u, ok := s.Poller.Latest(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no data for device %q", id))
		return
	}
	writeJSON(w, http.StatusOK, newDeviceStatus(u))
}

// historyRange reads the time range of a history request: either start and end
// in RFC 3339 or hours back from now.
func (s *Server) historyRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()

	if q.Get("start") != "" || q.Get("end") != "" {
		start, err := time.Parse(time.RFC3339, q.Get("start"))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad start time: %v", err)
		}
		end, err := time.Parse(time.RFC3339, q.Get("end"))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad end time: %v", err)
		}
		if !end.After(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("end must be after start")
		}
		if end.Sub(start) > maxHistoryHours*time.Hour {
			return time.Time{}, time.Time{}, fmt.Errorf("range must be at most %d hours", maxHistoryHours)
		}
		return start.UTC(), end.UTC(), nil
	}

	hoursAgo := defaultHistoryHours
	if raw := q.Get("hours"); raw != "" {
		var err error
		hoursAgo, err = strconv.Atoi(raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad hours: %v", err)
		}
		if hoursAgo < 1 || hoursAgo > maxHistoryHours {
			return time.Time{}, time.Time{}, fmt.Errorf("hours must be between 1 and %d", maxHistoryHours)
		}
	}

	end := s.clock().UTC()
	return end.Add(-time.Duration(hoursAgo) * time.Hour), end, nil
}

// fetchHistory writes an error response and returns false if the history
// cannot be fetched.
func (s *Server) fetchHistory(w http.ResponseWriter, r *http.Request, d threshold.Domain) ([]measurement.Measurement, time.Time, time.Time, bool) {
	start, end, err := s.historyRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, start, end, false
	}

	if s.Source == nil {
		writeError(w, http.StatusServiceUnavailable, "no history source configured")
		return nil, start, end, false
	}

	ms, err := s.Source.Between(r.Context(), d, start, end)
	if err != nil {
		s.errorf(r, "fetching history failed", err)
		writeError(w, http.StatusBadGateway, "failed to fetch history")
		return nil, start, end, false
	}
	for i := range ms {
		if ms[i].Domain == "" {
			ms[i].Domain = d
		}
	}
	return ms, start, end, true
}

type historyResponse struct {
	Domain threshold.Domain                                  `json:"domain"`
	Start  time.Time                                         `json:"start"`
	End    time.Time                                         `json:"end"`
	Series map[threshold.Metric][]measurement.DeviceSeries   `json:"series"`
	Stats  map[string]map[threshold.Metric]measurement.Stats `json:"stats"`
	Latest map[string]map[threshold.Metric]latestReading     `json:"latest"`
}

type latestReading struct {
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	d, ok := domainParam(w, r)
	if !ok {
		return
	}

	metrics := threshold.Metrics(d)
	if m := r.URL.Query().Get("metric"); m != "" {
		if _, err := threshold.Lookup(d, threshold.Metric(m)); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		metrics = []threshold.Metric{threshold.Metric(m)}
	}

	ms, start, end, ok := s.fetchHistory(w, r, d)
	if !ok {
		return
	}

	byDevice := measurement.ByDevice(ms)
	resp := historyResponse{
		Domain: d,
		Start:  start,
		End:    end,
		Series: make(map[threshold.Metric][]measurement.DeviceSeries, len(metrics)),
		Stats:  make(map[string]map[threshold.Metric]measurement.Stats, len(byDevice)),
		Latest: make(map[string]map[threshold.Metric]latestReading, len(byDevice)),
	}
	for _, m := range metrics {
		resp.Series[m] = measurement.Series(byDevice, d, m)
	}
	for id, dms := range byDevice {
		resp.Stats[id] = measurement.Summary(dms)

		latest := make(map[threshold.Metric]latestReading)
		for _, dm := range dms {
			for m, v := range dm.ValueMap() {
				v := v
				latest[m] = latestReading{Value: v, Percentage: normalize.Normalize(d, m, &v)}
			}
		}
		resp.Latest[id] = latest
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	d, ok := domainParam(w, r)
	if !ok {
		return
	}

	format := chi.URLParam(r, "format")
	if format != "csv" && format != "xlsx" {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown export format %q", format))
		return
	}

	ms, start, _, ok := s.fetchHistory(w, r, d)
	if !ok {
		return
	}
	rows := export.Rows(ms)

	filename := fmt.Sprintf("%s-%s.%s", d, start.Format("20060102T1504"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	var err error
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		err = export.WriteCSV(w, rows)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = export.WriteXLSX(w, d, rows)
	}
	if err != nil {
		s.errorf(r, "export failed", err)
	}
}
