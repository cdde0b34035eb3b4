package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vanara-sim/internal/detection"
	"vanara-sim/internal/fleet"
	"vanara-sim/internal/presence"
	"vanara-sim/internal/selfdestruct"
	"vanara-sim/internal/sim"
	"vanara-sim/internal/station"
	"vanara-sim/internal/telemetry"
)

const maxFrameBytes = 16 << 20

// Server exposes the engine to operators over HTTP.
type Server struct {
	Engine *sim.Engine
	Events *sim.Broadcaster
	log    *slog.Logger
	mux    *http.ServeMux
	done   chan struct{}
}

// NewServer builds the route table. events may be nil, which disables /ws.
func NewServer(engine *sim.Engine, events *sim.Broadcaster, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{Engine: engine, Events: events, log: log, mux: http.NewServeMux(), done: make(chan struct{})}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /fleet", s.handleFleet)
	s.mux.HandleFunc("GET /stations", s.handleStations)
	s.mux.HandleFunc("POST /stations/{id}/status", s.handleStationStatus)
	s.mux.HandleFunc("POST /bots/{id}/threat", s.handleBotThreat)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /detections", s.handleDetections)
	s.mux.HandleFunc("GET /detections.json", s.handleExportJSON)
	s.mux.HandleFunc("GET /detections.csv", s.handleExportCSV)
	s.mux.HandleFunc("GET /alerts", s.handleAlerts)
	s.mux.HandleFunc("POST /alerts/{id}/ack", s.handleAck)
	s.mux.HandleFunc("GET /threat-log", s.handleThreatLog)
	s.mux.HandleFunc("GET /threat-log/{id}", s.handleThreatLogEntry)
	s.mux.HandleFunc("GET /self-destruct", s.handleSelfDestruct)
	s.mux.HandleFunc("POST /self-destruct/arm", s.handleArm)
	s.mux.HandleFunc("POST /self-destruct/disarm", s.handleDisarm)
	s.mux.HandleFunc("POST /captured", s.handleCaptured)
	s.mux.HandleFunc("GET /anomaly", s.handleAnomaly)
	s.mux.HandleFunc("POST /anomaly/replay", s.handleAnomalyReplay)
	s.mux.HandleFunc("POST /anomaly/pause", s.handleAnomalyPause)
	s.mux.HandleFunc("GET /controls", s.handleGetControls)
	s.mux.HandleFunc("POST /controls", s.handleControls)
	s.mux.HandleFunc("POST /stealth", s.handleStealth)
	s.mux.HandleFunc("POST /threat-simulation", s.handleThreatSimulation)
	s.mux.HandleFunc("POST /webhook", s.handleWebhook)
	s.mux.HandleFunc("POST /register-threat", s.handleRegisterThreat)
	s.mux.HandleFunc("POST /sync-logs", s.handleSyncLogs)
	s.mux.HandleFunc("POST /presence/frame", s.handleFrame)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("admin server listening", "addr", addr)

	select {
	case err := <-errCh:
		close(s.done)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	close(s.done)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin shutdown: %w", err)
	}
	s.log.Info("admin server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps engine rejections onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, selfdestruct.ErrNotCaptured),
		errors.Is(err, selfdestruct.ErrAlreadyArmed),
		errors.Is(err, sim.ErrWebhookInvalid):
		return http.StatusConflict
	case errors.Is(err, sim.ErrUnknownBot),
		errors.Is(err, station.ErrUnknownStation):
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	s.log.Debug("request rejected", "status", status, "err", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeBody reads an optional JSON body into v.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bots := fleet.Filter(s.Engine.Fleet(), q.Get("species"), q.Get("terrain"), telemetry.Threat(q.Get("threat")))
	if bots == nil {
		bots = []telemetry.Bot{}
	}
	writeJSON(w, http.StatusOK, bots)
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Stations())
}

func (s *Server) handleStationStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status station.Status `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Engine.SetStationStatus(r.PathValue("id"), body.Status); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Stations())
}

func (s *Server) handleBotThreat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Threat telemetry.Threat `json:"threat"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	if err := s.Engine.SetBotThreat(id, body.Threat); err != nil {
		s.writeError(w, err)
		return
	}
	for _, b := range s.Engine.Fleet() {
		if b.ID == id {
			writeJSON(w, http.StatusOK, b)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Health())
}

func percentParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || v > 100 {
		return 0, fmt.Errorf("%s must be an integer in [0,100]", name)
	}
	return v, nil
}

func (s *Server) filteredDetections(r *http.Request) ([]detection.Detection, error) {
	lo, err := percentParam(r, "min", 0)
	if err != nil {
		return nil, err
	}
	hi, err := percentParam(r, "max", 100)
	if err != nil {
		return nil, err
	}
	out := detection.Filter(s.Engine.Detections(), r.URL.Query().Get("type"), lo, hi)
	if out == nil {
		out = []detection.Detection{}
	}
	return out, nil
}

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	ds, err := s.filteredDetections(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	ds, err := s.filteredDetections(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="detections.json"`)
	if err := detection.ExportJSON(w, ds); err != nil {
		s.log.Error("export json", "err", err)
	}
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	ds, err := s.filteredDetections(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="detections.csv"`)
	if err := detection.ExportCSV(w, ds); err != nil {
		s.log.Error("export csv", "err", err)
	}
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Alerts())
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.Engine.AcknowledgeAlert(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown alert " + id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// threatLogView adds the replay position to each entry.
type threatLogView struct {
	presence.Entry
	ReplaySeek float64 `json:"replaySeek"`
}

func (s *Server) handleThreatLog(w http.ResponseWriter, r *http.Request) {
	entries := s.Engine.ThreatLog()
	out := make([]threatLogView, 0, len(entries))
	for _, e := range entries {
		out = append(out, threatLogView{Entry: e, ReplaySeek: e.ReplaySeek()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleThreatLogEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, ok := s.Engine.ThreatLogEntry(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown threat log entry " + id})
		return
	}
	writeJSON(w, http.StatusOK, threatLogView{Entry: e, ReplaySeek: e.ReplaySeek()})
}

func (s *Server) handleSelfDestruct(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.SelfDestruct())
}

func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BotID string `json:"botId"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Engine.ArmSelfDestruct(body.BotID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.Engine.SelfDestruct())
}

func (s *Server) handleDisarm(w http.ResponseWriter, r *http.Request) {
	if !s.Engine.DisarmSelfDestruct() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "self-destruct is not armed"})
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.SelfDestruct())
}

func (s *Server) handleCaptured(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Captured bool `json:"captured"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	s.Engine.SetCaptured(body.Captured)
	writeJSON(w, http.StatusOK, s.Engine.SelfDestruct())
}

type anomalyStatus struct {
	Active  bool `json:"active"`
	Pending bool `json:"pending"`
}

func (s *Server) anomaly() anomalyStatus {
	return anomalyStatus{Active: s.Engine.AnomalyActive(), Pending: s.Engine.AnomalyPending()}
}

func (s *Server) handleAnomaly(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.anomaly())
}

func (s *Server) handleAnomalyReplay(w http.ResponseWriter, r *http.Request) {
	s.Engine.ReplayAnomaly()
	writeJSON(w, http.StatusAccepted, s.anomaly())
}

func (s *Server) handleAnomalyPause(w http.ResponseWriter, r *http.Request) {
	s.Engine.PauseAnomaly()
	writeJSON(w, http.StatusOK, s.anomaly())
}

func (s *Server) handleGetControls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Controls())
}

func (s *Server) handleControls(w http.ResponseWriter, r *http.Request) {
	cur := s.Engine.Controls()
	body := struct {
		Species string `json:"species"`
		Terrain string `json:"terrain"`
		Stealth *bool  `json:"stealth"`
	}{}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	stealth := cur.Stealth
	if body.Stealth != nil {
		stealth = *body.Stealth
	}
	writeJSON(w, http.StatusOK, s.Engine.SetControls(body.Species, body.Terrain, stealth))
}

func (s *Server) handleStealth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		On bool `json:"on"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	s.Engine.SetStealth(body.On)
	writeJSON(w, http.StatusOK, s.Engine.Controls())
}

func (s *Server) handleThreatSimulation(w http.ResponseWriter, r *http.Request) {
	s.Engine.SimulateThreat()
	writeJSON(w, http.StatusAccepted, s.Engine.Controls())
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Engine.SetWebhookURL(body.URL); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": s.Engine.WebhookURL()})
}

func (s *Server) handleRegisterThreat(w http.ResponseWriter, r *http.Request) {
	reg, err := s.Engine.RegisterThreat()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, reg)
}

func (s *Server) handleSyncLogs(w http.ResponseWriter, r *http.Request) {
	p, err := s.Engine.SyncLogs()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{
		"bots":       len(p.Bots),
		"stations":   len(p.Stations),
		"detections": len(p.Detections),
		"alerts":     len(p.Alerts),
	})
}

// handleFrame scans one uploaded video frame. The optional seek query
// parameter is the frame's playback offset in seconds.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	seek := 0.0
	if raw := r.URL.Query().Get("seek"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			s.writeError(w, fmt.Errorf("seek must be a non-negative number"))
			return
		}
		seek = v
	}
	f, err := presence.Decode(http.MaxBytesReader(w, r.Body, maxFrameBytes))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.ScanFrame(f, seek))
}
