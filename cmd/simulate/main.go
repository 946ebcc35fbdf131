package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-encounter-engine/internal/app"
	"github.com/hackgods/clinic-encounter-engine/internal/civil"
	"github.com/hackgods/clinic-encounter-engine/internal/config"
	"github.com/hackgods/clinic-encounter-engine/internal/db"
	"github.com/hackgods/clinic-encounter-engine/internal/directory"
	"github.com/hackgods/clinic-encounter-engine/internal/schedule"
)

type simConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	DaysAhead     int
	CancelRatio   float64
	CompleteRatio float64
	ReadRatio     float64
}

// simulator drives bookings through create, start and complete over HTTP
// while mixing in cancellations and reads.
type simulator struct {
	cfg    simConfig
	client *http.Client
	logger zerolog.Logger

	practitioners []uuid.UUID
	patients      []uuid.UUID

	booked     idBag
	inProgress idBag
	metrics    metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		stderrLogger := zerolog.New(os.Stderr)
		stderrLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := app.NewLogger(baseCfg, "simulate")

	cfg := loadSimConfig()
	if cfg.Workers <= 0 || cfg.Duration <= 0 {
		logger.Fatal().Int("workers", cfg.Workers).Dur("duration", cfg.Duration).Msg("SIM_WORKERS and SIM_DURATION must be positive")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	practitioners, patients, err := loadPeople(ctx, baseCfg)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("load directory")
	}
	if len(practitioners) == 0 || len(patients) == 0 {
		logger.Fatal().Msg("directory is empty; run the seed command first")
	}
	logger.Info().
		Int("practitioners", len(practitioners)).
		Int("patients", len(patients)).
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Msg("simulation starting")

	sim := &simulator{
		cfg:           cfg,
		client:        &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
		practitioners: practitioners,
		patients:      patients,
	}
	sim.run()
	sim.metrics.report(os.Stdout, cfg.Duration, cfg.Workers)
}

func loadSimConfig() simConfig {
	cfg := simConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		DaysAhead:     getInt("SIM_DAYS_AHEAD", 14),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.1),
		CompleteRatio: getFloat("SIM_COMPLETE_RATIO", 0.8),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
	}
	if cfg.DaysAhead < 1 {
		cfg.DaysAhead = 1
	}
	return cfg
}

// loadPeople reads practitioner and patient ids from Postgres, or regenerates
// the demo directory the in-process backends serve.
func loadPeople(ctx context.Context, cfg config.Config) ([]uuid.UUID, []uuid.UUID, error) {
	if cfg.StoreBackend != config.BackendPostgres {
		dir := directory.NewMemory()
		app.DefaultDemo.Load(dir, schedule.NewStatic())
		docs, _ := dir.ListActivePractitioners(ctx)
		pats, _ := dir.ListActivePatients(ctx)
		return practitionerIDs(docs), patientIDs(pats), nil
	}

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `SELECT id FROM practitioners WHERE active`)
	if err != nil {
		return nil, nil, fmt.Errorf("load practitioners: %w", err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, nil, fmt.Errorf("load practitioners: %w", err)
	}

	rows, err = pool.Query(ctx, `SELECT id FROM patients WHERE active LIMIT 5000`)
	if err != nil {
		return nil, nil, fmt.Errorf("load patients: %w", err)
	}
	pats, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, nil, fmt.Errorf("load patients: %w", err)
	}
	return docs, pats, nil
}

func practitionerIDs(list []directory.Practitioner) []uuid.UUID {
	ids := make([]uuid.UUID, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	return ids
}

func patientIDs(list []directory.Patient) []uuid.UUID {
	ids := make([]uuid.UUID, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	return ids
}

func (s *simulator) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	s.logger.Info().
		Int("left_booked", s.booked.len()).
		Int("left_in_progress", s.inProgress.len()).
		Msg("simulation complete")
}

func (s *simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.cfg.ReadRatio:
			if rng.Intn(2) == 0 {
				s.doDayView(ctx, rng)
			} else {
				s.doHistory(ctx, rng)
			}
		case s.inProgress.len() > 0 && rng.Float64() < s.cfg.CompleteRatio:
			s.doComplete(ctx, rng)
		case s.booked.len() > 0 && rng.Float64() < s.cfg.CancelRatio:
			s.doCancel(ctx, rng)
		case s.booked.len() > 0 && rng.Intn(2) == 0:
			s.doStart(ctx, rng)
		default:
			s.doBook(ctx, rng)
		}
	}
}

func (s *simulator) randomDate(rng *rand.Rand) civil.Date {
	today := civil.DateOf(time.Now())
	return today.AddDays(rng.Intn(s.cfg.DaysAhead))
}

func (s *simulator) doBook(ctx context.Context, rng *rand.Rand) {
	practitioner := s.practitioners[rng.Intn(len(s.practitioners))]
	patient := s.patients[rng.Intn(len(s.patients))]
	date := s.randomDate(rng)

	var avail struct {
		Slots []string `json:"slots"`
	}
	path := fmt.Sprintf("/practitioners/%s/availability?date=%s", practitioner, date)
	if status, _, err := s.call(ctx, http.MethodGet, path, nil, &avail); err != nil || status != http.StatusOK || len(avail.Slots) == 0 {
		return
	}

	body := map[string]string{
		"practitioner_id": practitioner.String(),
		"patient_id":      patient.String(),
		"date":            string(date),
		"time":            avail.Slots[rng.Intn(len(avail.Slots))],
		"procedure_code":  "consultation",
	}
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	status, latency, err := s.call(ctx, http.MethodPost, "/bookings", body, &created)
	s.metrics.book.record(latency, classify(status, err, http.StatusCreated))
	if err == nil && status == http.StatusCreated && created.ID != uuid.Nil {
		s.booked.add(created.ID)
	}
}

func (s *simulator) doStart(ctx context.Context, rng *rand.Rand) {
	id, ok := s.booked.take(rng)
	if !ok {
		return
	}
	var resp struct {
		Encounter *struct {
			ID uuid.UUID `json:"id"`
		} `json:"encounter"`
	}
	status, latency, err := s.call(ctx, http.MethodPost, "/bookings/"+id.String()+"/start", nil, &resp)
	s.metrics.start.record(latency, classify(status, err, http.StatusOK))
	if err == nil && status == http.StatusOK && resp.Encounter != nil {
		s.inProgress.add(resp.Encounter.ID)
	}
}

func (s *simulator) doComplete(ctx context.Context, rng *rand.Rand) {
	id, ok := s.inProgress.take(rng)
	if !ok {
		return
	}
	body := map[string]any{
		"performed_procedures": []string{"consultation"},
		"general_notes":        "simulated visit",
	}
	if rng.Intn(4) == 0 {
		body["allergies"] = []string{"penicillin"}
	}
	status, latency, err := s.call(ctx, http.MethodPost, "/encounters/"+id.String()+"/complete", body, nil)
	s.metrics.complete.record(latency, classify(status, err, http.StatusOK))
}

func (s *simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.booked.take(rng)
	if !ok {
		return
	}
	status, latency, err := s.call(ctx, http.MethodPost, "/bookings/"+id.String()+"/cancel", nil, nil)
	s.metrics.cancel.record(latency, classify(status, err, http.StatusOK))
}

func (s *simulator) doDayView(ctx context.Context, rng *rand.Rand) {
	practitioner := s.practitioners[rng.Intn(len(s.practitioners))]
	path := fmt.Sprintf("/practitioners/%s/day?date=%s", practitioner, s.randomDate(rng))
	status, latency, err := s.call(ctx, http.MethodGet, path, nil, nil)
	s.metrics.dayView.record(latency, classify(status, err, http.StatusOK))
}

func (s *simulator) doHistory(ctx context.Context, rng *rand.Rand) {
	patient := s.patients[rng.Intn(len(s.patients))]
	status, latency, err := s.call(ctx, http.MethodGet, "/patients/"+patient.String()+"/encounters", nil, nil)
	s.metrics.history.record(latency, classify(status, err, http.StatusOK))
}

// call sends one JSON request and decodes the response into out when given.
func (s *simulator) call(ctx context.Context, method, path string, in, out any) (int, time.Duration, error) {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return 0, 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.cfg.APIBaseURL+path, &body)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, err
		}
	}
	return resp.StatusCode, latency, nil
}

func classify(status int, err error, want int) outcome {
	switch {
	case err != nil:
		return outcomeError
	case status == want:
		return outcomeOK
	case status == http.StatusConflict:
		return outcomeConflict
	default:
		return outcomeError
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
