package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-encounter-engine/internal/civil"
	"github.com/hackgods/clinic-encounter-engine/internal/clinic"
)

type BookingService interface {
	Create(ctx context.Context, in clinic.CreateBookingInput) (*clinic.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*clinic.Booking, error)
	Start(ctx context.Context, id uuid.UUID) (*clinic.Booking, *clinic.Encounter, error)
	Complete(ctx context.Context, id uuid.UUID) (*clinic.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID) (*clinic.Booking, error)
	Reschedule(ctx context.Context, id uuid.UUID, date civil.Date, tod civil.TimeOfDay) (*clinic.Booking, error)
	ListForDay(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]clinic.Booking, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]clinic.Booking, error)
}

type EncounterService interface {
	EnsureForBooking(ctx context.Context, bookingID uuid.UUID, startTime time.Time) (*clinic.Encounter, error)
	CreateAdHoc(ctx context.Context, in clinic.AdHocInput) (*clinic.Encounter, error)
	Get(ctx context.Context, id uuid.UUID) (*clinic.Encounter, error)
	Start(ctx context.Context, id uuid.UUID) (*clinic.Encounter, error)
	Complete(ctx context.Context, id uuid.UUID, in clinic.CompleteInput) (*clinic.Completion, error)
	Cancel(ctx context.Context, id uuid.UUID) (*clinic.Encounter, error)
	AddPractitionerNote(ctx context.Context, id uuid.UUID, text string) (*clinic.Encounter, error)
	AttachCertificate(ctx context.Context, id uuid.UUID, icdCode string, daysOff int) (*clinic.Encounter, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]clinic.Encounter, error)
}

type DayViewer interface {
	DayView(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]clinic.Encounter, error)
}

type AvailabilityResolver interface {
	AvailableSlots(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]civil.TimeOfDay, error)
}

type Clock interface {
	Now() time.Time
}

type RouterConfig struct {
	Bookings     BookingService
	Encounters   EncounterService
	Projector    DayViewer
	Availability AvailabilityResolver
	Clock        Clock
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/reference", func(r chi.Router) {
		r.Get("/procedures", listProceduresHandler())
		r.Get("/materials", listMaterialsHandler())
		r.Get("/exams", listExamsHandler())
		r.Get("/equipment", listEquipmentHandler())
		r.Get("/specialties", listSpecialtiesHandler())
	})

	r.Route("/practitioners/{id}", func(r chi.Router) {
		r.Get("/availability", availabilityHandler(cfg.Availability))
		r.Get("/bookings", practitionerBookingsHandler(cfg.Bookings))
		r.Get("/day", dayViewHandler(cfg.Projector))
	})

	r.Route("/patients/{id}", func(r chi.Router) {
		r.Get("/bookings", patientBookingsHandler(cfg.Bookings))
		r.Get("/encounters", patientEncountersHandler(cfg.Encounters))
	})

	r.Post("/bookings", createBookingHandler(cfg.Bookings))
	r.Route("/bookings/{id}", func(r chi.Router) {
		r.Get("/", getBookingHandler(cfg.Bookings))
		r.Post("/start", startBookingHandler(cfg.Bookings))
		r.Post("/complete", completeBookingHandler(cfg.Bookings))
		r.Post("/cancel", cancelBookingHandler(cfg.Bookings))
		r.Post("/reschedule", rescheduleBookingHandler(cfg.Bookings))
		r.Post("/encounter", ensureEncounterHandler(cfg.Encounters, cfg.Clock))
	})

	r.Post("/encounters", createAdHocHandler(cfg.Encounters))
	r.Route("/encounters/{id}", func(r chi.Router) {
		r.Get("/", getEncounterHandler(cfg.Encounters))
		r.Post("/start", startEncounterHandler(cfg.Encounters))
		r.Post("/complete", completeEncounterHandler(cfg.Encounters))
		r.Post("/cancel", cancelEncounterHandler(cfg.Encounters))
		r.Post("/notes", addNoteHandler(cfg.Encounters))
		r.Post("/certificate", attachCertificateHandler(cfg.Encounters))
	})

	return r
}
