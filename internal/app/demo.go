package app

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-encounter-engine/internal/directory"
	"github.com/hackgods/clinic-encounter-engine/internal/reference"
	"github.com/hackgods/clinic-encounter-engine/internal/schedule"
)

var demoInsurers = []string{"Acme Health", "Unity Care", "Northwind Mutual"}

// DemoData sizes the generated directory used by the memory and redis
// backends, where no Postgres directory exists.
type DemoData struct {
	Seed          uint64
	Practitioners int
	Patients      int
}

// Load fills dir and sched with fake practitioners and patients. The same
// Seed always produces the same names and ids.
func (d DemoData) Load(dir *directory.Memory, sched *schedule.Static) {
	faker := gofakeit.New(d.Seed)
	now := time.Now().UTC()

	specialties := reference.Specialties()
	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	morning := schedule.Generate(weekdays, "08:00", "12:00", 30*time.Minute)
	afternoon := schedule.Generate(weekdays, "13:00", "17:00", 30*time.Minute)

	for i := 0; i < d.Practitioners; i++ {
		id := fakeUUID(faker)
		specialty := specialties[faker.Number(0, len(specialties)-1)].Name
		dir.PutPractitioner(directory.Practitioner{
			ID:        id,
			Name:      "Dr. " + faker.Name(),
			Specialty: &specialty,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if i%2 == 0 {
			sched.Set(id, morning)
		} else {
			sched.Set(id, afternoon)
		}
	}

	for i := 0; i < d.Patients; i++ {
		email := faker.Email()
		p := directory.Patient{
			ID:        fakeUUID(faker),
			Name:      faker.Name(),
			Email:     &email,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if faker.Bool() {
			insurer := demoInsurers[faker.Number(0, len(demoInsurers)-1)]
			p.HasInsurance = true
			p.InsuranceProvider = &insurer
		}
		dir.PutPatient(p)
	}
}

func fakeUUID(faker *gofakeit.Faker) uuid.UUID {
	id, err := uuid.Parse(faker.UUID())
	if err != nil {
		return uuid.New()
	}
	return id
}
