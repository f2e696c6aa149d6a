package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/barangay/bhc/internal/domain/identity"
	"github.com/barangay/bhc/internal/domain/scheduling"
)

// ---------------------------------------------------------------------------
// SeedConfig
// ---------------------------------------------------------------------------

// SeedConfig controls the volume and shape of the generated demo data.
type SeedConfig struct {
	Patients     int    `json:"patients"`
	Doctors      int    `json:"doctors"`
	Nurses       int    `json:"nurses"`
	Barangay     string `json:"barangay"`
	Municipality string `json:"municipality"`
	Province     string `json:"province"`
	Seed         int64  `json:"seed"`
}

// DefaultSeedConfig returns the configuration used by `tenant seed`.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Patients:     50,
		Doctors:      2,
		Nurses:       3,
		Barangay:     "San Isidro",
		Municipality: "Tanay",
		Province:     "Rizal",
		Seed:         1,
	}
}

// SeedResult summarizes one seeding run.
type SeedResult struct {
	Patients  int           `json:"patients"`
	Staff     int           `json:"staff"`
	Schedules int           `json:"schedules"`
	Duration  time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// Reference data
// ---------------------------------------------------------------------------

var (
	maleFirstNames = []string{
		"Jose", "Juan", "Andres", "Emilio", "Antonio", "Ramon", "Mark", "John Paul",
		"Christian", "Carlo", "Miguel", "Paolo", "Rodel", "Jericho", "Noel",
	}
	femaleFirstNames = []string{
		"Maria", "Ana", "Rosario", "Josefina", "Lourdes", "Kristine", "Angelica",
		"Mary Grace", "Jocelyn", "Liza", "Camille", "Teresita", "Divina", "Rowena",
	}
	lastNames = []string{
		"Santos", "Reyes", "Cruz", "Bautista", "Ocampo", "Garcia", "Mendoza",
		"Torres", "Dela Cruz", "Villanueva", "Ramos", "Aquino", "Castillo",
		"Navarro", "Domingo", "Salazar", "Manalo", "Pascual",
	}
	civilStatuses = []string{"single", "married", "married", "widowed", "live_in"}
	bloodTypes    = []string{"O+", "O+", "A+", "B+", "AB+", "O-"}
	allergies     = []string{"Penicillin", "Seafood", "Sulfa drugs", "Peanuts"}
	streets       = []string{"Rizal St.", "Mabini St.", "Bonifacio Ave.", "Luna St.", "Del Pilar St."}
	specialties   = []string{"Family Medicine", "Internal Medicine", "Pediatrics", "General Practice"}
)

// ---------------------------------------------------------------------------
// Generator
// ---------------------------------------------------------------------------

// Generator produces deterministic demo records. The same seed yields the
// same records.
type Generator struct {
	rng *rand.Rand
	cfg SeedConfig
	now time.Time
}

// NewGenerator returns a generator for cfg. A zero seed picks a time-based one.
func NewGenerator(cfg SeedConfig, now time.Time) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed)), cfg: cfg, now: now}
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *Generator) chance(percent int) bool {
	return g.rng.Intn(100) < percent
}

// birthDate returns a birth date for someone aged minAge to maxAge today.
func (g *Generator) birthDate(minAge, maxAge int) scheduling.Date {
	span := (maxAge - minAge + 1) * 365
	return scheduling.DateOf(g.now.AddDate(-minAge, 0, -g.rng.Intn(span)))
}

// mobile returns a Philippine mobile number such as 0917 123 4567.
func (g *Generator) mobile() string {
	return fmt.Sprintf("09%02d %03d %04d", 15+g.rng.Intn(85), g.rng.Intn(1000), g.rng.Intn(10000))
}

func (g *Generator) philHealth() string {
	return fmt.Sprintf("%02d-%09d-%d", g.rng.Intn(100), g.rng.Intn(1_000_000_000), g.rng.Intn(10))
}

// Patient returns an unsaved patient living in the configured barangay.
// Children get no civil status, contact number or PhilHealth number.
func (g *Generator) Patient() *identity.Patient {
	sex := lo.Ternary(g.rng.Intn(2) == 0, identity.SexMale, identity.SexFemale)
	first := g.pick(lo.Ternary(sex == identity.SexMale, maleFirstNames, femaleFirstNames))
	minor := g.chance(30)
	var born scheduling.Date
	if minor {
		born = g.birthDate(0, 17)
	} else {
		born = g.birthDate(18, 85)
	}

	p := &identity.Patient{
		FirstName:    first,
		MiddleName:   lo.ToPtr(g.pick(lastNames)),
		LastName:     g.pick(lastNames),
		Sex:          sex,
		BirthDate:    born,
		AddressLine:  lo.ToPtr(fmt.Sprintf("%d %s", 1+g.rng.Intn(300), g.pick(streets))),
		Purok:        lo.ToPtr(fmt.Sprintf("Purok %d", 1+g.rng.Intn(7))),
		Barangay:     lo.EmptyableToPtr(g.cfg.Barangay),
		Municipality: lo.EmptyableToPtr(g.cfg.Municipality),
		Province:     lo.EmptyableToPtr(g.cfg.Province),
		BloodType:    lo.ToPtr(g.pick(bloodTypes)),
		Active:       true,
	}
	p.HouseholdNumber = lo.ToPtr(fmt.Sprintf("HH-%s-%04d", (*p.Purok)[len(*p.Purok)-1:], 1+g.rng.Intn(500)))

	if !minor {
		p.CivilStatus = lo.ToPtr(g.pick(civilStatuses))
		p.ContactNumber = lo.ToPtr(g.mobile())
		if g.chance(70) {
			p.PhilHealthNumber = lo.ToPtr(g.philHealth())
		}
	}
	if g.chance(15) {
		p.Allergies = lo.ToPtr(g.pick(allergies))
	}
	p.EmergencyContactName = lo.ToPtr(g.pick(femaleFirstNames) + " " + p.LastName)
	p.EmergencyContactNumber = lo.ToPtr(g.mobile())
	return p
}

// Staff returns an unsaved staff member. Doctors carry a PRC license number
// and a specialization.
func (g *Generator) Staff(role string) *identity.Staff {
	st := &identity.Staff{
		Role:          role,
		FirstName:     g.pick(lo.Ternary(g.chance(50), maleFirstNames, femaleFirstNames)),
		LastName:      g.pick(lastNames),
		ContactNumber: lo.ToPtr(g.mobile()),
		Active:        true,
	}
	if role == identity.StaffDoctor {
		st.LicenseNumber = lo.ToPtr(fmt.Sprintf("%07d", g.rng.Intn(10_000_000)))
		st.Specialization = lo.ToPtr(g.pick(specialties))
	}
	return st
}

// Availability returns a weekday schedule for doctorID. Every doctor works
// Monday to Friday; some also hold Saturday clinics and the day starts at
// 08:00 or 09:00.
func (g *Generator) Availability(doctorID uuid.UUID) *scheduling.DoctorAvailability {
	start := scheduling.NewTimeOfDay(8+g.rng.Intn(2), 0)
	return &scheduling.DoctorAvailability{
		DoctorID:    doctorID,
		Monday:      true,
		Tuesday:     true,
		Wednesday:   true,
		Thursday:    true,
		Friday:      true,
		Saturday:    g.chance(30),
		StartTime:   start,
		EndTime:     start.Add(8 * 60),
		IsAvailable: true,
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Directory stores patients and staff. *identity.Service satisfies it.
type Directory interface {
	RegisterPatient(ctx context.Context, p *identity.Patient) error
	CreateStaff(ctx context.Context, st *identity.Staff) error
}

// Scheduler stores doctor clinic hours. *scheduling.Service satisfies it.
type Scheduler interface {
	SetAvailability(ctx context.Context, a *scheduling.DoctorAvailability) error
}

// Seeder writes generated records through the domain services so the usual
// validation and numbering apply.
type Seeder struct {
	directory Directory
	schedule  Scheduler
	config    SeedConfig
	logger    zerolog.Logger
	now       func() time.Time
}

type Option func(*Seeder)

func WithLogger(l zerolog.Logger) Option { return func(s *Seeder) { s.logger = l } }

func NewSeeder(directory Directory, schedule Scheduler, config SeedConfig, opts ...Option) *Seeder {
	s := &Seeder{
		directory: directory,
		schedule:  schedule,
		config:    config,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run creates the doctors with their schedules, then the nurses, then the
// patients. It stops at the first failure; records written before it stay.
func (s *Seeder) Run(ctx context.Context) (*SeedResult, error) {
	if s.config.Patients < 0 || s.config.Doctors < 0 || s.config.Nurses < 0 {
		return nil, fmt.Errorf("seed counts must not be negative")
	}
	start := s.now()
	gen := NewGenerator(s.config, start)
	result := &SeedResult{}

	for i := 0; i < s.config.Doctors; i++ {
		doc := gen.Staff(identity.StaffDoctor)
		if err := s.directory.CreateStaff(ctx, doc); err != nil {
			return result, fmt.Errorf("create doctor: %w", err)
		}
		result.Staff++
		if err := s.schedule.SetAvailability(ctx, gen.Availability(doc.ID)); err != nil {
			return result, fmt.Errorf("set availability for %s: %w", doc.ID, err)
		}
		result.Schedules++
	}

	for i := 0; i < s.config.Nurses; i++ {
		if err := s.directory.CreateStaff(ctx, gen.Staff(identity.StaffNurse)); err != nil {
			return result, fmt.Errorf("create nurse: %w", err)
		}
		result.Staff++
	}

	for i := 0; i < s.config.Patients; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.directory.RegisterPatient(ctx, gen.Patient()); err != nil {
			return result, fmt.Errorf("register patient %d: %w", i+1, err)
		}
		result.Patients++
	}

	result.Duration = s.now().Sub(start)
	s.logger.Info().
		Int("patients", result.Patients).
		Int("staff", result.Staff).
		Int("schedules", result.Schedules).
		Dur("duration", result.Duration).
		Msg("demo data seeded")
	return result, nil
}
