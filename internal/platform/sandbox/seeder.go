// Package sandbox runs an in-memory console backend with reproducible
// synthetic data, for demos, developer on-boarding and end-to-end tests.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/schoolhealth/nurse-console/internal/console"
	"github.com/schoolhealth/nurse-console/internal/domain/inventory"
	"github.com/schoolhealth/nurse-console/internal/domain/medrequest"
	"github.com/schoolhealth/nurse-console/internal/domain/vaccination"
	"github.com/schoolhealth/nurse-console/internal/platform/auth"
	"github.com/schoolhealth/nurse-console/internal/platform/envelope"
	"github.com/schoolhealth/nurse-console/internal/platform/gateway"
)

const seederActor = "sandbox-seeder"

// SeedConfig controls the volume of generated records.
type SeedConfig struct {
	InventoryItems      int   `json:"inventoryItems"`
	MedicationRequests  int   `json:"medicationRequests"`
	VaccinationSessions int   `json:"vaccinationSessions"`
	Seed                int64 `json:"seed"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		InventoryItems:      30,
		MedicationRequests:  23,
		VaccinationSessions: 12,
	}
}

// SeedResult summarizes one seed run.
type SeedResult struct {
	InventoryItems      int           `json:"inventoryItems"`
	MedicationRequests  int           `json:"medicationRequests"`
	VaccinationSessions int           `json:"vaccinationSessions"`
	Transitions         int           `json:"transitions"`
	Duration            time.Duration `json:"duration"`
}

// Services are the domain services backing the sandbox.
type Services struct {
	Inventory *inventory.Service
	Requests  *medrequest.Service
	Sessions  *vaccination.Service
}

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

var (
	medicationNames = []string{"Paracetamol", "Ibuprofen", "Cetirizine", "Salbutamol inhaler", "Loratadine", "Oral rehydration salts", "Hydrocortisone cream"}
	dosages         = []string{"250mg", "500mg", "10mg", "2 puffs", "5ml", "1 sachet"}
	forms           = []string{"Tablet", "Syrup", "Inhaler", "Cream", "Sachet"}
	supplyNames     = []string{"Gauze pads", "Adhesive bandages", "Disposable gloves", "Ice packs", "Thermometer covers", "Face masks"}
	units           = []string{"box", "pack", "pair", "piece"}
	givenNames      = []string{"Mai", "An", "Minh", "Linh", "Sofia", "Noah", "Amara", "Kenji", "Priya", "Lucas"}
	familyNames     = []string{"Tran", "Nguyen", "Garcia", "Okafor", "Sato", "Patel", "Silva", "Novak"}
	frequencies     = []string{"once daily", "twice daily", "as needed", "every 6 hours"}
	timesOfDay      = []string{"morning", "noon", "afternoon"}
	vaccines        = []string{"HPV", "Influenza", "MMR", "Tdap", "Hepatitis B"}
	classes         = []string{"1A", "1B", "3A", "3B", "5A", "7A", "7B", "9A"}
	priorities      = []string{"Low", "Normal", "Normal", "High", "Critical"}
)

// DataGenerator produces reproducible records from a seed.
type DataGenerator struct {
	rng     *rand.Rand
	counter uint64
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) nextID() uuid.UUID {
	g.counter++
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		return uuid.New()
	}
	return id
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) personName() string {
	return g.pick(givenNames) + " " + g.pick(familyNames)
}

func (g *DataGenerator) daysFrom(now time.Time, min, max int) time.Time {
	return now.Add(time.Duration(min+g.rng.Intn(max-min+1)) * 24 * time.Hour).Truncate(time.Hour)
}

// GenerateItem produces a medication or supply item valid at now.
func (g *DataGenerator) GenerateItem(now time.Time) inventory.Item {
	it := inventory.Item{
		ID:       g.nextID(),
		Quantity: 1 + g.rng.Intn(120),
		Priority: inventory.Priority(g.pick(priorities)),
	}
	if g.rng.Intn(3) > 0 {
		it.Kind = inventory.KindMedication
		it.Name = g.pick(medicationNames)
		it.Dosage = g.pick(dosages)
		it.Form = g.pick(forms)
	} else {
		it.Kind = inventory.KindSupply
		it.Name = g.pick(supplyNames)
		it.Unit = g.pick(units)
	}
	expiry := g.daysFrom(now, 3, 540)
	it.ExpiryDate = &expiry
	if it.Priority == inventory.PriorityHigh || it.Priority == inventory.PriorityCritical {
		it.Urgent = g.rng.Intn(2) == 0
		it.Justification = "Stock needed before the next term"
	}
	return it
}

// GenerateRequest produces a pending medication request with one to three
// lines.
func (g *DataGenerator) GenerateRequest(now time.Time) medrequest.Request {
	family := g.pick(familyNames)
	r := medrequest.Request{
		ID:          g.nextID(),
		StudentID:   g.nextID(),
		StudentName: g.pick(givenNames) + " " + family,
		ParentID:    g.nextID(),
		ParentName:  g.pick(givenNames) + " " + family,
		Priority:    medrequest.Priority(g.pick(priorities)),
	}
	for i, n := 0, 1+g.rng.Intn(3); i < n; i++ {
		expiry := g.daysFrom(now, 30, 720)
		r.Lines = append(r.Lines, medrequest.Line{
			Name:         g.pick(medicationNames),
			Dosage:       g.pick(dosages),
			QuantitySent: 1 + g.rng.Intn(20),
			Frequency:    g.pick(frequencies),
			TimesOfDay:   []string{g.pick(timesOfDay)},
			ExpiryDate:   &expiry,
		})
	}
	return r
}

// GenerateSession produces a vaccination session planned after now.
func (g *DataGenerator) GenerateSession(now time.Time) vaccination.Session {
	vaccine := g.pick(vaccines)
	target := []string{g.pick(classes)}
	if g.rng.Intn(2) == 0 {
		target = append(target, g.pick(classes))
	}
	total := 20 + g.rng.Intn(60)
	return vaccination.Session{
		ID:               g.nextID(),
		Name:             fmt.Sprintf("%s session %d", vaccine, g.counter),
		VaccineType:      vaccine,
		TargetClasses:    target,
		ScheduledAt:      g.daysFrom(now, 7, 120).Add(8 * time.Hour),
		TotalStudents:    total,
		ApprovedStudents: g.rng.Intn(total + 1),
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

type step struct {
	action  console.Action
	payload console.TransitionPayload
}

var (
	approveStep  = step{console.ActionApprove, console.TransitionPayload{Notes: "Checked and approved"}}
	rejectStep   = step{console.ActionReject, console.TransitionPayload{Reason: "Missing prescription details"}}
	declineStep  = step{console.ActionDecline, console.TransitionPayload{Reason: "Clashes with the exam timetable"}}
	finalizeStep = step{console.ActionFinalize, console.TransitionPayload{}}
	completeStep = step{console.ActionComplete, console.TransitionPayload{}}
)

// Seeder creates generated records through the domain services and walks a
// share of them through their workflows so every status is represented.
type Seeder struct {
	generator *DataGenerator
	config    SeedConfig
	clock     clock.PassiveClock
	logger    zerolog.Logger
}

func NewSeeder(config SeedConfig, clk clock.PassiveClock, logger zerolog.Logger) *Seeder {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Seeder{
		generator: NewDataGenerator(config.Seed),
		config:    config,
		clock:     clk,
		logger:    logger,
	}
}

// Generate creates all records according to the config.
func (s *Seeder) Generate(ctx context.Context, svcs Services) (*SeedResult, error) {
	start := time.Now()
	now := s.clock.Now()
	result := &SeedResult{}

	for i := 0; i < s.config.InventoryItems; i++ {
		it := s.generator.GenerateItem(now)
		if err := svcs.Inventory.CreateItem(ctx, &it); err != nil {
			return nil, fmt.Errorf("seed inventory item %d: %w", i, err)
		}
		result.InventoryItems++

		var steps []step
		switch i % 5 {
		case 1, 3:
			steps = []step{approveStep}
		case 2:
			steps = []step{rejectStep}
		}
		for _, st := range steps {
			if _, err := svcs.Inventory.Transition(ctx, it.ID, st.action, st.payload, seederActor); err != nil {
				return nil, fmt.Errorf("seed inventory %s: %w", st.action, err)
			}
			result.Transitions++
		}
	}

	for i := 0; i < s.config.MedicationRequests; i++ {
		r := s.generator.GenerateRequest(now)
		if err := svcs.Requests.CreateRequest(ctx, &r); err != nil {
			return nil, fmt.Errorf("seed medication request %d: %w", i, err)
		}
		result.MedicationRequests++

		var steps []step
		var backend []console.Action
		switch i % 6 {
		case 1:
			steps = []step{approveStep}
		case 2:
			steps = []step{rejectStep}
		case 3:
			steps, backend = []step{approveStep}, []console.Action{console.ActionActivate}
		case 4:
			steps, backend = []step{approveStep}, []console.Action{console.ActionActivate, console.ActionComplete}
		case 5:
			steps, backend = []step{approveStep}, []console.Action{console.ActionActivate, console.ActionDiscontinue}
		}
		for _, st := range steps {
			if _, err := svcs.Requests.Transition(ctx, r.ID, st.action, st.payload, seederActor); err != nil {
				return nil, fmt.Errorf("seed medication request %s: %w", st.action, err)
			}
			result.Transitions++
		}
		for _, action := range backend {
			if _, err := svcs.Requests.Advance(ctx, r.ID, action); err != nil {
				return nil, fmt.Errorf("seed medication request %s: %w", action, err)
			}
			result.Transitions++
		}
	}

	for i := 0; i < s.config.VaccinationSessions; i++ {
		sess := s.generator.GenerateSession(now)
		if err := svcs.Sessions.CreateSession(ctx, &sess); err != nil {
			return nil, fmt.Errorf("seed vaccination session %d: %w", i, err)
		}
		result.VaccinationSessions++

		var steps []step
		switch i % 5 {
		case 1:
			steps = []step{approveStep}
		case 2:
			steps = []step{approveStep, finalizeStep}
		case 3:
			steps = []step{approveStep, finalizeStep, completeStep}
		case 4:
			steps = []step{declineStep}
		}
		for _, st := range steps {
			if _, err := svcs.Sessions.Transition(ctx, sess.ID, st.action, st.payload, seederActor); err != nil {
				return nil, fmt.Errorf("seed vaccination session %s: %w", st.action, err)
			}
			result.Transitions++
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Int("inventory", result.InventoryItems).
		Int("medication_requests", result.MedicationRequests).
		Int("vaccination_sessions", result.VaccinationSessions).
		Int("transitions", result.Transitions).
		Dur("duration", result.Duration).
		Msg("sandbox seeded")
	return result, nil
}

// ExportNDJSON writes every record of kind as newline-delimited JSON.
func ExportNDJSON(ctx context.Context, w io.Writer, svcs Services, kind string) error {
	var records []interface{}
	switch kind {
	case gateway.KindInventory:
		items, _, err := svcs.Inventory.SearchItems(ctx, nil, 0, 0)
		if err != nil {
			return err
		}
		for _, it := range items {
			records = append(records, it)
		}
	case gateway.KindMedicationRequests:
		reqs, _, err := svcs.Requests.SearchRequests(ctx, nil, 0, 0)
		if err != nil {
			return err
		}
		for _, r := range reqs {
			records = append(records, r)
		}
	case gateway.KindVaccinationSessions:
		sessions, _, err := svcs.Sessions.SearchSessions(ctx, nil, 0, 0)
		if err != nil {
			return err
		}
		for _, s := range sessions {
			records = append(records, s)
		}
	default:
		return fmt.Errorf("unknown resource kind %q", kind)
	}

	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding %s: %w", kind, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// SeedHandler
// ---------------------------------------------------------------------------

// SeedHandler exposes seeding and export to administrators.
type SeedHandler struct {
	svcs   Services
	clock  clock.PassiveClock
	logger zerolog.Logger
	mu     sync.Mutex
}

func NewSeedHandler(svcs Services, clk clock.PassiveClock, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{svcs: svcs, clock: clk, logger: logger}
}

func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	admin := g.Group("/sandbox", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/seed", h.handleSeed)
	admin.GET("/export/:kind", h.handleExport)
}

func (h *SeedHandler) handleSeed(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg := DefaultSeedConfig()
	if err := c.Bind(&cfg); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, err.Error())
	}
	if cfg.InventoryItems < 0 || cfg.MedicationRequests < 0 || cfg.VaccinationSessions < 0 {
		return envelope.Fail(c, http.StatusBadRequest, "record counts must not be negative")
	}

	result, err := NewSeeder(cfg, h.clock, h.logger).Generate(c.Request().Context(), h.svcs)
	if err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, result, "Sandbox seeded")
}

func (h *SeedHandler) handleExport(c echo.Context) error {
	kind := c.Param("kind")
	switch kind {
	case gateway.KindInventory, gateway.KindMedicationRequests, gateway.KindVaccinationSessions:
	default:
		return envelope.Fail(c, http.StatusNotFound, "unknown resource kind")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().WriteHeader(http.StatusOK)
	return ExportNDJSON(c.Request().Context(), c.Response().Writer, h.svcs, kind)
}
