// Package synth generates synthetic replacements for PHI findings. A
// Generator is scoped to a single document: repeated occurrences of the same
// literal map to the same replacement, and all dates shift by one offset so
// relative chronology survives.
package synth

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/phi"
)

var firstNames = []string{
	"Alex", "Jordan", "Taylor", "Morgan", "Casey", "Riley", "Quinn",
	"Avery", "Parker", "Drew", "Jamie", "Sam", "Chris", "Pat", "Robin",
	"Blake", "Sage", "Reese", "Finley", "Hayden", "Dakota", "Emery",
}

var lastNames = []string{
	"Anderson", "Baker", "Clark", "Davis", "Edwards", "Foster", "Green",
	"Harris", "Irving", "Jenkins", "Klein", "Lewis", "Mitchell", "Nelson",
	"O'Connor", "Patterson", "Quinn", "Roberts", "Stevens", "Turner",
}

var streetNames = []string{
	"Oak Lane", "Maple Drive", "Cedar Avenue", "Pine Street",
	"Elm Road", "Birch Way", "Willow Court", "Spruce Boulevard",
}

var cities = []string{
	"Anytown", "Springfield", "Riverside", "Fairview", "Lakewood",
	"Greenville", "Centerville", "Hillcrest", "Pleasanton", "Meadowbrook",
}

var providers = []string{
	"Dr. A. Smith", "Dr. B. Johnson", "Dr. C. Williams", "Dr. D. Brown",
	"Dr. E. Jones", "Dr. F. Garcia", "Dr. G. Miller", "Dr. H. Davis",
}

var emailDomains = []string{"email.com", "mail.org", "example.com"}

const (
	minDateShiftDays = 30
	maxDateShiftDays = 365
)

// Generator produces per-document-consistent synthetic values. It is not
// safe for concurrent use; the pipeline creates one per document.
type Generator struct {
	rng *rand.Rand
	// cache maps category-qualified normalized literals to their
	// replacement, so the same name never gets two fakes in one document.
	cache map[string]string
	// shiftDays is drawn once and applied to every date in the document.
	shiftDays int
	now       time.Time
}

// Option configures a Generator; used by tests to pin randomness.
type Option func(*Generator)

// WithSeed makes the generator deterministic.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}

// WithNow fixes the reference time for relative date generation.
func WithNow(now time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// New creates a Generator for one document. The date-shift offset is drawn
// here and never changes for the generator's lifetime.
func New(opts ...Option) *Generator {
	g := &Generator{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]string),
		now:   time.Now(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.shiftDays = -(g.rng.Intn(maxDateShiftDays-minDateShiftDays+1) + minDateShiftDays)
	return g
}

// ShiftDays exposes the document's date offset for the audit trail.
func (g *Generator) ShiftDays() int { return g.shiftDays }

// Replace returns the synthetic replacement for a finding, reusing prior
// replacements for the same (category, normalized text) key.
func (g *Generator) Replace(f document.Finding) string {
	key := string(f.Category) + ":" + document.NormalizeText(f.Text)
	if cached, ok := g.cache[key]; ok {
		return cached
	}

	out := g.generate(f)
	g.cache[key] = out
	return out
}

func (g *Generator) generate(f document.Finding) string {
	switch f.Category {
	case phi.CategoryPatientName:
		return g.name(f.Subcategory)
	case phi.CategoryDate:
		return g.date(f.Text)
	case phi.CategoryPhoneNumber:
		return g.phone()
	case phi.CategoryFaxNumber:
		return "Fax: " + g.phone()
	case phi.CategoryEmailAddress:
		return g.email()
	case phi.CategorySSN:
		return fmt.Sprintf("%03d-%02d-%04d", g.intn(100, 999), g.intn(10, 99), g.intn(1000, 9999))
	case phi.CategoryMedicalRecordNumber:
		return fmt.Sprintf("MRN-%08d", g.intn(10000000, 99999999))
	case phi.CategoryHealthPlanNumber:
		return g.letters(3) + fmt.Sprintf("%09d", g.intn(100000000, 999999999))
	case phi.CategoryAccountNumber:
		return fmt.Sprintf("ACCT-%09d", g.intn(100000000, 999999999))
	case phi.CategoryLicenseNumber:
		return g.letters(1) + fmt.Sprintf("%08d", g.intn(10000000, 99999999))
	case phi.CategoryGeographicData:
		return g.address(f.Subcategory)
	case phi.CategoryAgeOver89:
		return "90+"
	case phi.CategoryDeviceID:
		return "DEV-" + g.letters(2) + fmt.Sprintf("%06d", g.intn(100000, 999999))
	case phi.CategoryWebURL:
		return "http://example.com/redacted"
	case phi.CategoryIPAddress:
		return fmt.Sprintf("10.%d.%d.%d", g.rng.Intn(256), g.rng.Intn(256), g.rng.Intn(256))
	default:
		return phi.PlaceholderTag(f.Category, f.Subcategory)
	}
}

func (g *Generator) name(subcategory string) string {
	switch subcategory {
	case "first_name":
		return g.pick(firstNames)
	case "last_name":
		return g.pick(lastNames)
	case "provider_name":
		return g.pick(providers)
	default:
		return g.pick(firstNames) + " " + g.pick(lastNames)
	}
}

func (g *Generator) address(subcategory string) string {
	switch subcategory {
	case "zip_code":
		return fmt.Sprintf("%05d", g.intn(10000, 99999))
	case "city":
		return g.pick(cities)
	case "county":
		return g.pick(cities) + " County"
	default:
		return fmt.Sprintf("%d %s", g.intn(100, 9999), g.pick(streetNames))
	}
}

func (g *Generator) phone() string {
	return fmt.Sprintf("(%d) %d-%04d", g.intn(200, 999), g.intn(200, 999), g.intn(1000, 9999))
}

func (g *Generator) email() string {
	return strings.ToLower(g.pick(firstNames)) + "." + strings.ToLower(g.pick(lastNames)) + "@" + g.pick(emailDomains)
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *Generator) intn(lo, hi int) int {
	return g.rng.Intn(hi-lo+1) + lo
}

func (g *Generator) letters(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	out := make([]byte, n)
	for i := range out {
		out[i] = alphabet[g.rng.Intn(len(alphabet))]
	}
	return string(out)
}
