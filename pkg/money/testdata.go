package money

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// TestDataGenerator generates realistic subscription test data using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(0),
	}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for
// reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(seed),
	}
}

// TestCharge represents a generated recurring charge.
type TestCharge struct {
	ID       uuid.UUID
	Date     time.Time
	Merchant string
	Amount   *Money
	Plan     string
}

var testMerchants = []string{
	"Netflix", "Spotify", "Disney+", "Dropbox", "Notion",
	"iCloud", "YouTube Premium", "Amazon Prime", "NordVPN", "Coursera",
}

var testPlans = []string{"Basic", "Standard", "Premium", "Family", "Student"}

// Charge generates a single random recurring charge.
func (g *TestDataGenerator) Charge(currency string) TestCharge {
	return TestCharge{
		ID:       uuid.New(),
		Date:     g.faker.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()),
		Merchant: g.faker.RandomString(testMerchants),
		Amount:   g.RandomAmount(currency, 99, 250000),
		Plan:     g.faker.RandomString(testPlans),
	}
}

// Charges generates n random recurring charges.
func (g *TestDataGenerator) Charges(n int, currency string) []TestCharge {
	charges := make([]TestCharge, n)
	for i := range charges {
		charges[i] = g.Charge(currency)
	}
	return charges
}

// RandomAmount generates a Money value between min and max minor units.
func (g *TestDataGenerator) RandomAmount(currency string, minMinor, maxMinor int64) *Money {
	return New(int64(g.faker.Number(int(minMinor), int(maxMinor))), currency)
}
