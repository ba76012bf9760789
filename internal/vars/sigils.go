package vars

import (
	"strconv"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

const fakerSeed = 20240501

// sigilNamespace scopes the name-based GUIDs so each sigil keeps one value.
var sigilNamespace = uuid.MustParse("6f9b1c2e-4d1a-5b7e-9c3f-0a8d2e4b6c10")

type sigil struct {
	name string
	gen  func(f *gofakeit.Faker) string
}

// Fakes are drawn in table order from one seeded faker, so the order of this
// list is part of the output.
var cannedSigils = []sigil{
	{"$randomInt", func(f *gofakeit.Faker) string { return strconv.Itoa(f.IntRange(1, 1000)) }},
	{"$randomEmail", func(f *gofakeit.Faker) string { return strconv.Quote(strings.ToLower(f.Email())) }},
	{"$randomFirstName", func(f *gofakeit.Faker) string { return strconv.Quote(f.FirstName()) }},
	{"$randomLastName", func(f *gofakeit.Faker) string { return strconv.Quote(f.LastName()) }},
	{"$randomFullName", func(f *gofakeit.Faker) string { return strconv.Quote(f.Name()) }},
	{"$randomCity", func(f *gofakeit.Faker) string { return strconv.Quote(f.City()) }},
	{"$randomCountry", func(f *gofakeit.Faker) string { return strconv.Quote(f.Country()) }},
	{"$randomBoolean", func(f *gofakeit.Faker) string { return strconv.FormatBool(f.Bool()) }},
	{"$randomWord", func(f *gofakeit.Faker) string { return strconv.Quote(f.Word()) }},
	{"$randomPhoneNumber", func(f *gofakeit.Faker) string { return strconv.Quote(f.Phone()) }},
	{"$randomUserName", func(f *gofakeit.Faker) string { return strconv.Quote(f.Username()) }},
	{"$randomStreetAddress", func(f *gofakeit.Faker) string { return strconv.Quote(f.Street()) }},
	{"$randomCompanyName", func(f *gofakeit.Faker) string { return strconv.Quote(f.Company()) }},
	{"$randomColor", func(f *gofakeit.Faker) string { return strconv.Quote(strings.ToLower(f.Color())) }},
	{"$randomAlphaNumeric", func(f *gofakeit.Faker) string {
		return strconv.Quote(f.Password(true, false, true, false, false, 10))
	}},
	{"$randomPrice", func(f *gofakeit.Faker) string {
		return strconv.FormatFloat(f.Price(1, 1000), 'f', 2, 64)
	}},
}

var runtimeSigils = map[string]string{
	"$timestamp":        "Math.floor(Date.now() / 1000)",
	"$isoTimestamp":     "new Date().toISOString()",
	"$timestampISO8601": "new Date().toISOString()",
}

var guidSigils = []string{"$guid", "$randomUUID", "$uuid"}

var (
	sigilOnce  sync.Once
	sigilTable map[string]string
)

func buildSigilTable() map[string]string {
	table := make(map[string]string, len(cannedSigils)+len(runtimeSigils)+len(guidSigils))
	for name, expr := range runtimeSigils {
		table[strings.ToLower(name)] = expr
	}
	for _, name := range guidSigils {
		id := uuid.NewSHA1(sigilNamespace, []byte(name))
		table[strings.ToLower(name)] = strconv.Quote(id.String())
	}
	faker := gofakeit.New(fakerSeed)
	for _, s := range cannedSigils {
		table[strings.ToLower(s.name)] = s.gen(faker)
	}
	return table
}

// Literal maps a built-in sigil to a JavaScript expression. Canned values
// are fixed so repeated conversions emit the same text.
func Literal(name string) (string, bool) {
	sigilOnce.Do(func() { sigilTable = buildSigilTable() })
	expr, ok := sigilTable[strings.ToLower(strings.TrimSpace(name))]
	return expr, ok
}

// Sigils lists the known sigil names in a stable order.
func Sigils() []string {
	out := make([]string, 0, len(cannedSigils)+len(runtimeSigils)+len(guidSigils))
	out = append(out, guidSigils...)
	out = append(out, "$timestamp", "$isoTimestamp", "$timestampISO8601")
	for _, s := range cannedSigils {
		out = append(out, s.name)
	}
	return out
}
