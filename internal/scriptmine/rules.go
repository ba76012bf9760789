package scriptmine

import "regexp"

type Dialect string

const (
	DialectPostman Dialect = "postman"
	DialectBruno   Dialect = "bruno"
)

type Op int

const (
	OpWrite Op = iota
	OpRead
)

// Rule is one recognised variable access idiom. NameGroup and ExprGroup are
// submatch indexes; ExprGroup is zero for reads.
type Rule struct {
	Name      string
	Dialect   Dialect
	Op        Op
	Pattern   *regexp.Regexp
	NameGroup int
	ExprGroup int
	// Produces marks writes that make a request a correlation producer.
	// Other writes still make the name runtime-only.
	Produces bool
}

// Rules is scanned in order. Supporting another scripting dialect means
// adding rows here.
var Rules = []Rule{
	{
		Name:      "pm-scope-set",
		Dialect:   DialectPostman,
		Op:        OpWrite,
		Pattern:   regexp.MustCompile(`pm\.(environment|globals|collectionVariables)\.set\s*\(\s*["']([^"']+)["']\s*,\s*([^)]+)\)`),
		NameGroup: 2,
		ExprGroup: 3,
		Produces:  true,
	},
	{
		Name:      "pm-variables-set",
		Dialect:   DialectPostman,
		Op:        OpWrite,
		Pattern:   regexp.MustCompile(`pm\.variables\.set\s*\(\s*["']([^"']+)["']\s*,\s*([^)]+)\)`),
		NameGroup: 1,
		ExprGroup: 2,
	},
	{
		Name:      "bru-set-var",
		Dialect:   DialectBruno,
		Op:        OpWrite,
		Pattern:   regexp.MustCompile(`bru\.setVar\s*\(\s*["']([^"']+)["']\s*,\s*([^)]+)\)`),
		NameGroup: 1,
		ExprGroup: 2,
		Produces:  true,
	},
	{
		Name:      "bru-set-env-var",
		Dialect:   DialectBruno,
		Op:        OpWrite,
		Pattern:   regexp.MustCompile(`bru\.setEnvVar\s*\(\s*["']([^"']+)["']\s*,\s*([^)]+)\)`),
		NameGroup: 1,
		ExprGroup: 2,
	},
	{
		Name:      "pm-get",
		Dialect:   DialectPostman,
		Op:        OpRead,
		Pattern:   regexp.MustCompile(`pm\.(environment|globals|collectionVariables|variables)\.get\s*\(\s*["']([^"']+)["']\s*\)`),
		NameGroup: 2,
	},
	{
		Name:      "bru-get-var",
		Dialect:   DialectBruno,
		Op:        OpRead,
		Pattern:   regexp.MustCompile(`bru\.getVar\s*\(\s*["']([^"']+)["']\s*\)`),
		NameGroup: 1,
	},
	{
		Name:      "bru-get-env-var",
		Dialect:   DialectBruno,
		Op:        OpRead,
		Pattern:   regexp.MustCompile(`bru\.getEnvVar\s*\(\s*["']([^"']+)["']\s*\)`),
		NameGroup: 1,
	},
}
