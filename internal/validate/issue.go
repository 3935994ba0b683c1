package validate

// Category classifies a validation message.
type Category string

const (
	CategoryRuleViolation           Category = "RuleViolation"
	CategoryConfigurationIncomplete Category = "ConfigurationIncomplete"
	CategoryCoverage                Category = "CoverageError"
	CategoryPrecondition            Category = "PreconditionError"
	CategoryAdvisory                Category = "Advisory"
)

// Blocking reports whether messages of this category make the flow invalid.
func (c Category) Blocking() bool {
	return c != CategoryAdvisory
}

// Issue is one validation message with its category.
type Issue struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

// Result is the outcome of validating a flow. Errors holds the messages of
// Issues in the same order.
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
	Issues  []Issue  `json:"issues"`
}

// Blocking returns the issues that make the flow invalid.
func (r Result) Blocking() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Category.Blocking() {
			out = append(out, is)
		}
	}
	return out
}

// Count returns how many issues of category c the result holds.
func (r Result) Count(c Category) int {
	n := 0
	for _, is := range r.Issues {
		if is.Category == c {
			n++
		}
	}
	return n
}

type collector struct {
	res Result
}

func newCollector() *collector {
	return &collector{res: Result{IsValid: true, Errors: []string{}, Issues: []Issue{}}}
}

func (c *collector) add(cat Category, msg string) {
	c.res.Issues = append(c.res.Issues, Issue{Category: cat, Message: msg})
	c.res.Errors = append(c.res.Errors, msg)
	if cat.Blocking() {
		c.res.IsValid = false
	}
}
