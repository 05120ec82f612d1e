package generator

import (
	"fmt"
	"strings"

	"github.com/Lumos-Labs-HQ/flashseed/internal/apperrors"
	"github.com/Lumos-Labs-HQ/flashseed/internal/schema"
	"github.com/google/uuid"
)

var (
	firstNames = []string{"John", "Jane", "Alice", "Bob", "Charlie", "Diana", "Eve", "Frank", "Grace", "Henry"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez"}
	domains    = []string{"example.com", "test.com", "demo.com", "mail.com"}
	streets    = []string{"Main St", "Oak Ave", "Pine Rd", "Maple Dr", "Cedar Ln", "Elm St", "Park Ave", "Lake Rd"}
	cities     = []string{"Springfield", "Riverside", "Franklin", "Greenville", "Bristol", "Clinton", "Madison", "Georgetown"}
	words      = []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "theta", "lambda", "sigma", "omega"}
	sentences  = []string{
		"This is a sample text generated for testing purposes.",
		"The quick brown fox jumps over the lazy dog.",
		"Software development requires careful planning and execution.",
		"Database design is crucial for application performance.",
		"Synthetic data keeps production records out of test environments.",
	}
)

func init() {
	register("first_last_name", genName, textOnly)
	register("email", genEmail, textOnly)
	register("phone", genPhone, textOnly)
	register("url", genURL, textOnly)
	register("address", genAddress, textOnly)
	register("sentence", pick(sentences), textOnly)
	register("word", pick(words), textOnly)
	register("uuid", genUUID, textOnly)
}

func pick(list []string) Func {
	return func(ctx *Context, _ Params) (any, error) {
		return list[ctx.Rand.Intn(len(list))], nil
	}
}

func genName(ctx *Context, _ Params) (any, error) {
	return firstNames[ctx.Rand.Intn(len(firstNames))] + " " + lastNames[ctx.Rand.Intn(len(lastNames))], nil
}

// genEmail embeds the row index so addresses stay unique within a table.
func genEmail(ctx *Context, p Params) (any, error) {
	domain := p.String("domain", domains[ctx.Rand.Intn(len(domains))])
	first := strings.ToLower(firstNames[ctx.Rand.Intn(len(firstNames))])
	return fmt.Sprintf("%s%d_%d@%s", first, ctx.RowIndex, ctx.Rand.Intn(100000), domain), nil
}

func genPhone(ctx *Context, _ Params) (any, error) {
	return fmt.Sprintf("+1-%03d-%03d-%04d", ctx.Rand.Intn(900)+100, ctx.Rand.Intn(900)+100, ctx.Rand.Intn(10000)), nil
}

func genURL(ctx *Context, _ Params) (any, error) {
	return fmt.Sprintf("https://%s/%s/%d", domains[ctx.Rand.Intn(len(domains))], words[ctx.Rand.Intn(len(words))], ctx.Rand.Intn(10000)), nil
}

func genAddress(ctx *Context, _ Params) (any, error) {
	return fmt.Sprintf("%d %s, %s", ctx.Rand.Intn(9999)+1, streets[ctx.Rand.Intn(len(streets))], cities[ctx.Rand.Intn(len(cities))]), nil
}

// genUUID draws the UUID bytes from the column's stream so runs repeat.
func genUUID(ctx *Context, _ Params) (any, error) {
	id, err := uuid.NewRandomFromReader(ctx.Rand)
	if err != nil {
		return nil, apperrors.Generation(ctx.location(), err.Error(), "retry the run")
	}
	return id.String(), nil
}

func textOnly(t *schema.Table, c *schema.Column) error {
	if c.DType != schema.DTypeText {
		return apperrors.Validationf(columnLoc(t.Name, c.Name), "use dtype text",
			"generator '%s' produces text, column dtype is '%s'", c.Generator, c.DType)
	}
	return nil
}
