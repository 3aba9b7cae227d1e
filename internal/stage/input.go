package stage

// DefaultTimelineDays is used when the product stage gives no launch timeline.
const DefaultTimelineDays = 60

// Input is the payload handed to a stage agent.
type Input interface {
	Stage() Name
	Payload() map[string]any
}

type ProductInput struct {
	Goal     string
	Domain   string
	TeamSize int
}

func (ProductInput) Stage() Name { return Product }

func (in ProductInput) Payload() map[string]any {
	return map[string]any{
		"goal":      in.Goal,
		"domain":    in.Domain,
		"team_size": in.TeamSize,
	}
}

type TechInput struct {
	ProductOutput Result
	TeamSize      int
}

func (TechInput) Stage() Name { return Tech }

func (in TechInput) Payload() map[string]any {
	return map[string]any{
		"product_output": nonNil(in.ProductOutput),
		"team_size":      in.TeamSize,
	}
}

type MarketingInput struct {
	ProductOutput Result
	TimelineDays  int
	Domain        string
}

func (MarketingInput) Stage() Name { return Marketing }

func (in MarketingInput) Payload() map[string]any {
	return map[string]any{
		"product_output": nonNil(in.ProductOutput),
		"timeline_days":  in.TimelineDays,
		"domain":         in.Domain,
	}
}

// FinanceInput carries the concatenated product and tech task lists as the
// agents emitted them.
type FinanceInput struct {
	Tasks        []any
	TimelineDays int
	TeamSize     int
}

func (FinanceInput) Stage() Name { return Finance }

func (in FinanceInput) Payload() map[string]any {
	tasks := in.Tasks
	if tasks == nil {
		tasks = []any{}
	}
	return map[string]any{
		"tasks":         tasks,
		"timeline_days": in.TimelineDays,
		"team_size":     in.TeamSize,
	}
}

type AdvisorInput struct {
	ProductOutput   Result
	TechOutput      Result
	MarketingOutput Result
	FinanceOutput   Result
	StartupGoal     string
	TeamSize        int
}

func (AdvisorInput) Stage() Name { return Advisor }

func (in AdvisorInput) Payload() map[string]any {
	return map[string]any{
		"product_output":   nonNil(in.ProductOutput),
		"tech_output":      nonNil(in.TechOutput),
		"marketing_output": nonNil(in.MarketingOutput),
		"finance_output":   nonNil(in.FinanceOutput),
		"startup_goal":     in.StartupGoal,
		"team_size":        in.TeamSize,
	}
}

// NewTechInput derives the tech stage input from the product result.
func NewTechInput(product Result, teamSize int) TechInput {
	return TechInput{ProductOutput: product.Output(), TeamSize: teamSize}
}

// NewMarketingInput derives the marketing stage input from the product result.
func NewMarketingInput(product Result, domain string) MarketingInput {
	out := product.Output()
	return MarketingInput{
		ProductOutput: out,
		TimelineDays:  out.Int("recommended_launch_timeline_days", DefaultTimelineDays),
		Domain:        domain,
	}
}

// NewFinanceInput derives the finance stage input from the product and tech
// results.
func NewFinanceInput(product, tech Result, teamSize int) FinanceInput {
	p := product.Output()
	tasks := append([]any{}, p.List("tasks")...)
	tasks = append(tasks, tech.Output().List("tasks")...)
	return FinanceInput{
		Tasks:        tasks,
		TimelineDays: p.Int("recommended_launch_timeline_days", DefaultTimelineDays),
		TeamSize:     teamSize,
	}
}

// NewAdvisorInput gathers the four upstream outputs for the advisor.
func NewAdvisorInput(results map[Name]Result, goal string, teamSize int) AdvisorInput {
	return AdvisorInput{
		ProductOutput:   results[Product].Output(),
		TechOutput:      results[Tech].Output(),
		MarketingOutput: results[Marketing].Output(),
		FinanceOutput:   results[Finance].Output(),
		StartupGoal:     goal,
		TeamSize:        teamSize,
	}
}

func nonNil(r Result) map[string]any {
	if r == nil {
		return map[string]any{}
	}
	return r
}
