package agents

import (
	"context"
	"fmt"

	"startupops/internal/stage"
)

// MockAgent is a deterministic, offline agent used when no model is
// configured and in end-to-end tests.
type MockAgent struct {
	// Fail makes the listed stages return their error.
	Fail map[stage.Name]error
}

func (a *MockAgent) Name() string {
	return "mock"
}

func (a *MockAgent) Invoke(ctx context.Context, name stage.Name, input map[string]any) (stage.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := a.Fail[name]; err != nil {
		return nil, err
	}
	in := stage.Result(input)
	switch name {
	case stage.Product:
		return mockProduct(in), nil
	case stage.Tech:
		return mockTech(in), nil
	case stage.Marketing:
		return mockMarketing(in), nil
	case stage.Finance:
		return mockFinance(in), nil
	case stage.Advisor:
		return mockAdvisor(in), nil
	}
	return nil, fmt.Errorf("mock agent has no output for stage %q", name)
}

func mockTask(title, description string, priority, days int, deps ...int) map[string]any {
	d := make([]any, 0, len(deps))
	for _, dep := range deps {
		d = append(d, dep)
	}
	return map[string]any{
		"title":          title,
		"description":    description,
		"priority":       priority,
		"estimated_days": days,
		"dependencies":   d,
	}
}

func stringOr(in stage.Result, key, def string) string {
	if s, ok := in[key].(string); ok && s != "" {
		return s
	}
	return def
}

func mockProduct(in stage.Result) stage.Result {
	domain := stringOr(in, "domain", "Technology")
	teamSize := max(in.Int("team_size", 3), 1)
	return stage.Result{
		"core_concept": map[string]any{
			"problem_statement": fmt.Sprintf("Market lacks a unified solution for %s management.", domain),
			"solution_overview": fmt.Sprintf("AI-driven platform optimizing %s workflows.", domain),
			"value_proposition": "Automate tedious tasks and focus on growth.",
			"elevator_pitch":    fmt.Sprintf("We help %s professionals save time with automation.", domain),
		},
		"mvp_features": []any{
			map[string]any{"title": "User Authentication", "priority": 5, "estimated_days": 5},
			map[string]any{"title": "Core Dashboard", "priority": 5, "estimated_days": 10},
			map[string]any{"title": "Reporting Module", "priority": 3, "estimated_days": 5},
		},
		"tasks": []any{
			mockTask("Define user personas and journey maps", "Research target users and map their journeys", 5, 3),
			mockTask("Create wireframes and mockups", "Design UI/UX for all MVP features", 5, 4, 0),
			mockTask("Write product requirements document", "Detailed PRD for the development team", 4, 3, 1),
			mockTask("Set up user feedback channels", "Implement feedback collection mechanisms", 3, 2),
		},
		"recommended_launch_timeline_days": max(30, 60/teamSize*2),
	}
}

func mockTech(in stage.Result) stage.Result {
	return stage.Result{
		"tech_stack": map[string]any{
			"frontend":       []any{"React", "TypeScript"},
			"backend":        []any{"Go"},
			"database":       []any{"PostgreSQL"},
			"infrastructure": []any{"Docker", "GitHub Actions"},
		},
		"tasks": []any{
			mockTask("Set up development environment", "Repositories, tooling and local stack", 5, 1),
			mockTask("Design database schema", "Model the core entities", 5, 2, 0),
			mockTask("Build REST API endpoints", "Expose the core operations", 5, 7, 1),
			mockTask("Implement frontend components", "Build the MVP screens", 4, 10, 2),
			mockTask("Set up CI/CD pipeline", "Automated build, test and deploy", 3, 2, 0),
			mockTask("Implement monitoring and logging", "Operational visibility for launch", 3, 2, 2),
		},
		"technical_risks": []any{
			map[string]any{"risk": "Scope creep in the API surface", "severity": "medium"},
		},
	}
}

func mockMarketing(in stage.Result) stage.Result {
	timeline := in.Int("timeline_days", stage.DefaultTimelineDays)
	return stage.Result{
		"kpis": []any{
			map[string]any{"name": "Waitlist Signups", "target_value": 500, "unit": "users"},
			map[string]any{"name": "Website Traffic", "target_value": 5000, "unit": "visitors"},
			map[string]any{"name": "Conversion Rate", "target_value": 10, "unit": "percent"},
		},
		"tasks": []any{
			mockTask("Create brand guidelines", "Logo, palette and voice", 5, 3),
			mockTask("Build landing page", "Waitlist landing page", 5, 2, 0),
			mockTask("Set up analytics", "Track funnel from visit to signup", 4, 1, 1),
			mockTask("Prepare Product Hunt launch", "Assets, hunters and launch day plan", 4, 5, 1),
		},
		"positioning": fmt.Sprintf("The fastest way into %s, live in %d days.", stringOr(in, "domain", "the market"), timeline),
	}
}

func mockFinance(in stage.Result) stage.Result {
	teamSize := max(in.Int("team_size", 3), 1)
	monthlySalaries := teamSize * 8000
	return stage.Result{
		"budget_allocation": map[string]any{
			"total_estimated": monthlySalaries*3 + 15000,
			"currency":        "USD",
		},
		"burn_rate": map[string]any{
			"monthly": monthlySalaries + 5000,
		},
		"runway": map[string]any{
			"months":     6,
			"risk_level": "medium",
		},
		"kpis": []any{
			map[string]any{"name": "Monthly Burn Rate", "target_value": monthlySalaries + 5000, "unit": "dollars"},
			map[string]any{"name": "Runway Months", "target_value": 6, "unit": "months"},
		},
		"tasks": []any{
			mockTask("Set up financial tracking", "Bookkeeping and expense tracking", 5, 2),
			mockTask("Create investor pitch deck", "Deck and financial model for seed round", 4, 5, 0),
			mockTask("Establish vendor relationships", "Negotiate infrastructure and tooling contracts", 3, 3),
		},
	}
}

func mockAdvisor(in stage.Result) stage.Result {
	return stage.Result{
		"execution_health": map[string]any{
			"summary": "Startup is on track with minor areas needing attention",
		},
		"alerts": []any{
			map[string]any{
				"severity":           "info",
				"message":            "Consider starting user research earlier",
				"recommended_action": "Schedule 5 user interviews this week",
			},
			map[string]any{
				"severity":           "warning",
				"message":            "Technical dependencies creating bottleneck",
				"recommended_action": "Parallelize frontend and backend work where possible",
			},
		},
		"recommendations": []any{
			map[string]any{"priority": 5, "area": "tech", "recommendation": "Set up automated testing early"},
			map[string]any{"priority": 4, "area": "marketing", "recommendation": "Start building an email list before launch"},
		},
	}
}
