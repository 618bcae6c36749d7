package events

// Topic constants for domain events emitted by the budget service.
const (
	TopicBudgetCreated        = "budget.created"
	TopicBudgetUpdated        = "budget.updated"
	TopicBudgetPrimaryChanged = "budget.primary_changed"
)

// DefaultTopics returns every topic that triggers a summary refresh.
func DefaultTopics() []string {
	return []string{
		TopicBudgetCreated,
		TopicBudgetUpdated,
		TopicBudgetPrimaryChanged,
	}
}
