// Package policy evaluates the business rules that guard task creation,
// update and access. It performs no I/O: callers query storage first and
// hand the resulting facts in.
package policy

import "github.com/adanyl0v/go-tasks/internal/models"

const (
	DefaultMaxHighPriorityPerDay = 5
	DefaultMaxOpenTasksPerUser   = 50
)

type Limits struct {
	MaxHighPriorityPerDay int64
	MaxOpenTasksPerUser   int64
}

func DefaultLimits() Limits {
	return Limits{
		MaxHighPriorityPerDay: DefaultMaxHighPriorityPerDay,
		MaxOpenTasksPerUser:   DefaultMaxOpenTasksPerUser,
	}
}

// CreationFacts are looked up for the creating user on the reference day.
type CreationFacts struct {
	DescriptionExistsOnDate bool
	HighPriorityCountOnDate int64
	OpenTaskCount           int64
}

// UpdateFacts are looked up for the requesting user on the day the
// existing task was created.
type UpdateFacts struct {
	DescriptionExistsOnDate bool
	HighPriorityCountOnDate int64
}

type Policy struct {
	limits Limits
}

func New(limits Limits) *Policy {
	return &Policy{limits: limits}
}

func (p *Policy) Limits() Limits {
	return p.limits
}

// ValidateCreation applies the creation rules in a fixed order and
// reports the first violation: description uniqueness, then the daily
// high priority quota, then the open task quota.
func (p *Policy) ValidateCreation(priority models.Priority, facts CreationFacts) error {
	if facts.DescriptionExistsOnDate {
		return models.ErrDuplicateDescription
	}

	if priority == models.PriorityHigh &&
		facts.HighPriorityCountOnDate >= p.limits.MaxHighPriorityPerDay {
		return p.highPriorityQuotaError()
	}

	if facts.OpenTaskCount >= p.limits.MaxOpenTasksPerUser {
		return models.NewError(models.ErrorKindOpenTaskQuotaExceeded,
			"cannot have more than %d open tasks", p.limits.MaxOpenTasksPerUser)
	}
	return nil
}

// ValidateUpdatable holds the checks that do not depend on the requested
// changes. They run before the changes are parsed, so a completed task
// reports immutability even when the new values are malformed.
func (p *Policy) ValidateUpdatable(existing models.Task, userID string) error {
	if err := existing.EnsureOwnership(userID); err != nil {
		return err
	}
	if existing.IsCompleted() {
		return models.ErrTaskImmutable
	}
	return nil
}

// ValidateUpdate expects changes.Description to be already normalized.
func (p *Policy) ValidateUpdate(
	existing models.Task,
	userID string,
	changes models.TaskChanges,
	facts UpdateFacts,
) error {
	if err := p.ValidateUpdatable(existing, userID); err != nil {
		return err
	}

	if DescriptionChanges(existing, changes) && facts.DescriptionExistsOnDate {
		return models.ErrDuplicateDescription
	}

	if RaisesPriority(existing, changes) &&
		facts.HighPriorityCountOnDate >= p.limits.MaxHighPriorityPerDay {
		return p.highPriorityQuotaError()
	}
	return nil
}

func (p *Policy) ValidateAccess(task models.Task, userID string) error {
	return task.EnsureOwnership(userID)
}

// DescriptionChanges reports whether the update replaces the description
// with a different one, which makes the uniqueness fact relevant.
func DescriptionChanges(existing models.Task, changes models.TaskChanges) bool {
	return changes.Description != nil && *changes.Description != existing.Description()
}

// RaisesPriority reports whether the update turns a non-HIGH task into
// a HIGH one, which makes the daily quota fact relevant.
func RaisesPriority(existing models.Task, changes models.TaskChanges) bool {
	return changes.Priority != nil &&
		*changes.Priority == models.PriorityHigh &&
		existing.Priority() != models.PriorityHigh
}

func (p *Policy) highPriorityQuotaError() error {
	return models.NewError(models.ErrorKindHighPriorityQuotaExceeded,
		"cannot create more than %d high priority tasks per day", p.limits.MaxHighPriorityPerDay)
}
