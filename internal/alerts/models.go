package alerts

import "time"

// Rule fires when a single report's in+out total for any object class
// reaches Threshold. Cameras narrows the rule to specific cameras; empty
// means every camera on the site.
type Rule struct {
	ID              string
	Name            string
	SiteID          string
	Cameras         []string
	Threshold       int
	CooldownMinutes int
	Enabled         bool
	LastTriggered   *time.Time
	CreatedAt       time.Time
}

// Cooldown returns the rule's cooldown as a duration.
func (r Rule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// InCooldown reports whether the rule fired too recently to fire again.
func (r Rule) InCooldown(now time.Time) bool {
	return r.LastTriggered != nil && now.Sub(*r.LastTriggered) < r.Cooldown()
}

// Alert is a fired rule, handed to the notifier.
type Alert struct {
	RuleID      string    `json:"ruleId"`
	RuleName    string    `json:"ruleName"`
	SiteID      string    `json:"siteId"`
	CameraID    string    `json:"cameraId"`
	Class       string    `json:"class"`
	Count       int       `json:"count"`
	Threshold   int       `json:"threshold"`
	TriggeredAt time.Time `json:"triggeredAt"`
}
