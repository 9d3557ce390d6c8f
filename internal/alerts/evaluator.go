package alerts

import (
	"context"
	"log/slog"
	"time"
)

// RuleSource is the subset of the rule store the evaluator needs.
type RuleSource interface {
	ListEnabledForCamera(ctx context.Context, siteID, cameraID string) ([]Rule, error)
	StampTriggered(ctx context.Context, ruleID string, at time.Time) (bool, error)
}

// Notifier delivers fired alerts. Delivery channels beyond logging are
// plugged in behind this interface.
type Notifier interface {
	Notify(ctx context.Context, a Alert)
}

// LogNotifier writes fired alerts to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, a Alert) {
	slog.Warn("Alert triggered",
		"rule", a.RuleName,
		"rule_id", a.RuleID,
		"site_id", a.SiteID,
		"camera_id", a.CameraID,
		"class", a.Class,
		"count", a.Count,
		"threshold", a.Threshold)
}

type Evaluator struct {
	rules    RuleSource
	notifier Notifier
}

func NewEvaluator(rules RuleSource, notifier Notifier) *Evaluator {
	return &Evaluator{rules: rules, notifier: notifier}
}

// Evaluate checks one report's per-class in+out totals against the rules
// that apply to the camera. A rule fires at most once per cooldown window;
// the triggered stamp is a conditional write so concurrent reports cannot
// double-fire a rule.
func (e *Evaluator) Evaluate(ctx context.Context, siteID, cameraID string, classTotals map[string]int, ts time.Time) ([]Alert, error) {
	rules, err := e.rules.ListEnabledForCamera(ctx, siteID, cameraID)
	if err != nil {
		return nil, err
	}

	var fired []Alert
	for _, rule := range rules {
		if rule.InCooldown(ts) {
			continue
		}
		class, count, hit := exceeds(rule.Threshold, classTotals)
		if !hit {
			continue
		}

		stamped, err := e.rules.StampTriggered(ctx, rule.ID, ts)
		if err != nil {
			slog.Warn("Failed to stamp alert rule", "rule_id", rule.ID, "error", err)
			continue
		}
		if !stamped {
			continue
		}

		alert := Alert{
			RuleID:      rule.ID,
			RuleName:    rule.Name,
			SiteID:      siteID,
			CameraID:    cameraID,
			Class:       class,
			Count:       count,
			Threshold:   rule.Threshold,
			TriggeredAt: ts,
		}
		e.notifier.Notify(ctx, alert)
		fired = append(fired, alert)
	}
	return fired, nil
}

// exceeds returns the first class whose total meets the threshold.
func exceeds(threshold int, classTotals map[string]int) (string, int, bool) {
	for class, total := range classTotals {
		if total >= threshold {
			return class, total, true
		}
	}
	return "", 0, false
}
