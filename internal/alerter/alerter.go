// Package alerter evaluates threshold rules against every interval report
// and sends a consolidated notification when any of them trip.
package alerter

import (
	"DDSSpectra/internal/config"
	"DDSSpectra/internal/model"
	"DDSSpectra/internal/notification"
	"DDSSpectra/internal/sink"
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

func init() {
	sink.Register("alerter", func(deps sink.Deps) (model.Sink, error) {
		if deps.Config == nil {
			return nil, errors.New("alerter requires a configuration")
		}
		logger := deps.Logger
		if logger == nil {
			logger = log.Default()
		}
		cfg := deps.Config.Alerter
		return New(cfg, notification.New(cfg.SMTP, logger), logger)
	})
}

type rule struct {
	config.AlerterRule
	source netip.Prefix // zero value matches every source
}

func (r rule) matches(ip string) bool {
	if !r.source.IsValid() {
		return true
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return r.source.Contains(addr.Unmap())
}

// Alerter is a sink that checks each snapshot against its rules.
type Alerter struct {
	rules    []rule
	cooldown time.Duration
	notifier model.Notifier
	logger   *log.Logger
	now      func() time.Time

	mu        sync.Mutex
	lastFired map[string]time.Time
}

// New compiles the configured rules.
func New(cfg config.AlerterConfig, notifier model.Notifier, logger *log.Logger) (*Alerter, error) {
	a := &Alerter{
		cooldown:  cfg.Cooldown,
		notifier:  notifier,
		logger:    logger.WithPrefix("alerter"),
		now:       time.Now,
		lastFired: make(map[string]time.Time),
	}

	names := make(map[string]bool)
	for i, rc := range cfg.Rules {
		r := rule{AlerterRule: rc}
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule-%d", i+1)
		}
		if names[r.Name] {
			return nil, fmt.Errorf("duplicate alerter rule name %q", r.Name)
		}
		names[r.Name] = true

		if r.MaxRate <= 0 && r.MaxBytesRate <= 0 && r.MinSources <= 0 {
			return nil, fmt.Errorf("alerter rule %q sets no threshold", r.Name)
		}
		if r.Source != "" {
			prefix, err := parseSource(r.Source)
			if err != nil {
				return nil, fmt.Errorf("alerter rule %q: %w", r.Name, err)
			}
			r.source = prefix
		}
		a.rules = append(a.rules, r)
	}
	return a, nil
}

func parseSource(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Name implements model.Sink.
func (a *Alerter) Name() string { return "alerter" }

// Report implements model.Sink.
func (a *Alerter) Report(ctx context.Context, snap model.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	var messages []string
	for _, r := range a.rules {
		found := evaluate(r, snap)
		if len(found) == 0 {
			continue
		}
		if last, ok := a.lastFired[r.Name]; ok && a.cooldown > 0 && now.Sub(last) < a.cooldown {
			a.logger.Debug("Alert suppressed by cooldown", "rule", r.Name)
			continue
		}
		a.lastFired[r.Name] = now
		messages = append(messages, found...)
	}

	if len(messages) == 0 {
		return nil
	}

	a.logger.Info("Alert evaluation completed", "triggered", len(messages))
	subject := fmt.Sprintf("DDS Monitor Alert Summary (%d Triggered)", len(messages))
	body := "The following alerts were triggered during the interval ending " +
		snap.End.Format(time.DateTime) + ":\n\n" + strings.Join(messages, "\n")
	if err := a.notifier.Send(subject, body); err != nil {
		return fmt.Errorf("failed to send alert notification: %w", err)
	}
	return nil
}

func evaluate(r rule, snap model.Snapshot) []string {
	var messages []string
	matched := 0
	for _, row := range snap.Sorted() {
		if !r.matches(row.SourceIP) {
			continue
		}
		matched++
		if rate := snap.Rate(row.SourceStats); r.MaxRate > 0 && rate > r.MaxRate {
			messages = append(messages, fmt.Sprintf("[%s] %s: %.1f pkt/s exceeds %.1f pkt/s",
				r.Name, row.SourceIP, rate, r.MaxRate))
		}
		if rate := snap.ByteRate(row.SourceStats); r.MaxBytesRate > 0 && rate > r.MaxBytesRate {
			messages = append(messages, fmt.Sprintf("[%s] %s: %.1f B/s exceeds %.1f B/s",
				r.Name, row.SourceIP, rate, r.MaxBytesRate))
		}
	}
	if r.MinSources > 0 && matched < r.MinSources {
		messages = append(messages, fmt.Sprintf("[%s] %d active source(s), expected at least %d",
			r.Name, matched, r.MinSources))
	}
	return messages
}
