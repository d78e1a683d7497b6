package config

import (
	"reflect"
	"sort"
	"strings"

	logx "remindd/pkg/logx"
)

// SummarizeChange reports which sections differ between two configs plus
// safe structured attrs for logging. Secrets (the Telegram token) are never
// included, only whether one is set.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Telegram.Enabled != newCfg.Telegram.Enabled ||
		strings.TrimSpace(oldCfg.Telegram.ParseMode) != strings.TrimSpace(newCfg.Telegram.ParseMode) ||
		(strings.TrimSpace(oldCfg.Telegram.Token) != "") != (strings.TrimSpace(newCfg.Telegram.Token) != "") {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.enabled", newCfg.Telegram.Enabled),
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.alerts_enabled", newCfg.Logging.Alerts.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Entities.Path) != strings.TrimSpace(newCfg.Entities.Path) {
		changed = append(changed, "entities")
		attrs = append(attrs, logx.String("entities.path", strings.TrimSpace(newCfg.Entities.Path)))
	}

	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.tick", strings.TrimSpace(newCfg.Scheduler.Tick)),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.Bool("scheduler.checkin_enabled", newCfg.Scheduler.Checkin.Enabled),
		)
	}

	oldD, newD := derefDelivery(oldCfg.Delivery), derefDelivery(newCfg.Delivery)
	if !reflect.DeepEqual(oldD, newD) {
		changed = append(changed, "delivery")
		attrs = append(attrs,
			logx.Int("delivery.workers", newD.Workers),
			logx.Int("delivery.rate_per_sec", newD.RatePerSec),
			logx.Int("delivery.retry_max", newD.RetryMax),
		)
	}

	oldS, newS := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if oldS.Driver != newS.Driver || (oldS.Path != "") != (newS.Path != "") || oldS.BusyTimeout != newS.BusyTimeout {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newS.Driver),
			logx.Bool("storage.path_set", newS.Path != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefDelivery(d *DeliveryConfig) DeliveryConfig {
	if d == nil {
		return DeliveryConfig{}
	}
	out := *d
	if out.Enabled != nil {
		v := *out.Enabled
		out.Enabled = &v
	}
	return out
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	out := *s
	out.Driver = strings.TrimSpace(out.Driver)
	out.Path = strings.TrimSpace(out.Path)
	out.BusyTimeout = strings.TrimSpace(out.BusyTimeout)
	return out
}
