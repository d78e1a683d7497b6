package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	yaml "go.yaml.in/yaml/v3"

	logx "remindd/pkg/logx"

	"remindd/internal/recurrence"
	"remindd/internal/remind"
)

// FileSource reads blocks and tasks from a YAML file. The parsed set is
// cached and refreshed when the file's mtime changes, so the per-tick cost
// is one stat call.
type FileSource struct {
	mu      sync.Mutex
	path    string
	log     logx.Logger
	cached  []remind.Entity
	modTime time.Time
	loaded  bool
}

func NewFileSource(path string, log logx.Logger) *FileSource {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &FileSource{path: path, log: log}
}

// SetPath switches the backing file (config hot reload).
func (f *FileSource) SetPath(path string) {
	f.mu.Lock()
	if f.path != path {
		f.path = path
		f.loaded = false
	}
	f.mu.Unlock()
}

func (f *FileSource) ListSchedulable(ctx context.Context) ([]remind.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	st, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("entities file: %w", err)
	}
	if f.loaded && st.ModTime().Equal(f.modTime) {
		return append([]remind.Entity(nil), f.cached...), nil
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("entities file: %w", err)
	}
	entities, err := ParseEntities(raw)
	if err != nil {
		return nil, err
	}

	f.cached = entities
	f.modTime = st.ModTime()
	f.loaded = true
	f.log.Debug("entities loaded", logx.Int("count", len(entities)), logx.String("path", f.path))
	return append([]remind.Entity(nil), entities...), nil
}

type entityFile struct {
	Entities []rawEntity `yaml:"entities"`
}

type rawEntity struct {
	ID         string   `yaml:"id"`
	Kind       string   `yaml:"kind"`
	Title      string   `yaml:"title"`
	Anchor     string   `yaml:"anchor"`
	Start      string   `yaml:"start"`
	End        string   `yaml:"end"`
	Rule       rawRule  `yaml:"rule"`
	Exceptions []string `yaml:"exceptions"`
	Offsets    []int    `yaml:"offsets"`
	Channels   []string `yaml:"channels"`
}

type rawRule struct {
	Kind     string   `yaml:"kind"`
	Interval int      `yaml:"interval"`
	Weekdays []string `yaml:"weekdays"`
	Until    string   `yaml:"until"`
	Count    int      `yaml:"count"`
}

// ParseEntities decodes the entities YAML strictly; unknown keys fail.
func ParseEntities(raw []byte) ([]remind.Entity, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var file entityFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("entities yaml: %w", err)
	}

	out := make([]remind.Entity, 0, len(file.Entities))
	seen := make(map[string]struct{}, len(file.Entities))
	for i, re := range file.Entities {
		e, err := buildEntity(re)
		if err != nil {
			return nil, fmt.Errorf("entities[%d] (%s): %w", i, re.ID, err)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("entities[%d]: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

func buildEntity(re rawEntity) (remind.Entity, error) {
	kind, err := remind.ParseKind(re.Kind)
	if err != nil {
		return remind.Entity{}, err
	}
	anchor, err := recurrence.ParseDate(re.Anchor)
	if err != nil {
		return remind.Entity{}, fmt.Errorf("anchor: %w", err)
	}

	e := remind.Entity{
		ID:       strings.TrimSpace(re.ID),
		Kind:     kind,
		Title:    re.Title,
		Anchor:   anchor,
		Offsets:  re.Offsets,
		Channels: re.Channels,
	}
	if e.Title == "" {
		e.Title = e.ID
	}

	if re.Start != "" {
		t, err := remind.ParseTimeOfDay(re.Start)
		if err != nil {
			return remind.Entity{}, fmt.Errorf("start: %w", err)
		}
		e.Start = &t
	}
	if re.End != "" {
		t, err := remind.ParseTimeOfDay(re.End)
		if err != nil {
			return remind.Entity{}, fmt.Errorf("end: %w", err)
		}
		e.End = &t
	}

	rule, err := buildRule(re.Rule)
	if err != nil {
		return remind.Entity{}, err
	}
	e.Rule = rule

	if len(re.Exceptions) > 0 {
		e.Exceptions = recurrence.NewDateSet()
		for _, s := range re.Exceptions {
			d, err := recurrence.ParseDate(s)
			if err != nil {
				return remind.Entity{}, fmt.Errorf("exceptions: %w", err)
			}
			e.Exceptions.Add(d)
		}
	}
	return e, nil
}

func buildRule(rr rawRule) (recurrence.Rule, error) {
	kind, err := recurrence.ParseKind(rr.Kind)
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("rule.kind: %w", err)
	}
	rule := recurrence.Rule{Kind: kind, Interval: rr.Interval, Count: rr.Count}

	for _, name := range rr.Weekdays {
		wd, err := parseWeekday(name)
		if err != nil {
			return recurrence.Rule{}, fmt.Errorf("rule.weekdays: %w", err)
		}
		rule.Weekdays = rule.Weekdays.With(wd)
	}
	if rr.Until != "" {
		until, err := recurrence.ParseDate(rr.Until)
		if err != nil {
			return recurrence.Rule{}, fmt.Errorf("rule.until: %w", err)
		}
		rule.Until = until
	}
	if rule.Count < 0 {
		return recurrence.Rule{}, fmt.Errorf("rule.count must be >= 0")
	}
	return rule, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return wd, nil
}
