package config

import (
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DefaultReviewers is used when no reviewers file is mounted.
var DefaultReviewers = []string{
	"klin_sdsc_edu",
	"segurvich_sdsc_edu",
	"kbolaughlin_ucsd_edu",
	"jjl053_ucsd_edu",
	"pkarmakar_ucsd_edu",
}

const reviewersEnv = "NDP_REVIEWERS"

var ErrEmptyReviewerRoster = errors.New("reviewers cannot be empty")

// ReviewerRoster holds the set of account handles allowed to approve or reject datasets.
type ReviewerRoster struct {
	current atomic.Value // holds []string

	mu        sync.Mutex
	listeners []func([]string)
}

// NewStaticReviewerRoster builds a roster that never reloads.
func NewStaticReviewerRoster(names []string) *ReviewerRoster {
	r := &ReviewerRoster{}
	r.current.Store(normalizeReviewers(names))
	return r
}

// NewReviewerRoster reads reviewers.yml from the configured paths and watches it for changes.
// NDP_REVIEWERS (comma separated) overrides the file.
func NewReviewerRoster(cfg Config, log *zap.Logger) (*ReviewerRoster, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.reviewers")

	v := viper.New()
	v.SetConfigName("reviewers")
	v.SetConfigType("yml")
	for _, path := range cfg.Approval.RosterPaths {
		v.AddConfigPath(path)
	}

	v.SetDefault("reviewers", DefaultReviewers)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	names, err := readReviewers(v)
	if err != nil {
		return nil, err
	}

	roster := &ReviewerRoster{}
	roster.current.Store(names)
	log.Info("reviewer roster loaded",
		zap.Int("count", len(names)),
		zap.Bool("from_file", fileFound),
	)

	if !fileFound {
		return roster, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := readReviewers(v)
		if err != nil {
			log.Warn("invalid reviewer roster ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		roster.set(updated)
		log.Info("reviewer roster reloaded", zap.String("file", e.Name), zap.Int("count", len(updated)))
	})

	return roster, nil
}

// Get returns a copy of the current roster.
func (r *ReviewerRoster) Get() []string {
	names, _ := r.current.Load().([]string)
	out := make([]string, len(names))
	copy(out, names)
	return out
}

func (r *ReviewerRoster) Contains(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	names, _ := r.current.Load().([]string)
	idx := sort.SearchStrings(names, name)
	return idx < len(names) && names[idx] == name
}

// OnChange registers fn to run after every successful reload.
func (r *ReviewerRoster) OnChange(fn func([]string)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *ReviewerRoster) set(names []string) {
	r.current.Store(names)

	r.mu.Lock()
	listeners := make([]func([]string), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(r.Get())
	}
}

func readReviewers(v *viper.Viper) ([]string, error) {
	var raw []string
	if env := strings.TrimSpace(os.Getenv(reviewersEnv)); env != "" {
		raw = splitList(env)
	} else {
		raw = v.GetStringSlice("reviewers")
	}
	names := normalizeReviewers(raw)
	if len(names) == 0 {
		return nil, ErrEmptyReviewerRoster
	}
	return names, nil
}

func normalizeReviewers(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
