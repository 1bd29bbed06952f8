package loaders

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/archgraph-io/archgraph/domain/arch"
	"github.com/archgraph-io/archgraph/domain/graph"
	"github.com/archgraph-io/archgraph/pkg/logger"
)

// Loader profile names. A profile is a preset of batching and cache sizing;
// explicit Options fields override individual preset values.
const (
	ProfileDefault     = "default"
	ProfileHighVolume  = "high-volume"
	ProfileLightweight = "lightweight"
)

// Canonical loader names, used for metrics labels, ClearByPattern, and Prime.
const (
	NameRequirements           = "requirements"
	NameDecisions              = "decisions"
	NamePatterns               = "patterns"
	NameTechnologyStacks       = "technology_stacks"
	NameUsers                  = "users"
	NameRequirementsByProject  = "requirements_by_project"
	NameRequirementsByDecision = "requirements_by_decision"
	NameDependencies           = "dependencies"
	NameConflicts              = "conflicts"
	NameSimilarRequirements    = "similar_requirements"
	NameRelationships          = "relationships"
)

// Options selects a profile and optionally overrides its sizing. Zero
// values mean "use the profile's value".
type Options struct {
	Profile       string
	MaxBatchSize  int
	BatchWait     time.Duration
	CacheMaxSize  int
	SweepInterval time.Duration
}

// profile bundles the preset values. TTLs are per entity class and are not
// overridable from the environment: they encode how volatile each kind of
// data is, not how big the deployment is.
type profile struct {
	maxBatchSize  int
	wait          time.Duration
	cacheMaxSize  int
	sweepInterval time.Duration

	entityTTL       time.Duration // requirements, decisions, stacks, users
	patternTTL      time.Duration // patterns change rarely
	collectionTTL   time.Duration // per-project and per-decision lists
	relationshipTTL time.Duration // raw edges and neighborhoods
}

var profiles = map[string]profile{
	ProfileDefault: {
		maxBatchSize:  100,
		wait:          2 * time.Millisecond,
		cacheMaxSize:  1000,
		sweepInterval: time.Minute,

		entityTTL:       5 * time.Minute,
		patternTTL:      30 * time.Minute,
		collectionTTL:   2 * time.Minute,
		relationshipTTL: time.Minute,
	},
	ProfileHighVolume: {
		maxBatchSize:  250,
		wait:          5 * time.Millisecond,
		cacheMaxSize:  10000,
		sweepInterval: 30 * time.Second,

		entityTTL:       10 * time.Minute,
		patternTTL:      time.Hour,
		collectionTTL:   5 * time.Minute,
		relationshipTTL: 2 * time.Minute,
	},
	ProfileLightweight: {
		maxBatchSize:  25,
		wait:          time.Millisecond,
		cacheMaxSize:  100,
		sweepInterval: 2 * time.Minute,

		entityTTL:       time.Minute,
		patternTTL:      10 * time.Minute,
		collectionTTL:   30 * time.Second,
		relationshipTTL: 30 * time.Second,
	},
}

// Factory builds one DataLoaders bundle per request. The executor and the
// metrics collector are process-wide; everything else in a bundle is scoped
// to the request that owns it.
type Factory struct {
	exec    graph.Executor
	metrics *Collector
	log     *slog.Logger
	prof    profile
}

// NewFactory validates opts against the known profiles and returns a
// factory. Misconfiguration fails here, at startup, never per request.
func NewFactory(exec graph.Executor, metrics *Collector, log *slog.Logger, opts Options) (*Factory, error) {
	name := opts.Profile
	if name == "" {
		name = ProfileDefault
	}
	prof, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown loader profile %q", name)
	}

	if opts.MaxBatchSize > 0 {
		prof.maxBatchSize = opts.MaxBatchSize
	}
	if opts.BatchWait > 0 {
		prof.wait = opts.BatchWait
	}
	if opts.CacheMaxSize > 0 {
		prof.cacheMaxSize = opts.CacheMaxSize
	}
	if opts.SweepInterval > 0 {
		prof.sweepInterval = opts.SweepInterval
	}

	return &Factory{
		exec:    exec,
		metrics: metrics,
		log:     log.With(logger.Scope("loaders.factory")),
		prof:    prof,
	}, nil
}

// anyLoader is the type-erased view the bundle keeps for name-addressed
// operations. Every Loader[V] satisfies it.
type anyLoader interface {
	Name() string
	Clear(key string)
	ClearAll()
	ClearWhere(pred func(key string) bool)
	Close()
	CachedKeys() int
	primeAny(key string, value any) bool
}

// DataLoaders is the per-request bundle. Fields are the typed loaders the
// handlers use directly; the name index serves the generic operations.
type DataLoaders struct {
	Requirements           *Loader[*arch.Requirement]
	Decisions              *Loader[*arch.ArchitectureDecision]
	Patterns               *Loader[*arch.ArchitecturePattern]
	TechnologyStacks       *Loader[*arch.TechnologyStack]
	Users                  *Loader[*arch.User]
	RequirementsByProject  *Loader[[]*arch.Requirement]
	RequirementsByDecision *Loader[[]*arch.Requirement]
	Dependencies           *Loader[[]*arch.Requirement]
	Conflicts              *Loader[[]*arch.Requirement]
	Similar                *Loader[[]arch.ScoredRequirement]
	Relationships          *Loader[[]*arch.Relationship]

	byName map[string]anyLoader
}

func (f *Factory) config(name string, ttl time.Duration) Config {
	return Config{
		Name:          name,
		MaxBatchSize:  f.prof.maxBatchSize,
		Wait:          f.prof.wait,
		TTL:           ttl,
		CacheMaxSize:  f.prof.cacheMaxSize,
		SweepInterval: f.prof.sweepInterval,
	}
}

// NewDataLoaders builds a fully wired bundle. On any construction failure
// the already-built loaders are closed before the error is returned.
func (f *Factory) NewDataLoaders() (*DataLoaders, error) {
	dl := &DataLoaders{byName: make(map[string]anyLoader, 11)}

	fail := func(err error) (*DataLoaders, error) {
		dl.Close()
		return nil, err
	}

	var err error
	if dl.Requirements, err = NewRequirementLoader(f.exec, f.metrics, f.log,
		f.config(NameRequirements, f.prof.entityTTL)); err != nil {
		return fail(err)
	}
	dl.register(dl.Requirements)

	if dl.Decisions, err = NewDecisionLoader(f.exec, f.metrics, f.log,
		f.config(NameDecisions, f.prof.entityTTL)); err != nil {
		return fail(err)
	}
	dl.register(dl.Decisions)

	if dl.Patterns, err = NewPatternLoader(f.exec, f.metrics, f.log,
		f.config(NamePatterns, f.prof.patternTTL)); err != nil {
		return fail(err)
	}
	dl.register(dl.Patterns)

	if dl.TechnologyStacks, err = NewTechnologyStackLoader(f.exec, f.metrics, f.log,
		f.config(NameTechnologyStacks, f.prof.entityTTL)); err != nil {
		return fail(err)
	}
	dl.register(dl.TechnologyStacks)

	if dl.Users, err = NewUserLoader(f.exec, f.metrics, f.log,
		f.config(NameUsers, f.prof.entityTTL)); err != nil {
		return fail(err)
	}
	dl.register(dl.Users)

	if dl.RequirementsByProject, err = NewRequirementsByProjectLoader(f.exec, f.metrics, f.log,
		f.config(NameRequirementsByProject, f.prof.collectionTTL)); err != nil {
		return fail(err)
	}
	dl.register(dl.RequirementsByProject)

	if dl.RequirementsByDecision, err = NewRequirementsByDecisionLoader(f.exec, dl.Requirements,
		f.metrics, f.log,
		f.config(NameRequirementsByDecision, f.prof.collectionTTL)); err != nil {
		return fail(err)
	}
	dl.register(dl.RequirementsByDecision)

	if dl.Dependencies, err = NewDependenciesLoader(f.exec, f.metrics, f.log,
		f.config(NameDependencies, f.prof.relationshipTTL)); err != nil {
		return fail(err)
	}
	dl.register(dl.Dependencies)

	if dl.Conflicts, err = NewConflictsLoader(f.exec, f.metrics, f.log,
		f.config(NameConflicts, f.prof.relationshipTTL)); err != nil {
		return fail(err)
	}
	dl.register(dl.Conflicts)

	if dl.Similar, err = NewSimilarRequirementsLoader(f.exec, f.metrics, f.log,
		f.config(NameSimilarRequirements, f.prof.relationshipTTL)); err != nil {
		return fail(err)
	}
	dl.register(dl.Similar)

	if dl.Relationships, err = NewRelationshipsLoader(f.exec, f.metrics, f.log,
		f.config(NameRelationships, f.prof.relationshipTTL)); err != nil {
		return fail(err)
	}
	dl.register(dl.Relationships)

	return dl, nil
}

func (dl *DataLoaders) register(l anyLoader) {
	dl.byName[l.Name()] = l
}

// ClearAll empties every loader cache in the bundle.
func (dl *DataLoaders) ClearAll() {
	for _, l := range dl.byName {
		l.ClearAll()
	}
}

// ClearByPattern empties the caches of loaders whose name matches the
// regular expression.
func (dl *DataLoaders) ClearByPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("clear pattern %q: %w", pattern, err)
	}
	for name, l := range dl.byName {
		if re.MatchString(name) {
			l.ClearAll()
		}
	}
	return nil
}

// Prime seeds a loader's cache by name. The value must match the loader's
// value type exactly.
func (dl *DataLoaders) Prime(loaderName, key string, value any) error {
	l, ok := dl.byName[loaderName]
	if !ok {
		return fmt.Errorf("unknown loader %q", loaderName)
	}
	if !l.primeAny(key, value) {
		return fmt.Errorf("loader %q: cannot prime with value of type %T", loaderName, value)
	}
	return nil
}

// CachedKeys reports cache sizes per loader, for the debug endpoint.
func (dl *DataLoaders) CachedKeys() map[string]int {
	out := make(map[string]int, len(dl.byName))
	for name, l := range dl.byName {
		out[name] = l.CachedKeys()
	}
	return out
}

// Close stops every loader's sweep goroutine. Called when the owning
// request ends; the bundle must not be used afterwards.
func (dl *DataLoaders) Close() {
	for _, l := range dl.byName {
		l.Close()
	}
}
