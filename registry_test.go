package pluggable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterNilFactory(t *testing.T) {
	orch := newTestOrchestrator(t)
	err := orch.Register("alpha", nil, testConfig("alpha"))
	assert.ErrorIs(t, err, ErrNilFactory)
}

func TestRegisterDuplicateID(t *testing.T) {
	orch := newTestOrchestrator(t)
	mustRegister(t, orch, &stubModule{}, testConfig("alpha"))

	err := orch.Register("alpha", stubFactory(&stubModule{}), testConfig("alpha"))
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Len(t, orch.GetModules(), 1)
}

func TestRegisterDuplicateWithHotReloadSwapsInPlace(t *testing.T) {
	orch := newTestOrchestrator(t, WithHotReload(true))
	first := &stubModule{}
	mustRegister(t, orch, first, testConfig("alpha"))
	require.NoError(t, orch.Activate(context.Background(), "alpha"))

	second := &stubModule{}
	cfg := testConfig("alpha")
	cfg.Version = "1.1.0"
	require.NoError(t, orch.Register("alpha", stubFactory(second), cfg))

	assert.Len(t, orch.GetModules(), 1)
	assert.True(t, first.isDestroyed())
	assert.True(t, second.isActivated(), "replacement comes up in the prior state")

	reg, err := orch.GetModule("alpha")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", reg.Config.Version)
	assert.Equal(t, StatusActive, reg.Status)
}

func TestRegisterConfigValidation(t *testing.T) {
	orch := newTestOrchestrator(t)

	cases := []struct {
		name  string
		id    string
		cfg   ModuleConfig
		field string
	}{
		{"missing name", "m", ModuleConfig{ID: "m", Version: "1.0.0", Enabled: true}, "name"},
		{"missing version", "m", ModuleConfig{ID: "m", Name: "m", Enabled: true}, "version"},
		{"bad version", "m", ModuleConfig{ID: "m", Name: "m", Version: "latest", Enabled: true}, "version"},
		{"id mismatch", "m", ModuleConfig{ID: "other", Name: "m", Version: "1.0.0", Enabled: true}, "id"},
		{
			"bad constraint", "m",
			ModuleConfig{
				ID: "m", Name: "m", Version: "1.0.0", Enabled: true,
				DependencyConstraints: []DependencyConstraint{{Module: "dep", Constraint: "%%"}},
			},
			"dependencyConstraints[0].constraint",
		},
		{
			"constraint without module", "m",
			ModuleConfig{
				ID: "m", Name: "m", Version: "1.0.0", Enabled: true,
				DependencyConstraints: []DependencyConstraint{{Constraint: "^1.0.0"}},
			},
			"dependencyConstraints[0].module",
		},
		{
			"inverted core bounds", "m",
			ModuleConfig{
				ID: "m", Name: "m", Version: "1.0.0", Enabled: true,
				MinCoreVersion: "2.0.0", MaxCoreVersion: "1.0.0",
			},
			"minCoreVersion",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := orch.Register(tc.id, stubFactory(&stubModule{}), tc.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfigValidation)

			var cfgErr *ConfigValidationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestRegisterEmptyIDFillsFromRegistration(t *testing.T) {
	orch := newTestOrchestrator(t)
	cfg := ModuleConfig{Name: "alpha", Version: "1.0.0", Enabled: true}
	require.NoError(t, orch.Register("alpha", stubFactory(&stubModule{}), cfg))

	reg, err := orch.GetModule("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", reg.Config.ID)
}

func TestRegisterCoreBoundsEnforced(t *testing.T) {
	orch := newTestOrchestrator(t, WithCoreVersion("1.5.0"))

	cfg := testConfig("needs-new-core")
	cfg.MinCoreVersion = "2.0.0"
	err := orch.Register(cfg.ID, stubFactory(&stubModule{}), cfg)
	assert.ErrorIs(t, err, ErrVersionIncompatible)

	cfg = testConfig("needs-old-core")
	cfg.MaxCoreVersion = "1.0.0"
	err = orch.Register(cfg.ID, stubFactory(&stubModule{}), cfg)
	assert.ErrorIs(t, err, ErrVersionIncompatible)
}

func TestRegisterConstraintAgainstRegisteredDependency(t *testing.T) {
	orch := newTestOrchestrator(t)
	depCfg := testConfig("dep")
	depCfg.Version = "1.2.0"
	mustRegister(t, orch, &stubModule{}, depCfg)

	good := testConfig("good", "dep")
	good.DependencyConstraints = []DependencyConstraint{{Module: "dep", Constraint: "^1.0.0"}}
	require.NoError(t, orch.Register("good", stubFactory(&stubModule{}), good))

	bad := testConfig("bad", "dep")
	bad.DependencyConstraints = []DependencyConstraint{{Module: "dep", Constraint: "^2.0.0"}}
	err := orch.Register("bad", stubFactory(&stubModule{}), bad)
	require.Error(t, err)

	var verErr *VersionIncompatibilityError
	require.ErrorAs(t, err, &verErr)
	assert.Equal(t, "dep", verErr.Dependency)
	assert.Equal(t, "^2.0.0", verErr.Required)
	assert.Equal(t, "1.2.0", verErr.Actual)
}

func TestRegisterConstraintOnAbsentDependency(t *testing.T) {
	orch := newTestOrchestrator(t)

	optional := testConfig("optional")
	optional.DependencyConstraints = []DependencyConstraint{{Module: "ghost", Constraint: "^1.0.0", Optional: true}}
	require.NoError(t, orch.Register("optional", stubFactory(&stubModule{}), optional))

	required := testConfig("required")
	required.DependencyConstraints = []DependencyConstraint{{Module: "ghost", Constraint: "^1.0.0"}}
	err := orch.Register("required", stubFactory(&stubModule{}), required)
	require.Error(t, err)

	var verErr *VersionIncompatibilityError
	require.ErrorAs(t, err, &verErr)
	assert.Equal(t, "unregistered", verErr.Actual)
}

func TestGetDependencyConflicts(t *testing.T) {
	orch := newTestOrchestrator(t)
	depCfg := testConfig("dep")
	depCfg.Version = "1.0.0"
	mustRegister(t, orch, &stubModule{}, depCfg)

	consumer := testConfig("consumer", "dep")
	consumer.DependencyConstraints = []DependencyConstraint{
		{Module: "dep", Constraint: "^1.0.0"},
		{Module: "ghost", Constraint: "^3.0.0", Optional: true},
	}
	mustRegister(t, orch, &stubModule{}, consumer)

	assert.Empty(t, orch.GetDependencyConflicts())
	assert.Empty(t, orch.GetUpgradeSuggestions())
}

func TestGetUpgradeSuggestionsGroupsByDependency(t *testing.T) {
	orch := newTestOrchestrator(t, WithHotReload(true))
	depCfg := testConfig("dep")
	depCfg.Version = "2.0.0"
	mustRegister(t, orch, &stubModule{}, depCfg)

	a := testConfig("a", "dep")
	a.DependencyConstraints = []DependencyConstraint{{Module: "dep", Constraint: "^2.0.0"}}
	mustRegister(t, orch, &stubModule{}, a)

	b := testConfig("b", "dep")
	b.DependencyConstraints = []DependencyConstraint{{Module: "dep", Constraint: ">=2.1.0"}}
	// b's constraint is violated by dep 2.0.0, so registration refuses it;
	// re-register dep at 1.0.0 afterwards to manufacture conflicts for both.
	require.Error(t, orch.Register("b", stubFactory(&stubModule{}), b))

	oldDep := testConfig("dep")
	oldDep.Version = "1.0.0"
	require.NoError(t, orch.Register("dep", stubFactory(&stubModule{}), oldDep))

	conflicts := orch.GetDependencyConflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, "a", conflicts[0].ModuleID)
	assert.Equal(t, "dep", conflicts[0].Dependency)
	assert.Equal(t, "1.0.0", conflicts[0].Actual)

	suggestions := orch.GetUpgradeSuggestions()
	require.Len(t, suggestions, 1)
	assert.Equal(t, "dep", suggestions[0].ModuleID)
	assert.Equal(t, "1.0.0", suggestions[0].CurrentVersion)
	assert.Equal(t, []string{"^2.0.0"}, suggestions[0].Constraints)
	assert.Equal(t, []string{"a"}, suggestions[0].RequiredBy)
}

func TestGetDependencyTree(t *testing.T) {
	orch := newTestOrchestrator(t)
	mustRegister(t, orch, &stubModule{}, testConfig("db"))
	mustRegister(t, orch, &stubModule{}, testConfig("cache", "db"))
	mustRegister(t, orch, &stubModule{}, testConfig("api", "cache", "db"))
	require.NoError(t, orch.Activate(context.Background(), "api"))

	tree, err := orch.GetDependencyTree("api")
	require.NoError(t, err)
	assert.Equal(t, "api", tree.ID)
	assert.Equal(t, StatusActive, tree.Status)
	assert.True(t, tree.Registered)
	require.Len(t, tree.Dependencies, 2)
	assert.Equal(t, "cache", tree.Dependencies[0].ID)
	assert.Equal(t, "db", tree.Dependencies[1].ID)
	require.Len(t, tree.Dependencies[0].Dependencies, 1)
	assert.Equal(t, "db", tree.Dependencies[0].Dependencies[0].ID)
}

func TestGetDependencyTreeUnregisteredLeaf(t *testing.T) {
	orch := newTestOrchestrator(t)
	mustRegister(t, orch, &stubModule{}, testConfig("top", "ghost"))

	tree, err := orch.GetDependencyTree("top")
	require.NoError(t, err)
	require.Len(t, tree.Dependencies, 1)
	assert.Equal(t, "ghost", tree.Dependencies[0].ID)
	assert.False(t, tree.Dependencies[0].Registered)
}

func TestGetDependencyTreeSurvivesCycles(t *testing.T) {
	orch := newTestOrchestrator(t)
	mustRegister(t, orch, &stubModule{}, testConfig("a", "b"))
	mustRegister(t, orch, &stubModule{}, testConfig("b", "a"))

	tree, err := orch.GetDependencyTree("a")
	require.NoError(t, err)
	require.Len(t, tree.Dependencies, 1)
	require.Len(t, tree.Dependencies[0].Dependencies, 1)
	// The repeated node is cut off without children.
	assert.Empty(t, tree.Dependencies[0].Dependencies[0].Dependencies)
}

func TestGetDependencyTreeUnknownRoot(t *testing.T) {
	orch := newTestOrchestrator(t)
	_, err := orch.GetDependencyTree("ghost")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestGetModulesSorted(t *testing.T) {
	orch := newTestOrchestrator(t)
	for _, id := range []string{"zeta", "alpha", "mid"} {
		mustRegister(t, orch, &stubModule{}, testConfig(id))
	}

	mods := orch.GetModules()
	require.Len(t, mods, 3)
	assert.Equal(t, "alpha", mods[0].ID)
	assert.Equal(t, "mid", mods[1].ID)
	assert.Equal(t, "zeta", mods[2].ID)
}
