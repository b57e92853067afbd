package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatures_GetSet(t *testing.T) {
	var fs Features
	require.False(t, fs.Get(FeatureGC))
	fs = fs.Set(FeatureGC, true)
	require.True(t, fs.Get(FeatureGC))
	fs = fs.Set(FeatureGC, false)
	require.False(t, fs.Get(FeatureGC))
}

func TestFeatures_Require(t *testing.T) {
	fs := NewFeatures(WithFeature(FeatureReferenceTypes, true))
	require.NoError(t, fs.Require(FeatureReferenceTypes))

	err := fs.Require(FeatureGC)
	require.Error(t, err)
	require.Equal(t, `feature "gc" is disabled`, err.Error())
}

func TestFeatures_String(t *testing.T) {
	require.Equal(t, "", Features(0).String())
	fs := NewFeatures(WithFeature(FeatureSignExtensionOps, true), WithFeature(FeatureMultiValue, true))
	require.Equal(t, "sign-extension-ops|multi-value", fs.String())
}

func TestFeatures20220419_ContainsExpectedSet(t *testing.T) {
	require.True(t, Features20220419.Get(FeatureBulkMemoryOperations))
	require.True(t, Features20220419.Get(FeatureReferenceTypes))
	require.False(t, Features20220419.Get(FeatureGC))
	require.False(t, Features20220419.Get(FeatureFunctionReferences))
}
