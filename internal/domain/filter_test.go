package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/gosuda/tally/internal/domain"
)

func TestAuditFilterMetadata_Found(t *testing.T) {
	t.Parallel()

	f := domain.FilterFound
	got := domain.AuditFilterMetadata(&f)

	assert.Equal(t, "Found Assets", got.Label)
	assert.Equal(t, "No found assets", got.EmptyState.Title)
	assert.Equal(t, "No assets have been scanned yet. Start scanning to see found assets here.", got.EmptyState.Text)
}

func TestAuditFilterMetadata_Fallbacks(t *testing.T) {
	t.Parallel()

	all := domain.FilterAll
	expected := domain.FilterExpected

	for _, raw := range []string{"INVALID_TYPE", "found", " ", "ALL"} {
		f := domain.FilterType(raw)
		assert.Equal(t, domain.AuditFilterMetadata(&all), domain.AuditFilterMetadata(&f), raw)
	}

	assert.Equal(t, domain.AuditFilterMetadata(&expected), domain.AuditFilterMetadata(nil))
	assert.Equal(t, "Expected Assets", domain.AuditFilterMetadata(nil).Label)
}

func TestAuditFilterMetadata_EveryFilterHasCopy(t *testing.T) {
	t.Parallel()

	for _, f := range []domain.FilterType{
		domain.FilterAll, domain.FilterExpected, domain.FilterFound, domain.FilterMissing, domain.FilterUnexpected,
	} {
		m := domain.AuditFilterMetadata(&f)
		assert.NotEmpty(t, m.Label, f)
		assert.NotEmpty(t, m.EmptyState.Title, f)
		assert.NotEmpty(t, m.EmptyState.Text, f)
	}
}

func TestParseFilter(t *testing.T) {
	t.Parallel()

	assert.Nil(t, domain.ParseFilter(""))
	f := domain.ParseFilter("MISSING")
	if assert.NotNil(t, f) {
		assert.Equal(t, domain.FilterMissing, *f)
	}
}

func TestFilterType_Matches(t *testing.T) {
	t.Parallel()

	pending := &domain.AuditAsset{ID: uuid.New(), AuditAssetData: domain.AuditAssetData{Expected: true, AuditStatus: domain.AuditAssetStatusPending}}
	found := &domain.AuditAsset{ID: uuid.New(), AuditAssetData: domain.AuditAssetData{Expected: true, AuditStatus: domain.AuditAssetStatusFound}}
	extra := &domain.AuditAsset{ID: uuid.New(), AuditAssetData: domain.AuditAssetData{Expected: false, AuditStatus: domain.AuditAssetStatusUnexpected}}

	assert.True(t, domain.FilterExpected.Matches(pending, false))
	assert.True(t, domain.FilterExpected.Matches(found, false))
	assert.False(t, domain.FilterExpected.Matches(extra, false))

	assert.True(t, domain.FilterFound.Matches(found, true))
	assert.False(t, domain.FilterFound.Matches(pending, true))

	assert.False(t, domain.FilterMissing.Matches(pending, false))
	assert.True(t, domain.FilterMissing.Matches(pending, true))

	assert.True(t, domain.FilterUnexpected.Matches(extra, false))
	assert.True(t, domain.FilterAll.Matches(extra, false))
	assert.True(t, domain.FilterType("bogus").Matches(pending, false))
}
