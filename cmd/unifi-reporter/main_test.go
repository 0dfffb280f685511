package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trekops/unifi-reporter/internal/config"
	"github.com/trekops/unifi-reporter/internal/delivery"
	deliveryfile "github.com/trekops/unifi-reporter/internal/delivery/file"
	"github.com/trekops/unifi-reporter/internal/integration/geoip"
	"github.com/trekops/unifi-reporter/internal/model"
)

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, "success", outcomeLabel(nil))
	assert.Equal(t, "failure", outcomeLabel(fmt.Errorf("boom")))
}

func TestTranslateRunError_MapsSentinelsToExitCodes(t *testing.T) {
	assert.Equal(t, 3, translateRunError(model.ErrDelivery).ExitCode())
	assert.Equal(t, 2, translateRunError(model.ErrAllSourcesFailed).ExitCode())
	assert.Equal(t, 2, translateRunError(model.ErrAuthentication).ExitCode())
	assert.Equal(t, 2, translateRunError(model.ErrSourceUnavailable).ExitCode())
	assert.Equal(t, 1, translateRunError(fmt.Errorf("unclassified failure")).ExitCode())
}

func TestBuildDelivery_NeitherChannelConfiguredReturnsNoop(t *testing.T) {
	settings := &config.Settings{}
	d, _, err := buildDelivery(settings, nil)
	assert.NoError(t, err)
	assert.IsType(t, noopDelivery{}, d)
}

func TestBuildDelivery_OnlyFileConfiguredReturnsBareFileDelivery(t *testing.T) {
	settings := &config.Settings{}
	settings.Delivery.File.Enabled = true
	settings.Delivery.File.OutputDir = t.TempDir()

	d, _, err := buildDelivery(settings, nil)
	assert.NoError(t, err)
	assert.IsType(t, &deliveryfile.Delivery{}, d)
}

func TestBuildDelivery_BothConfiguredReturnsEmailPrimaryWithFileFallback(t *testing.T) {
	settings := &config.Settings{}
	settings.Delivery.Email.Enabled = true
	settings.Delivery.Email.SMTPHost = "smtp.example.com"
	settings.Delivery.Email.Recipients = []string{"ops@example.com"}
	settings.Delivery.File.Enabled = true
	settings.Delivery.File.OutputDir = t.TempDir()

	d, _, err := buildDelivery(settings, nil)
	assert.NoError(t, err)
	assert.IsType(t, &delivery.Composite{}, d)
}

func TestBuildIntegrations_SkipsUnconfiguredIntegrations(t *testing.T) {
	settings := &config.Settings{}
	tracker := &geoip.SourceIPTracker{}
	assert.Empty(t, buildIntegrations(settings, tracker))

	settings.Integrations.Cloudflare.Token = "tok"
	settings.Integrations.Cloudflare.ZoneID = "zone"
	assert.Len(t, buildIntegrations(settings, tracker), 1)
}

func TestNoopDelivery_DeliverIsAlwaysNil(t *testing.T) {
	assert.NoError(t, noopDelivery{}.Deliver(nil, model.Report{}))
}
