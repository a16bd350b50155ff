package org

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/validity"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/presentation/controllers"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/services"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/application"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/authz"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/configuration"
)

func defaultOrgOptions() configuration.OrgOptions {
	return configuration.OrgOptions{
		MaxBackdateMonths: 12,
		MaxSpanYears:      5,
		ActingMaxMonths:   6,
		ActingMaxHolders:  2,
		MaxChainDepth:     20,
		TxMaxRetries:      3,
	}
}

func TestPolicyFromOptions_DefaultsMatchBuiltIn(t *testing.T) {
	require.Equal(t, services.DefaultPolicy(), PolicyFromOptions(defaultOrgOptions()))
}

func TestPolicyFromOptions_Overrides(t *testing.T) {
	o := defaultOrgOptions()
	o.MaxBackdateMonths = 3
	o.ActingMaxMonths = 4
	o.ActingMaxHolders = 1

	p := PolicyFromOptions(o)
	require.Equal(t, validity.Span{Months: 3}, p.Validity.MaxBackdate)
	require.Equal(t, validity.Span{Months: 4}, p.ActingMaxDuration)
	require.Equal(t, 1, p.MaxActingHolders)
}

func TestModule_RegistersServicesAndControllers(t *testing.T) {
	az, err := authz.NewService(authz.Config{FlagProvider: authz.StaticFlagProvider(authz.ModeEnforce)})
	require.NoError(t, err)

	app := application.New(&application.ApplicationOptions{})
	require.NoError(t, NewModule(&ModuleOptions{Org: defaultOrgOptions(), Authorizer: az}).Register(app))

	require.IsType(t, &services.AssignmentService{}, app.Service(services.AssignmentService{}))
	require.IsType(t, &services.PositionService{}, app.Service(services.PositionService{}))
	require.IsType(t, &services.HierarchyService{}, app.Service(services.HierarchyService{}))
	require.Equal(t, 1, app.EventPublisher().SubscribersCount())

	keys := make([]string, 0, 2)
	for _, c := range app.Controllers() {
		keys = append(keys, c.Key())
	}
	require.Equal(t, []string{"/org/api", "/org/api/ops/health"}, keys)
	require.IsType(t, &controllers.OrgAPIController{}, app.Controllers()[0])
}
