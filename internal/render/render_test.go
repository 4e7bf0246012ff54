package render

import (
	"strings"
	"testing"

	"github.com/HerbHall/peeringmanager/internal/testutil"
	"github.com/HerbHall/peeringmanager/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groupTemplate = `{% for group in peering_groups %}group {{ group.name }}
{% for session in group.sessions %}  neighbor {{ session.ip_address }} remote-as {{ session.autonomous_system.asn }}
{% endfor %}{% endfor %}`

func fixtureExchange() Exchange {
	ix := testutil.NewInternetExchange(testutil.WithSlug("AMS-IX", "ams-ix"))
	ix.ID = 1
	as1 := testutil.NewAutonomousSystem(testutil.WithASN(64500, "Example"))
	as2 := testutil.NewAutonomousSystem(testutil.WithASN(64501, "Transit"))

	return Exchange{
		Exchange: ix,
		Sessions: []Session{
			{Session: testutil.NewPeeringSession(1, 1, testutil.WithAddress("192.0.2.10")), AS: as1},
			{Session: testutil.NewPeeringSession(1, 1, testutil.WithAddress("2001:db8::a")), AS: as1},
			{Session: testutil.NewPeeringSession(1, 2, testutil.WithAddress("2001:db8::b")), AS: as2},
		},
		Communities: []models.Community{
			testutil.NewCommunity("Learned at AMS-IX", "64500:1"),
		},
	}
}

func TestRenderExchange_groups_ipv6_before_ipv4(t *testing.T) {
	out, err := RenderExchange(groupTemplate, fixtureExchange())
	require.NoError(t, err)

	iV6a := strings.Index(out, "neighbor 2001:db8::a remote-as 64500")
	iV6b := strings.Index(out, "neighbor 2001:db8::b remote-as 64501")
	iV4 := strings.Index(out, "neighbor 192.0.2.10 remote-as 64500")
	iGroup4 := strings.Index(out, "group ipv4")

	require.NotEqual(t, -1, iV6a, out)
	require.NotEqual(t, -1, iV6b, out)
	require.NotEqual(t, -1, iV4, out)
	assert.Less(t, iV6a, iV6b, "IPv6 sessions keep input order")
	assert.Less(t, iV6b, iGroup4, "IPv6 group renders first")
	assert.Less(t, iGroup4, iV4, "IPv4 session belongs to the ipv4 group")
	assert.Equal(t, 1, strings.Count(out, "192.0.2.10"))
}

func TestExchangeContext_partition(t *testing.T) {
	ctx := ExchangeContext(fixtureExchange())

	groups, ok := ctx["peering_groups"].([]any)
	require.True(t, ok)
	require.Len(t, groups, 2)

	v6 := groups[0].(map[string]any)
	v4 := groups[1].(map[string]any)
	assert.Equal(t, GroupIPv6, v6["name"])
	assert.Equal(t, GroupIPv4, v4["name"])
	assert.Len(t, v6["sessions"], 2)
	assert.Len(t, v4["sessions"], 1)

	for _, s := range v6["sessions"].([]any) {
		assert.Equal(t, 6, s.(map[string]any)["ip_version"])
	}

	communities := ctx["communities"].([]any)
	assert.Equal(t, map[string]any{"name": "Learned at AMS-IX", "value": "64500:1"}, communities[0])
	assert.Equal(t, map[string]any{}, ctx["config_context"])
}

func TestRenderExchange_communities_and_context(t *testing.T) {
	x := fixtureExchange()
	x.ConfigContext = map[string]any{"local_pref": 200}
	x.Exchange.Comment = "peering <all> & more"

	out, err := RenderExchange(
		`{% for c in communities %}{{ c.value }}{% endfor %} lp={{ config_context.local_pref }} {{ internet_exchange.comment }}`, x)
	require.NoError(t, err)
	assert.Equal(t, "64500:1 lp=200 peering <all> & more", out)
}

func TestString_syntax_error_yields_no_output(t *testing.T) {
	out, err := String("{% for x in %}", Context{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyntax)
	assert.Empty(t, out)

	assert.ErrorIs(t, Check("{% if %}"), ErrSyntax)
	assert.NoError(t, Check("{{ dataset | length }}"))
}

func TestValue_dataset_length(t *testing.T) {
	dataset, err := Value([]models.AutonomousSystem{
		testutil.NewAutonomousSystem(),
		testutil.NewAutonomousSystem(testutil.WithASN(64501, "Transit")),
		testutil.NewAutonomousSystem(testutil.WithASN(64502, "Other")),
	})
	require.NoError(t, err)

	out, err := String("{{ dataset | length }}", Context{"dataset": dataset})
	require.NoError(t, err)
	assert.Equal(t, "3", out)

	out, err = String("{% for obj in dataset %}{{ obj.asn }} {% endfor %}", Context{"dataset": dataset})
	require.NoError(t, err)
	assert.Equal(t, "64500 64501 64502 ", out)
}
